package console

import (
	"context"

	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// Replay re-runs an edited command. If before produced a response, that
// response is deleted, its mapping removed, and after dispatched as a fresh
// command. Edits of messages without a response are ignored.
func (c *Console) Replay(ctx context.Context, before, after transport.Message) {
	entry, ok := c.relay.Mappings().Take(before).Get()
	if !ok {
		return
	}

	log := logger.GetLoggerFromContext(ctx, c.logger).WithFields(
		logger.PlatformField(before.Platform),
		logger.ChannelField(before.ChannelID),
		logger.MessageField(before.ID),
	)
	log.Info("Replaying edited command")
	c.metrics.ObserveReplay()

	if err := c.relay.Retract(ctx, entry.Response); err != nil {
		log.Warn("Failed to delete stale response", logger.ErrorField(err))
	}
	c.Dispatch(ctx, after)
}
