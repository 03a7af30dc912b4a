package console

import (
	"context"
	"errors"
	"time"

	"github.com/lewisedginton/chat_console/internal/audit"
	"github.com/lewisedginton/chat_console/internal/engine"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/metrics"
)

// tracker reports finished executions to metrics and the audit log.
type tracker struct {
	audit   audit.Recorder
	metrics *metrics.Metrics
	logger  logger.Logger
}

func outcomeOf(err error) string {
	var syntaxErr *engine.SyntaxError
	switch {
	case err == nil:
		return audit.OutcomeSuccess
	case errors.As(err, &syntaxErr):
		return audit.OutcomeSyntaxError
	default:
		return audit.OutcomeRuntimeError
	}
}

func (t *tracker) track(ctx context.Context, msg transport.Message, mode, source string, res Result, d time.Duration) {
	t.record(ctx, msg, mode, source, outcomeOf(res.Err), d)
}

func (t *tracker) record(ctx context.Context, msg transport.Message, mode, source, outcome string, d time.Duration) {
	t.metrics.ObserveExecution(mode, outcome, d)
	if t.audit == nil {
		return
	}

	entry := audit.NewEntry()
	entry.Platform = msg.Platform
	entry.ChannelID = msg.ChannelID
	entry.AuthorID = msg.AuthorID
	entry.MessageID = msg.ID
	entry.Mode = mode
	entry.Source = source
	entry.Outcome = outcome
	entry.Duration = d
	if err := t.audit.Record(ctx, entry); err != nil {
		logger.GetLoggerFromContext(ctx, t.logger).Warn("Failed to record execution", logger.ErrorField(err))
	}
}
