// Package discord connects the console to Discord through a bot gateway session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// Platform is the platform name of Discord messages.
const Platform = "discord"

const successEmoji = "✅"

// api is the subset of *discordgo.Session used for outbound calls.
type api interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Config holds configuration for the Discord connector
type Config struct {
	Token string
	// MessageCacheSize is how many messages per channel are kept so that
	// edits carry the previous content.
	MessageCacheSize int
}

// Connector is the Discord transport.
type Connector struct {
	session *discordgo.Session
	api     api
	logger  logger.Logger
	ready   atomic.Bool
}

var _ transport.Connector = (*Connector)(nil)

// NewConnector creates a Discord connector. The gateway is not opened until Start.
func NewConnector(cfg Config, log logger.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	if cfg.MessageCacheSize > 0 {
		session.State.MaxMessageCount = cfg.MessageCacheSize
	}
	// Deliver events in gateway order; handlers only enqueue work.
	session.SyncEvents = true

	return &Connector{
		session: session,
		api:     session,
		logger:  log.WithFields(logger.PlatformField(Platform)),
	}, nil
}

func (c *Connector) Platform() string { return Platform }

// Ready reports whether the gateway session is established.
func (c *Connector) Ready() bool { return c.ready.Load() }

// Start opens the gateway and feeds message events to h until ctx ends.
func (c *Connector) Start(ctx context.Context, h transport.Handler) error {
	c.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.ready.Store(true)
		c.logger.Info("Connected to Discord gateway", logger.StringField("user", r.User.Username))
	})
	c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		c.ready.Store(false)
		c.logger.Warn("Disconnected from Discord gateway")
	})
	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if msg, ok := toMessage(m.Message); ok {
			h.HandleMessage(ctx, msg)
		}
	})
	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		after, ok := toMessage(m.Message)
		if !ok {
			return
		}
		before, ok := toMessage(m.BeforeUpdate)
		if !ok {
			before = after
			before.Content = ""
			before.EditedAt = nil
		}
		h.HandleEdit(ctx, before, after)
	})

	c.logger.Info("Starting Discord connector")
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	<-ctx.Done()
	c.ready.Store(false)
	c.logger.Info("Stopping Discord connector")
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord gateway: %w", err)
	}
	return nil
}

// toMessage converts a Discord message, skipping bots and partial updates.
func toMessage(m *discordgo.Message) (transport.Message, bool) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return transport.Message{}, false
	}
	return transport.Message{
		Platform:  Platform,
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
		EditedAt:  m.EditedTimestamp,
	}, true
}

func (c *Connector) Send(ctx context.Context, channelID, text string) (transport.Message, error) {
	sent, err := c.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return transport.Message{}, mapError(err)
	}
	msg := transport.Message{
		Platform:  Platform,
		ID:        sent.ID,
		ChannelID: sent.ChannelID,
		Content:   sent.Content,
	}
	if sent.Author != nil {
		msg.AuthorID = sent.Author.ID
	}
	return msg, nil
}

func (c *Connector) React(ctx context.Context, msg transport.Message, marker transport.Marker) error {
	if marker != transport.MarkerSuccess {
		return fmt.Errorf("unsupported marker %d", marker)
	}
	return c.api.MessageReactionAdd(msg.ChannelID, msg.ID, successEmoji, discordgo.WithContext(ctx))
}

func (c *Connector) Delete(ctx context.Context, msg transport.Message) error {
	return c.api.ChannelMessageDelete(msg.ChannelID, msg.ID, discordgo.WithContext(ctx))
}

// mapError turns Discord's form body rejection into ErrPayloadTooLarge.
func mapError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeInvalidFormBody {
		return fmt.Errorf("%w: %v", transport.ErrPayloadTooLarge, err)
	}
	return err
}
