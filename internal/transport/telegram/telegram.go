// Package telegram connects the console to Telegram through long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// Platform is the platform name of Telegram messages.
const Platform = "telegram"

const (
	successEmoji      = "👌"
	errMessageTooLong = "message is too long"
)

// api is the subset of *bot.Bot used for outbound calls.
type api interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SetMessageReaction(ctx context.Context, params *bot.SetMessageReactionParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable debug logging
}

// Connector is the Telegram transport.
type Connector struct {
	bot     *bot.Bot
	api     api
	logger  logger.Logger
	handler atomic.Pointer[transport.Handler]
	ready   atomic.Bool
}

var _ transport.Connector = (*Connector)(nil)

// NewConnector creates a Telegram connector. The token is checked against the
// Bot API immediately.
func NewConnector(config Config, log logger.Logger) (*Connector, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	c := &Connector{logger: log.WithFields(logger.PlatformField(Platform))}
	opts := []bot.Option{
		bot.WithDefaultHandler(c.handleUpdate),
	}
	if config.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	c.bot = b
	c.api = b
	return c, nil
}

func (c *Connector) Platform() string { return Platform }

// Ready reports whether polling is running.
func (c *Connector) Ready() bool { return c.ready.Load() }

// Start polls for updates and feeds them to h until ctx ends.
func (c *Connector) Start(ctx context.Context, h transport.Handler) error {
	c.handler.Store(&h)
	c.ready.Store(true)
	defer c.ready.Store(false)

	c.logger.Info("Starting Telegram bot polling")
	c.bot.Start(ctx)
	c.logger.Info("Telegram polling stopped")
	return nil
}

// handleUpdate processes all incoming Telegram updates
func (c *Connector) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	hp := c.handler.Load()
	if hp == nil {
		return
	}
	h := *hp

	switch {
	case update.Message != nil:
		if msg, ok := toMessage(update.Message); ok {
			h.HandleMessage(ctx, msg)
		}
	case update.EditedMessage != nil:
		after, ok := toMessage(update.EditedMessage)
		if !ok {
			return
		}
		// Telegram does not send the previous text; the mapping only needs the identity.
		before := after
		before.Content = ""
		before.EditedAt = nil
		h.HandleEdit(ctx, before, after)
	}
}

func toMessage(m *models.Message) (transport.Message, bool) {
	if m.From == nil || m.From.IsBot || m.Text == "" {
		return transport.Message{}, false
	}
	msg := transport.Message{
		Platform:  Platform,
		ID:        strconv.Itoa(m.ID),
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		AuthorID:  strconv.FormatInt(m.From.ID, 10),
		Content:   m.Text,
	}
	if m.EditDate != 0 {
		at := time.Unix(int64(m.EditDate), 0).UTC()
		msg.EditedAt = &at
	}
	return msg, true
}

func parseIDs(msg transport.Message) (int64, int, error) {
	chatID, err := strconv.ParseInt(msg.ChannelID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat id %q: %w", msg.ChannelID, err)
	}
	messageID, err := strconv.Atoi(msg.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message id %q: %w", msg.ID, err)
	}
	return chatID, messageID, nil
}

func (c *Connector) Send(ctx context.Context, channelID, text string) (transport.Message, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return transport.Message{}, fmt.Errorf("invalid chat id %q: %w", channelID, err)
	}
	sent, err := c.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		if strings.Contains(err.Error(), errMessageTooLong) {
			return transport.Message{}, fmt.Errorf("%w: %v", transport.ErrPayloadTooLarge, err)
		}
		return transport.Message{}, err
	}

	msg := transport.Message{
		Platform:  Platform,
		ID:        strconv.Itoa(sent.ID),
		ChannelID: strconv.FormatInt(sent.Chat.ID, 10),
		Content:   sent.Text,
	}
	if sent.From != nil {
		msg.AuthorID = strconv.FormatInt(sent.From.ID, 10)
	}
	return msg, nil
}

func (c *Connector) React(ctx context.Context, msg transport.Message, marker transport.Marker) error {
	if marker != transport.MarkerSuccess {
		return fmt.Errorf("unsupported marker %d", marker)
	}
	chatID, messageID, err := parseIDs(msg)
	if err != nil {
		return err
	}
	_, err = c.api.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction: []models.ReactionType{{
			Type: models.ReactionTypeTypeEmoji,
			ReactionTypeEmoji: &models.ReactionTypeEmoji{
				Type:  models.ReactionTypeTypeEmoji,
				Emoji: successEmoji,
			},
		}},
	})
	return err
}

func (c *Connector) Delete(ctx context.Context, msg transport.Message) error {
	chatID, messageID, err := parseIDs(msg)
	if err != nil {
		return err
	}
	_, err = c.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	return err
}
