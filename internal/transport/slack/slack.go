// Package slack connects the console to Slack over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// Platform is the platform name of Slack messages.
const Platform = "slack"

const (
	successReaction   = "white_check_mark"
	subtypeChanged    = "message_changed"
	errMessageTooLong = "msg_too_long"
)

// Slack escapes these characters in message text.
var unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// api is the subset of *slack.Client used for outbound calls.
type api interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	DeleteMessageContext(ctx context.Context, channel, messageTimestamp string) (string, string, error)
}

// Config holds configuration for the Slack connector
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool
}

// Connector is the Slack transport.
type Connector struct {
	client     *slack.Client
	socketMode *socketmode.Client
	api        api
	logger     logger.Logger
	ready      atomic.Bool
}

var _ transport.Connector = (*Connector)(nil)

// NewConnector creates a new Slack connector
func NewConnector(config Config, log logger.Logger) (*Connector, error) {
	if !strings.HasPrefix(config.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(config.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}

	client := slack.New(
		config.BotToken,
		slack.OptionAppLevelToken(config.AppToken),
		slack.OptionDebug(config.Debug),
	)
	return &Connector{
		client:     client,
		socketMode: socketmode.New(client, socketmode.OptionDebug(config.Debug)),
		api:        client,
		logger:     log.WithFields(logger.PlatformField(Platform)),
	}, nil
}

func (c *Connector) Platform() string { return Platform }

// Ready reports whether the Socket Mode connection is established.
func (c *Connector) Ready() bool { return c.ready.Load() }

// Start begins the Socket Mode connection and event handling
func (c *Connector) Start(ctx context.Context, h transport.Handler) error {
	c.logger.Info("Starting Slack Socket Mode connector")

	go func() {
		for envelope := range c.socketMode.Events {
			switch envelope.Type {
			case socketmode.EventTypeConnecting:
				c.logger.Info("Connecting to Slack with Socket Mode")

			case socketmode.EventTypeConnectionError:
				c.ready.Store(false)
				c.logger.Warn("Slack connection failed", logger.StringField("data", fmt.Sprintf("%v", envelope.Data)))

			case socketmode.EventTypeConnected:
				c.ready.Store(true)
				c.logger.Info("Connected to Slack with Socket Mode")

			case socketmode.EventTypeHello:

			case socketmode.EventTypeEventsAPI:
				event, ok := envelope.Data.(slackevents.EventsAPIEvent)
				if !ok {
					c.logger.Debug("Ignored event", logger.StringField("type", string(envelope.Type)))
					continue
				}
				c.socketMode.Ack(*envelope.Request)
				c.handleEvent(ctx, h, event)

			default:
				c.logger.Debug("Unsupported event type received", logger.StringField("type", string(envelope.Type)))
			}
		}
	}()

	err := c.socketMode.RunContext(ctx)
	c.ready.Store(false)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("slack socket mode: %w", err)
	}
	return nil
}

// handleEvent routes message events to h.
func (c *Connector) handleEvent(ctx context.Context, h transport.Handler, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}

	switch ev.SubType {
	case "":
		if ev.BotID != "" {
			return
		}
		h.HandleMessage(ctx, transport.Message{
			Platform:  Platform,
			ID:        ev.TimeStamp,
			ChannelID: ev.Channel,
			AuthorID:  ev.User,
			Content:   unescaper.Replace(ev.Text),
		})

	case subtypeChanged:
		if ev.Message == nil || ev.Message.BotID != "" {
			return
		}
		after := toMessage(ev.Channel, ev.Message)
		before := after
		before.EditedAt = nil
		before.Content = ""
		if ev.PreviousMessage != nil {
			before = toMessage(ev.Channel, ev.PreviousMessage)
		}
		h.HandleEdit(ctx, before, after)
	}
}

func toMessage(channelID string, m *slack.Msg) transport.Message {
	msg := transport.Message{
		Platform:  Platform,
		ID:        m.Timestamp,
		ChannelID: channelID,
		AuthorID:  m.User,
		Content:   unescaper.Replace(m.Text),
	}
	if m.Edited != nil {
		if at, ok := parseTimestamp(m.Edited.Timestamp); ok {
			msg.EditedAt = &at
		}
	}
	return msg
}

// parseTimestamp reads a Slack "seconds.micros" timestamp.
func parseTimestamp(ts string) (time.Time, bool) {
	secs, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, int64(secs*float64(time.Second))).UTC(), true
}

func (c *Connector) Send(ctx context.Context, channelID, text string) (transport.Message, error) {
	channel, ts, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		if strings.Contains(err.Error(), errMessageTooLong) {
			return transport.Message{}, fmt.Errorf("%w: %v", transport.ErrPayloadTooLarge, err)
		}
		return transport.Message{}, err
	}
	return transport.Message{
		Platform:  Platform,
		ID:        ts,
		ChannelID: channel,
		Content:   text,
	}, nil
}

func (c *Connector) React(ctx context.Context, msg transport.Message, marker transport.Marker) error {
	if marker != transport.MarkerSuccess {
		return fmt.Errorf("unsupported marker %d", marker)
	}
	return c.api.AddReactionContext(ctx, successReaction, slack.NewRefToMessage(msg.ChannelID, msg.ID))
}

func (c *Connector) Delete(ctx context.Context, msg transport.Message) error {
	_, _, err := c.api.DeleteMessageContext(ctx, msg.ChannelID, msg.ID)
	return err
}
