package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/chat_console/internal/paste"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/metrics"
)

// DefaultCeiling is the largest response, in characters, sent directly.
const DefaultCeiling = 2000

const (
	tooBigNotice        = "Content too big to be printed."
	undeliverableNotice = "Output could not be delivered."
)

// Body is a response ready to be relayed.
type Body struct {
	// Language labels the code block and names the paste files.
	Language string
	// Input is the source that produced the output.
	Input string
	// Output is the text to show.
	Output string
	// Raw sends Output as is instead of inside a code block.
	Raw bool
	// Succeeded marks the trigger with a success reaction.
	Succeeded bool
}

func (b Body) text() string {
	if b.Raw {
		return b.Output
	}
	return fence + b.Language + "\n" + strings.TrimRight(b.Output, "\n") + "\n" + fence
}

// Transports resolves the transport for a platform.
type Transports map[string]transport.Transport

// NewTransports indexes ts by platform.
func NewTransports(ts ...transport.Transport) Transports {
	out := make(Transports, len(ts))
	for _, t := range ts {
		out[t.Platform()] = t
	}
	return out
}

// For returns the transport registered for platform.
func (t Transports) For(platform string) (transport.Transport, error) {
	tr, ok := t[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return tr, nil
}

// Relay turns execution output into chat messages, falling back to a paste
// service when the output does not fit, and records what it sent.
type Relay struct {
	transports Transports
	publisher  paste.Publisher
	mappings   *Mappings
	ceiling    int
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// RelayConfig configures a Relay. Publisher may be nil, in which case
// oversized output is undeliverable.
type RelayConfig struct {
	Transports Transports
	Publisher  paste.Publisher
	Mappings   *Mappings
	Ceiling    int
	Logger     logger.Logger
	Metrics    *metrics.Metrics
}

// NewRelay creates a Relay.
func NewRelay(cfg RelayConfig) *Relay {
	r := &Relay{
		transports: cfg.Transports,
		publisher:  cfg.Publisher,
		mappings:   cfg.Mappings,
		ceiling:    cfg.Ceiling,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if r.mappings == nil {
		r.mappings = NewMappings()
	}
	if r.ceiling <= 0 {
		r.ceiling = DefaultCeiling
	}
	if r.logger == nil {
		r.logger = logger.NewNopLogger()
	}
	return r
}

// Mappings returns the trigger to response record.
func (r *Relay) Mappings() *Mappings {
	return r.mappings
}

func (r *Relay) fits(text string) bool {
	return utf8.RuneCountInString(text) <= r.ceiling
}

func (r *Relay) log(ctx context.Context, trigger transport.Message) logger.Logger {
	return logger.GetLoggerFromContext(ctx, r.logger).WithFields(
		logger.PlatformField(trigger.Platform),
		logger.ChannelField(trigger.ChannelID),
		logger.MessageField(trigger.ID),
	)
}

// Deliver sends body in reply to trigger and records the mapping. Output over
// the ceiling, or rejected by the transport, is published to the paste
// service and its link sent instead. An empty body sends nothing.
func (r *Relay) Deliver(ctx context.Context, trigger transport.Message, body Body) (transport.Message, error) {
	tr, err := r.transports.For(trigger.Platform)
	if err != nil {
		return transport.Message{}, err
	}
	log := r.log(ctx, trigger)

	if body.Succeeded {
		if err := tr.React(ctx, trigger, transport.MarkerSuccess); err != nil {
			log.Warn("Failed to attach success marker", logger.ErrorField(err))
		}
	}
	if body.Output == "" {
		return transport.Message{}, nil
	}

	text := body.text()
	var sendErr error
	if r.fits(text) {
		sent, err := tr.Send(ctx, trigger.ChannelID, text)
		if err == nil {
			r.mappings.Record(trigger, sent)
			r.metrics.ObserveDelivery(metrics.DeliveryDirect)
			return sent, nil
		}
		sendErr = err
		log.Warn("Direct send failed, publishing output instead", logger.ErrorField(err))
	} else {
		sendErr = fmt.Errorf("%w: %d characters exceeds %d",
			transport.ErrPayloadTooLarge, utf8.RuneCountInString(text), r.ceiling)
	}

	sent, overflowErr := r.overflow(ctx, tr, trigger, body)
	if overflowErr == nil {
		r.mappings.Record(trigger, sent)
		r.metrics.ObserveDelivery(metrics.DeliveryOverflow)
		log.Debug("Output published to paste service", logger.StringField("url", sent.Content))
		return sent, nil
	}

	causes := multierror.Append(sendErr, overflowErr)
	r.metrics.ObserveDelivery(metrics.DeliveryFailed)
	log.Error("Response undeliverable", logger.ErrorField(causes))
	if _, err := tr.Send(ctx, trigger.ChannelID, undeliverableNotice); err != nil {
		log.Warn("Failed to send undeliverable notice", logger.ErrorField(err))
	}
	return transport.Message{}, fmt.Errorf("%w: %w", ErrUndeliverable, causes)
}

func (r *Relay) overflow(ctx context.Context, tr transport.Transport, trigger transport.Message, body Body) (transport.Message, error) {
	if r.publisher == nil {
		return transport.Message{}, errors.New("no paste backend configured")
	}
	doc := paste.Document{
		Description: fmt.Sprintf("console %s output", body.Language),
		Files: []paste.File{
			{Name: "in." + body.Language, Content: body.Input},
			{Name: "out." + body.Language, Content: body.Output},
		},
	}
	url, err := r.publisher.Publish(ctx, doc)
	if err != nil {
		return transport.Message{}, err
	}
	sent, err := tr.Send(ctx, trigger.ChannelID, url)
	if err != nil {
		return transport.Message{}, fmt.Errorf("failed to send paste link: %w", err)
	}
	return sent, nil
}

// DeliverEphemeral sends body without recording a mapping or using the paste
// service. Output over the ceiling is replaced by a short notice.
func (r *Relay) DeliverEphemeral(ctx context.Context, trigger transport.Message, body Body) error {
	if body.Output == "" {
		return nil
	}
	tr, err := r.transports.For(trigger.Platform)
	if err != nil {
		return err
	}

	text := body.text()
	if !r.fits(text) {
		r.metrics.ObserveDelivery(metrics.DeliveryTruncated)
		_, err := tr.Send(ctx, trigger.ChannelID, tooBigNotice)
		return err
	}

	_, err = tr.Send(ctx, trigger.ChannelID, text)
	switch {
	case err == nil:
		r.metrics.ObserveDelivery(metrics.DeliveryDirect)
		return nil
	case errors.Is(err, transport.ErrPayloadTooLarge):
		r.metrics.ObserveDelivery(metrics.DeliveryTruncated)
		_, err = tr.Send(ctx, trigger.ChannelID, tooBigNotice)
		return err
	default:
		r.metrics.ObserveDelivery(metrics.DeliveryFailed)
		r.log(ctx, trigger).Warn("Failed to send session output", logger.ErrorField(err))
		if _, noticeErr := tr.Send(ctx, trigger.ChannelID, fmt.Sprintf("Unexpected error: `%v`", err)); noticeErr != nil {
			return multierror.Append(err, noticeErr)
		}
		return err
	}
}

// Say sends a plain notice to the trigger's channel.
func (r *Relay) Say(ctx context.Context, trigger transport.Message, text string) (transport.Message, error) {
	tr, err := r.transports.For(trigger.Platform)
	if err != nil {
		return transport.Message{}, err
	}
	return tr.Send(ctx, trigger.ChannelID, text)
}

// Retract deletes a previously sent response.
func (r *Relay) Retract(ctx context.Context, response transport.Message) error {
	tr, err := r.transports.For(response.Platform)
	if err != nil {
		return err
	}
	return tr.Delete(ctx, response)
}
