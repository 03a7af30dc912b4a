// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/lewisedginton/chat_console/internal/transport"
)

// Reaction records a React call.
type Reaction struct {
	Message transport.Message
	Marker  transport.Marker
}

// Recorder is a transport.Transport that records every call.
type Recorder struct {
	mu sync.Mutex

	PlatformName string
	// MaxLength makes Send fail with ErrPayloadTooLarge above this length; 0 disables.
	MaxLength int
	// SendErr, when set, is returned by every Send.
	SendErr error
	// DeleteErr, when set, is returned by every Delete.
	DeleteErr error

	nextID    int
	sent      []transport.Message
	reactions []Reaction
	deleted   []transport.Message
	notify    chan transport.Message
}

// NewRecorder returns a recorder for the "test" platform.
func NewRecorder() *Recorder {
	return &Recorder{PlatformName: "test", notify: make(chan transport.Message, 256)}
}

func (r *Recorder) Platform() string { return r.PlatformName }

func (r *Recorder) Send(_ context.Context, channelID, text string) (transport.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return transport.Message{}, r.SendErr
	}
	if r.MaxLength > 0 && len(text) > r.MaxLength {
		return transport.Message{}, transport.ErrPayloadTooLarge
	}
	r.nextID++
	msg := transport.Message{
		Platform:  r.PlatformName,
		ID:        "sent-" + strconv.Itoa(r.nextID),
		ChannelID: channelID,
		AuthorID:  "bot",
		Content:   text,
	}
	r.sent = append(r.sent, msg)
	select {
	case r.notify <- msg:
	default:
	}
	return msg, nil
}

func (r *Recorder) React(_ context.Context, msg transport.Message, marker transport.Marker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, Reaction{Message: msg, Marker: marker})
	return nil
}

func (r *Recorder) Delete(_ context.Context, msg transport.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.deleted = append(r.deleted, msg)
	return nil
}

// Sent returns a copy of the sent messages.
func (r *Recorder) Sent() []transport.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Message(nil), r.sent...)
}

// SentTexts returns the content of every sent message.
func (r *Recorder) SentTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts := make([]string, len(r.sent))
	for i, m := range r.sent {
		texts[i] = m.Content
	}
	return texts
}

// Reactions returns a copy of the recorded reactions.
func (r *Recorder) Reactions() []Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reaction(nil), r.reactions...)
}

// Deleted returns a copy of the deleted messages.
func (r *Recorder) Deleted() []transport.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Message(nil), r.deleted...)
}

// Sends delivers every successfully sent message, for tests that wait on
// asynchronous output.
func (r *Recorder) Sends() <-chan transport.Message {
	return r.notify
}

// ErrUnavailable is a convenience error for failure injection.
var ErrUnavailable = errors.New("transport unavailable")
