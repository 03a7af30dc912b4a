// Package transport defines the chat platform contract used by the console.
// Adapters for concrete platforms live in the discord, slack and telegram
// subpackages.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrPayloadTooLarge is returned by Send when the platform rejects a message
// for exceeding its size limit.
var ErrPayloadTooLarge = errors.New("message payload too large")

// Marker is a reaction attached to a message.
type Marker int

const (
	// MarkerSuccess acknowledges a command that executed successfully.
	MarkerSuccess Marker = iota
)

// Message is an immutable chat message. Edits produce a new Message with the same ID.
type Message struct {
	Platform  string
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
	EditedAt  *time.Time
}

// ChannelKey identifies the message's channel across platforms.
func (m Message) ChannelKey() string {
	return m.Platform + "/" + m.ChannelID
}

// Key identifies the message across platforms.
func (m Message) Key() string {
	return m.Platform + "/" + m.ChannelID + "/" + m.ID
}

// Transport is the outbound half of a chat platform.
type Transport interface {
	Platform() string
	// Send posts text to a channel and returns the created message.
	Send(ctx context.Context, channelID, text string) (Message, error)
	// React attaches a marker to msg.
	React(ctx context.Context, msg Message, marker Marker) error
	// Delete removes msg. Deleting an already deleted message may fail.
	Delete(ctx context.Context, msg Message) error
}

// Handler receives inbound events from a Connector.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandleEdit(ctx context.Context, before, after Message)
}

// Connector is a Transport with an inbound event loop.
type Connector interface {
	Transport
	// Start connects and feeds events to h. It blocks until ctx is done or the
	// connection fails permanently.
	Start(ctx context.Context, h Handler) error
	// Ready reports whether the connection is established.
	Ready() bool
}
