package console

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_console/internal/engine"
	"github.com/lewisedginton/chat_console/internal/paste"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/internal/transport/transporttest"
)

const (
	operatorID = "op"
	channelID  = "chan"
)

type fakePublisher struct {
	mu   sync.Mutex
	url  string
	err  error
	docs []paste.Document
}

func (p *fakePublisher) Name() string { return "fake" }

func (p *fakePublisher) Publish(_ context.Context, doc paste.Document) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = append(p.docs, doc)
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

func (p *fakePublisher) Documents() []paste.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]paste.Document(nil), p.docs...)
}

func testMessage(id, author, content string) transport.Message {
	return transport.Message{
		Platform:  "test",
		ID:        id,
		ChannelID: channelID,
		AuthorID:  author,
		Content:   content,
	}
}

func newTestConsole(t *testing.T, cfg Config) (*Console, *transporttest.Recorder, *fakePublisher) {
	t.Helper()
	rec := transporttest.NewRecorder()
	pub := &fakePublisher{url: "https://paste.example/abc"}
	c, err := New(Options{
		Config:     cfg,
		Engine:     engine.NewLua(),
		Transports: []transport.Transport{rec},
		Publisher:  pub,
		Authorizer: NewOperators(map[string][]string{"test": {operatorID}}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, rec, pub
}

// nextSent waits for the next message sent through rec.
func nextSent(t *testing.T, rec *transporttest.Recorder) transport.Message {
	t.Helper()
	select {
	case msg := <-rec.Sends():
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a sent message")
		return transport.Message{}
	}
}

// assertNothingSent fails if rec sends anything within d.
func assertNothingSent(t *testing.T, rec *transporttest.Recorder, d time.Duration) {
	t.Helper()
	select {
	case msg := <-rec.Sends():
		t.Fatalf("unexpected message sent: %q", msg.Content)
	case <-time.After(d):
	}
}
