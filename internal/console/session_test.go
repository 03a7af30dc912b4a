package console

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSessionLifecycle(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	assert.Equal(t, replGreeting, nextSent(t, rec).Content)

	s, ok := c.Sessions().Get("test/" + channelID).Get()
	require.True(t, ok)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, operatorID, s.Owner())
	assert.True(t, s.LastResult().IsAbsent())

	c.HandleMessage(ctx, testMessage("m2", operatorID, "`1 + 1`"))
	assert.Equal(t, "```lua\n2\n```", nextSent(t, rec).Content)
	assert.Equal(t, "2", s.LastResult().MustGet().Text)

	c.HandleMessage(ctx, testMessage("m3", operatorID, "`y = _ * 10`"))
	c.HandleMessage(ctx, testMessage("m4", operatorID, "```lua\nz = y + 1\nprint(y)\n```"))
	assert.Equal(t, "```lua\n20\n```", nextSent(t, rec).Content)
	c.HandleMessage(ctx, testMessage("m4b", operatorID, "`z`"))
	assert.Equal(t, "```lua\n21\n```", nextSent(t, rec).Content)

	c.HandleMessage(ctx, testMessage("m5", operatorID, "`message.id`"))
	assert.Equal(t, "```lua\nm5\n```", nextSent(t, rec).Content)

	c.HandleMessage(ctx, testMessage("m6", operatorID, "`quit`"))
	assert.Equal(t, replFarewell, nextSent(t, rec).Content)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close")
	}
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, c.Sessions().Count())
	assert.Equal(t, 0, c.Mappings().Len())
}

func TestSessionQuitPhrases(t *testing.T) {
	for _, phrase := range []string{"quit", "exit", "exit()", "stop", "stop()"} {
		t.Run(phrase, func(t *testing.T) {
			c, rec, _ := newTestConsole(t, Config{})
			ctx := context.Background()

			c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
			nextSent(t, rec)
			c.HandleMessage(ctx, testMessage("m2", operatorID, "`"+phrase+"`"))
			assert.Equal(t, replFarewell, nextSent(t, rec).Content)
		})
	}
}

func TestSessionRejectsSecondStart(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)
	original := c.Sessions().Get("test/" + channelID).MustGet()

	c.HandleMessage(ctx, testMessage("m2", operatorID, "`40 + 2`"))
	nextSent(t, rec)
	require.Equal(t, "42", original.LastResult().MustGet().Text)

	c.HandleMessage(ctx, testMessage("m3", operatorID, "!repl"))
	assert.Equal(t, replConflict, nextSent(t, rec).Content)

	current := c.Sessions().Get("test/" + channelID).MustGet()
	assert.Same(t, original, current)
	assert.Equal(t, StateActive, current.State())
	assert.Equal(t, "42", current.LastResult().MustGet().Text)
	assert.Equal(t, 1, c.Sessions().Count())

	c.HandleMessage(ctx, testMessage("m4", operatorID, "`_`"))
	assert.Equal(t, "```lua\n42\n```", nextSent(t, rec).Content)
}

func TestSessionStartReturnsConflict(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	trigger := testMessage("m1", operatorID, "!repl")

	_, err := c.Sessions().Start(c.ctx, trigger, c.environment(trigger, nil))
	require.NoError(t, err)
	nextSent(t, rec)

	_, err = c.Sessions().Start(c.ctx, trigger, c.environment(trigger, nil))
	require.ErrorIs(t, err, ErrSessionConflict)
}

func TestSessionIdleTimeout(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{IdleTimeout: 100 * time.Millisecond})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)
	s := c.Sessions().Get("test/" + channelID).MustGet()

	assert.Equal(t, replTimeout, nextSent(t, rec).Content)
	<-s.Done()
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, c.Sessions().Count())
	assertNothingSent(t, rec, 300*time.Millisecond)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "!repl"))
	assert.Equal(t, replGreeting, nextSent(t, rec).Content)
}

func TestSessionActivityResetsIdleTimer(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{IdleTimeout: 400 * time.Millisecond})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)

	for i := 0; i < 3; i++ {
		time.Sleep(150 * time.Millisecond)
		c.HandleMessage(ctx, testMessage("line", operatorID, "`1`"))
		assert.Equal(t, "```lua\n1\n```", nextSent(t, rec).Content)
	}
	assert.Equal(t, replTimeout, nextSent(t, rec).Content)
}

func TestSessionIgnoresOtherInput(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)

	c.HandleMessage(ctx, testMessage("m2", "someone-else", "`1 + 1`"))
	c.HandleMessage(ctx, testMessage("m3", operatorID, "1 + 1"))
	other := testMessage("m4", operatorID, "`1 + 1`")
	other.ChannelID = "elsewhere"
	c.HandleMessage(ctx, other)
	assertNothingSent(t, rec, 200*time.Millisecond)

	c.HandleMessage(ctx, testMessage("m5", operatorID, "`3`"))
	assert.Equal(t, "```lua\n3\n```", nextSent(t, rec).Content)
}

func TestSessionLinesKeepOrder(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "`n = 0`"))
	for i := 0; i < 10; i++ {
		c.HandleMessage(ctx, testMessage("inc", operatorID, "```lua\nn = n + 1\nprint(n)\n```"))
	}
	for i := 1; i <= 10; i++ {
		assert.Equal(t, "```lua\n"+strconv.Itoa(i)+"\n```", nextSent(t, rec).Content)
	}
}

func TestSessionOutputTooBig(t *testing.T) {
	c, rec, pub := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "`string.rep('x', 3000)`"))
	assert.Equal(t, tooBigNotice, nextSent(t, rec).Content)
	assert.Empty(t, pub.Documents())
}

func TestSessionSyntaxErrorKeepsSession(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "```lua\nif then\nend\n```"))
	assert.Contains(t, nextSent(t, rec).Content, "SyntaxError")
	assert.Equal(t, StateActive, c.Sessions().Get("test/"+channelID).MustGet().State())

	c.HandleMessage(ctx, testMessage("m3", operatorID, "`5`"))
	assert.Equal(t, "```lua\n5\n```", nextSent(t, rec).Content)
}

func TestSessionsEndOnClose(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	c.HandleMessage(context.Background(), testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)
	s := c.Sessions().Get("test/" + channelID).MustGet()

	require.NoError(t, c.Close())
	<-s.Done()
	assert.Equal(t, 0, c.Sessions().Count())
	assertNothingSent(t, rec, 100*time.Millisecond)
}

func TestCloseLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!repl"))
	nextSent(t, rec)
	c.HandleMessage(ctx, testMessage("m2", operatorID, "`1 + 1`"))
	nextSent(t, rec)

	other := testMessage("m3", operatorID, "!eval return 3")
	other.ChannelID = "other"
	c.HandleMessage(ctx, other)
	nextSent(t, rec)

	require.NoError(t, c.Close())
}
