package console

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_console/internal/engine"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/internal/transport/transporttest"
)

func TestNewValidation(t *testing.T) {
	rec := transporttest.NewRecorder()
	auth := NewOperators(map[string][]string{"test": {operatorID}})

	_, err := New(Options{Transports: []transport.Transport{rec}, Authorizer: auth})
	assert.Error(t, err)
	_, err = New(Options{Engine: engine.NewLua(), Transports: []transport.Transport{rec}})
	assert.Error(t, err)
	_, err = New(Options{Engine: engine.NewLua(), Authorizer: auth})
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	c, _, _ := newTestConsole(t, Config{Prefix: ">>"})

	tests := []struct {
		content string
		name    string
		args    string
		ok      bool
	}{
		{content: ">>eval return 1", name: "eval", args: "return 1", ok: true},
		{content: ">>eval\n```lua\nreturn 1\n```", name: "eval", args: "```lua\nreturn 1\n```", ok: true},
		{content: ">>repl", name: "repl", ok: true},
		{content: ">> eval", ok: false},
		{content: ">>", ok: false},
		{content: "eval return 1", ok: false},
	}
	for _, tt := range tests {
		name, args, ok := c.parse(tt.content)
		assert.Equal(t, tt.ok, ok, tt.content)
		assert.Equal(t, tt.name, name, tt.content)
		assert.Equal(t, tt.args, args, tt.content)
	}
}

func TestEvalCommand(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()
	trigger := testMessage("m1", operatorID, "!eval ```lua\nprint(author)\nreturn 1 + 1\n```")

	c.HandleMessage(ctx, trigger)
	sent := nextSent(t, rec)
	assert.Equal(t, "```lua\nop\n2\n```", sent.Content)

	require.Eventually(t, func() bool {
		mapping, ok := c.Mappings().Lookup(trigger).Get()
		return ok && mapping.Response.ID == sent.ID
	}, time.Second, 10*time.Millisecond)
	require.Len(t, rec.Reactions(), 1)
	assert.Equal(t, trigger.ID, rec.Reactions()[0].Message.ID)
	assert.Equal(t, float64(2), c.LastResult())
}

func TestEvalCarriesLastResult(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!eval return {1, 2, 3}"))
	assert.Equal(t, "```lua\n[1,2,3]\n```", nextSent(t, rec).Content)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "!eval return #_"))
	assert.Equal(t, "```lua\n3\n```", nextSent(t, rec).Content)

	c.HandleMessage(ctx, testMessage("m3", operatorID, "!calc _ * 2"))
	assert.Equal(t, "```lua\n6\n```", nextSent(t, rec).Content)
}

func TestEvalFailure(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID, "!eval return 5"))
	nextSent(t, rec)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "!eval error(\"ValueError: x\")"))
	sent := nextSent(t, rec)
	assert.True(t, strings.HasPrefix(sent.Content, "```lua\n"))
	assert.Contains(t, sent.Content, "ValueError: x")

	c.HandleMessage(ctx, testMessage("m3", operatorID, "!eval return (("))
	assert.Contains(t, nextSent(t, rec).Content, "SyntaxError")

	assert.Len(t, rec.Reactions(), 1)
	assert.Equal(t, float64(5), c.LastResult())
}

func TestEvalBindings(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{Name: "opsbot", Version: "1.2.3"})
	ctx := context.Background()

	c.HandleMessage(ctx, testMessage("m1", operatorID,
		"!eval return table.concat({bot.name, bot.version, bot.platform, ctx.channel, message.id, channel}, ',')"))
	assert.Equal(t, "```lua\nopsbot,1.2.3,test,chan,m1,chan\n```", nextSent(t, rec).Content)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "!eval return bot.goroutines() > 0 and bot.sessions() == 0"))
	assert.Equal(t, "```lua\ntrue\n```", nextSent(t, rec).Content)
}

func TestEvalOverflow(t *testing.T) {
	c, rec, pub := newTestConsole(t, Config{})
	c.HandleMessage(context.Background(), testMessage("m1", operatorID, "!eval return string.rep('z', 2500)"))

	assert.Equal(t, "https://paste.example/abc", nextSent(t, rec).Content)
	docs := pub.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "return string.rep('z', 2500)", docs[0].Files[0].Content)
	assert.Equal(t, strings.Repeat("z", 2500), docs[0].Files[1].Content)
	assert.Len(t, rec.Reactions(), 1)
}

func TestShellCommand(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	c.HandleMessage(context.Background(), testMessage("m1", operatorID, "!sh echo hi; echo oops >&2; exit 2"))

	assert.Equal(t, "Stderr: ```oops\n```\n\n\nStdout: ```hi\n```", nextSent(t, rec).Content)
	assert.Empty(t, rec.Reactions())
}

func TestUnauthorizedIsSilent(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	for _, content := range []string{"!eval return 1", "!calc 1", "!repl", "!sh echo hi"} {
		c.HandleMessage(ctx, testMessage("x", "intruder", content))
	}
	c.HandleMessage(ctx, testMessage("m1", operatorID, "!unknown"))
	c.HandleMessage(ctx, testMessage("m2", operatorID, "hello"))
	assertNothingSent(t, rec, 200*time.Millisecond)
	assert.Empty(t, rec.Reactions())
	assert.Equal(t, 0, c.Sessions().Count())
}

func TestAsRunsCommandAsMember(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	trigger := testMessage("m1", operatorID, "!as <@!u2> eval return author .. ':' .. message.content")
	c.HandleMessage(ctx, trigger)
	assert.Equal(t, "```lua\nu2:!eval return author .. ':' .. message.content\n```", nextSent(t, rec).Content)

	reactions := rec.Reactions()
	require.Len(t, reactions, 1)
	assert.Equal(t, "m1", reactions[0].Message.ID)
	assert.True(t, c.Mappings().Lookup(trigger).IsPresent())

	c.HandleMessage(ctx, testMessage("m2", operatorID, "!as u3\neval return author"))
	assert.Equal(t, "```lua\nu3\n```", nextSent(t, rec).Content)
}

func TestAsRequiresOperator(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	c.HandleMessage(context.Background(), testMessage("m1", "intruder", "!as "+operatorID+" eval return 1"))

	assertNothingSent(t, rec, 200*time.Millisecond)
	assert.Empty(t, rec.Reactions())
}

func TestAsUsage(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	for i, content := range []string{"!as", "!as u2", "!as u2   "} {
		c.HandleMessage(ctx, testMessage(fmt.Sprintf("m%d", i), operatorID, content))
		assert.Equal(t, "Usage: `!as <member> <command>`", nextSent(t, rec).Content)
	}

	c.HandleMessage(ctx, testMessage("m9", operatorID, "!as u2 nosuchcommand"))
	assertNothingSent(t, rec, 200*time.Millisecond)
}

func TestMemberID(t *testing.T) {
	tests := map[string]string{
		"123":          "123",
		"<@123>":       "123",
		"<@!123>":      "123",
		"<@U42|alice>": "U42",
		" u7 ":         "u7",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, memberID(in), in)
	}
}

func TestReplayEditedCommand(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	before := testMessage("m1", operatorID, "!eval return 1")
	c.HandleMessage(ctx, before)
	first := nextSent(t, rec)

	edited := time.Now()
	after := before
	after.Content = "!eval return 2"
	after.EditedAt = &edited
	c.HandleEdit(ctx, before, after)

	second := nextSent(t, rec)
	assert.Equal(t, "```lua\n2\n```", second.Content)
	assert.Equal(t, []transport.Message{first}, rec.Deleted())
	require.Eventually(t, func() bool {
		mapping, ok := c.Mappings().Lookup(after).Get()
		return ok && mapping.Response.ID == second.ID
	}, time.Second, 10*time.Millisecond)
	assertNothingSent(t, rec, 100*time.Millisecond)
}

func TestReplayAnyCommand(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	before := testMessage("m1", operatorID, "!sh echo one")
	c.HandleMessage(ctx, before)
	first := nextSent(t, rec)

	after := before
	after.Content = "!eval return 'two'"
	c.HandleEdit(ctx, before, after)

	assert.Equal(t, "```lua\ntwo\n```", nextSent(t, rec).Content)
	assert.Equal(t, []transport.Message{first}, rec.Deleted())
}

func TestReplayWithoutResponseIsNoop(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	before := testMessage("m1", operatorID, "just chatting")
	after := before
	after.Content = "!eval return 1"
	c.HandleEdit(ctx, before, after)

	c.HandleMessage(ctx, testMessage("m2", operatorID, "!eval return 'marker'"))
	assert.Equal(t, "```lua\nmarker\n```", nextSent(t, rec).Content)
	assert.Empty(t, rec.Deleted())
	assert.Len(t, rec.Sent(), 1)
}

func TestReplayIgnoresDeleteFailure(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	rec.DeleteErr = transporttest.ErrUnavailable
	ctx := context.Background()

	before := testMessage("m1", operatorID, "!eval return 1")
	c.HandleMessage(ctx, before)
	nextSent(t, rec)

	after := before
	after.Content = "!eval return 3"
	c.HandleEdit(ctx, before, after)
	assert.Equal(t, "```lua\n3\n```", nextSent(t, rec).Content)
}

func TestReplayEditTwice(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	original := testMessage("m1", operatorID, "!eval return 1")
	c.HandleMessage(ctx, original)
	first := nextSent(t, rec)

	second := original
	second.Content = "!eval return 2"
	c.HandleEdit(ctx, original, second)
	secondResponse := nextSent(t, rec)

	third := original
	third.Content = "!eval return 3"
	c.HandleEdit(ctx, second, third)
	assert.Equal(t, "```lua\n3\n```", nextSent(t, rec).Content)

	assert.Equal(t, []transport.Message{first, secondResponse}, rec.Deleted())
}

func TestIdleChannelWorkersAreReleased(t *testing.T) {
	c, rec, _ := newTestConsole(t, Config{})
	ctx := context.Background()

	for i := range 3 {
		msg := testMessage(fmt.Sprintf("m%d", i), operatorID, "!eval return 1")
		msg.ChannelID = fmt.Sprintf("chan-%d", i)
		c.HandleMessage(ctx, msg)
	}
	for range 3 {
		nextSent(t, rec)
	}
	require.Eventually(t, func() bool { return c.Channels() == 0 }, 2*time.Second, 10*time.Millisecond)

	c.HandleMessage(ctx, testMessage("m9", operatorID, "!eval return 2"))
	assert.Equal(t, "```lua\n2\n```", nextSent(t, rec).Content)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, _, _ := newTestConsole(t, Config{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	c.HandleMessage(context.Background(), testMessage("m1", operatorID, "!eval return 1"))
}

func TestOperators(t *testing.T) {
	ops := NewOperators(map[string][]string{"discord": {"1", ""}, "slack": {"U1"}})

	assert.True(t, ops.IsOperator(transport.Message{Platform: "discord", AuthorID: "1"}))
	assert.True(t, ops.IsOperator(transport.Message{Platform: "slack", AuthorID: "U1"}))
	assert.False(t, ops.IsOperator(transport.Message{Platform: "slack", AuthorID: "1"}))
	assert.False(t, ops.IsOperator(transport.Message{Platform: "discord", AuthorID: ""}))
	assert.False(t, ops.IsOperator(transport.Message{Platform: "telegram", AuthorID: "1"}))
}
