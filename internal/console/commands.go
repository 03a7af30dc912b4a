package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/lewisedginton/chat_console/internal/audit"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// CommandHandler runs one console command. args is the text after the
// command name.
type CommandHandler func(ctx context.Context, msg transport.Message, args string) error

// CommandRegistry manages command handlers
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// Lookup returns the handler for command.
func (r *CommandRegistry) Lookup(command string) (CommandHandler, bool) {
	handler, ok := r.handlers[command]
	return handler, ok
}

// setupCommands initialises the command registry with all available commands
func (c *Console) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("eval", c.handleEval)
	c.commands.Register("calc", c.handleCalc)
	c.commands.Register("repl", c.handleREPL)
	c.commands.Register("sh", c.handleShell)
	c.commands.Register("as", c.handleAs)
}

// handleEval handles the eval command
func (c *Console) handleEval(ctx context.Context, msg transport.Message, args string) error {
	source := Normalize(args)
	start := time.Now()
	res := c.pipeline.RunEval(ctx, source, c.environment(msg, c.LastResult()))
	return c.finishOneShot(ctx, msg, "eval", source, res, time.Since(start))
}

// handleCalc handles the calc command
func (c *Console) handleCalc(ctx context.Context, msg transport.Message, args string) error {
	source := Normalize(args)
	start := time.Now()
	res := c.pipeline.RunCalc(ctx, source, c.environment(msg, c.LastResult()))
	return c.finishOneShot(ctx, msg, "calc", source, res, time.Since(start))
}

func (c *Console) finishOneShot(ctx context.Context, msg transport.Message, mode, source string, res Result, d time.Duration) error {
	c.tracker.track(ctx, msg, mode, source, res, d)
	if res.Succeeded() {
		var native any
		if v, ok := res.Value.Get(); ok {
			native = v.Native
		}
		c.setLast(native)
	}

	_, err := c.relay.Deliver(ctx, msg, Body{
		Language:  c.pipeline.Language(),
		Input:     source,
		Output:    res.Output(),
		Succeeded: res.Succeeded(),
	})
	return err
}

// handleREPL handles the repl command
func (c *Console) handleREPL(ctx context.Context, msg transport.Message, _ string) error {
	_, err := c.sessions.Start(ctx, msg, c.environment(msg, nil))
	if err != nil && !errors.Is(err, ErrSessionConflict) {
		return fmt.Errorf("failed to start REPL session: %w", err)
	}
	return nil
}

// handleShell handles the sh command
func (c *Console) handleShell(ctx context.Context, msg transport.Message, args string) error {
	start := time.Now()
	stdout, stderr, err := c.shell.RunShell(ctx, args)
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeStartError
		stderr = err.Error()
		logger.GetLoggerFromContext(ctx, c.logger).Warn("Shell command failed to start", logger.ErrorField(err))
	}
	c.tracker.record(ctx, msg, "sh", args, outcome, time.Since(start))

	_, err = c.relay.Deliver(ctx, msg, Body{
		Language: "sh",
		Input:    args,
		Output:   formatShell(stdout, stderr),
		Raw:      true,
	})
	return err
}

// handleAs handles the as command: "as <member> <command>" runs command as if
// member had sent it from the same message. The operator check already
// passed for the real author, so the inner command is not gated again.
func (c *Console) handleAs(ctx context.Context, msg transport.Message, args string) error {
	who, rest := args, ""
	if idx := strings.IndexFunc(args, unicode.IsSpace); idx >= 0 {
		who, rest = args[:idx], strings.TrimSpace(args[idx:])
	}
	member := memberID(who)
	name, innerArgs, ok := c.parse(c.cfg.Prefix + rest)
	if member == "" || !ok {
		_, err := c.relay.Say(ctx, msg, fmt.Sprintf("Usage: `%sas <member> <command>`", c.cfg.Prefix))
		return err
	}
	handler, ok := c.commands.Lookup(name)
	if !ok {
		return nil
	}

	impersonated := msg
	impersonated.AuthorID = member
	impersonated.Content = c.cfg.Prefix + rest

	logger.GetLoggerFromContext(ctx, c.logger).Info("Running command as member",
		logger.AuthorField(msg.AuthorID),
		logger.StringField("member", member),
		logger.StringField("command", name))
	return handler(ctx, impersonated, innerArgs)
}

// memberID accepts a raw ID or a platform mention (<@123>, <@!123>, <@U1|name>).
func memberID(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">") {
		arg = strings.TrimPrefix(strings.TrimSuffix(arg[2:], ">"), "!")
		arg, _, _ = strings.Cut(arg, "|")
	}
	return arg
}
