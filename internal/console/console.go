// Package console is the operator console: it runs snippets sent by an
// authorized operator over chat and relays the results back to the channel.
//
// Incoming messages reach the Console through transport.Handler. A message
// that is input for an active REPL session is handed to that session;
// anything else is queued on its channel's serial worker and dispatched as a
// command. Work in one channel runs strictly in arrival order; channels do
// not wait on each other.
package console

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"

	"github.com/lewisedginton/chat_console/internal/audit"
	"github.com/lewisedginton/chat_console/internal/engine"
	"github.com/lewisedginton/chat_console/internal/paste"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/metrics"
)

// Config holds the console's behavioural settings.
type Config struct {
	// Name and Version are exposed to snippets through the bot binding.
	Name    string
	Version string
	// Prefix precedes command names, e.g. "!" in "!eval".
	Prefix string
	// Ceiling is the largest response sent directly, in characters.
	Ceiling int
	// IdleTimeout closes a REPL session with no input.
	IdleTimeout time.Duration
	// Shell runs the sh command, "sh" when empty.
	Shell string
}

// Options are the collaborators of a Console.
type Options struct {
	Config     Config
	Engine     engine.Engine
	Transports []transport.Transport
	Publisher  paste.Publisher
	Authorizer Authorizer
	Audit      audit.Recorder
	Logger     logger.Logger
	Metrics    *metrics.Metrics
}

// Console owns the console state for the life of the process: the response
// mappings, the REPL sessions and the last one-shot result.
type Console struct {
	cfg      Config
	pipeline *Pipeline
	shell    Shell
	relay    *Relay
	sessions *SessionManager
	auth     Authorizer
	commands *CommandRegistry
	tracker  *tracker
	logger   logger.Logger
	metrics  *metrics.Metrics
	started  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	lastMu sync.Mutex
	last   any

	queueMu sync.Mutex
	queues  map[string]*channelQueue
	closed  bool
	// reaping tracks pools of channels that went idle and are being stopped.
	reaping sync.WaitGroup
}

// channelQueue is the serial worker of one channel. pending counts submitted
// tasks that have not finished; at zero the worker is released.
type channelQueue struct {
	pool    *workerpool.WorkerPool
	pending int
}

var _ transport.Handler = (*Console)(nil)

// New creates a Console. Call Close to stop its sessions and workers.
func New(opts Options) (*Console, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if opts.Authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	if len(opts.Transports) == 0 {
		return nil, errors.New("at least one transport is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	cfg := opts.Config
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.Name == "" {
		cfg.Name = "console"
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := opts.Logger
	pipeline := NewPipeline(opts.Engine)
	relay := NewRelay(RelayConfig{
		Transports: NewTransports(opts.Transports...),
		Publisher:  opts.Publisher,
		Ceiling:    cfg.Ceiling,
		Logger:     log,
		Metrics:    opts.Metrics,
	})
	tr := &tracker{audit: opts.Audit, metrics: opts.Metrics, logger: log}

	c := &Console{
		cfg:      cfg,
		pipeline: pipeline,
		shell:    Shell{Path: cfg.Shell},
		relay:    relay,
		sessions: newSessionManager(pipeline, relay, tr, cfg.IdleTimeout, log, opts.Metrics),
		auth:     opts.Authorizer,
		tracker:  tr,
		logger:   log,
		metrics:  opts.Metrics,
		started:  time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		queues:   make(map[string]*channelQueue),
	}
	c.setupCommands()
	return c, nil
}

// Sessions returns the REPL session manager.
func (c *Console) Sessions() *SessionManager {
	return c.sessions
}

// Mappings returns the trigger to response record.
func (c *Console) Mappings() *Mappings {
	return c.relay.Mappings()
}

// LastResult is the value of the most recent successful one-shot evaluation.
func (c *Console) LastResult() any {
	c.lastMu.Lock()
	defer c.lastMu.Unlock()
	return c.last
}

func (c *Console) setLast(v any) {
	c.lastMu.Lock()
	c.last = v
	c.lastMu.Unlock()
}

// HandleMessage routes an incoming message to its channel's REPL session or
// queues it for dispatch.
func (c *Console) HandleMessage(ctx context.Context, msg transport.Message) {
	if c.sessions.Offer(msg) {
		return
	}
	if _, _, ok := c.parse(msg.Content); !ok {
		return
	}
	cmdCtx := c.commandContext(ctx)
	c.enqueue(msg.ChannelKey(), func() {
		c.Dispatch(cmdCtx, msg)
	})
}

// HandleEdit queues an edit for replay on the message's channel.
func (c *Console) HandleEdit(ctx context.Context, before, after transport.Message) {
	cmdCtx := c.commandContext(ctx)
	c.enqueue(before.ChannelKey(), func() {
		c.Replay(cmdCtx, before, after)
	})
}

// commandContext detaches work from the transport's event context so that it
// lives as long as the console, keeping the event's correlation ID.
func (c *Console) commandContext(ctx context.Context) context.Context {
	id := logger.GetCorrelationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	return logger.WithCorrelationIDContext(c.ctx, id)
}

func (c *Console) enqueue(channelKey string, task func()) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.closed {
		return
	}
	q, ok := c.queues[channelKey]
	if !ok {
		q = &channelQueue{pool: workerpool.New(1)}
		c.queues[channelKey] = q
	}
	q.pending++
	q.pool.Submit(func() {
		task()
		c.release(channelKey, q)
	})
}

// release drops a channel's worker once its last queued task has finished.
// A later message for the channel starts a new worker; nothing of the old
// one is still running by then, so order within the channel is kept.
func (c *Console) release(channelKey string, q *channelQueue) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	q.pending--
	if q.pending > 0 || c.closed || c.queues[channelKey] != q {
		return
	}
	delete(c.queues, channelKey)
	c.reaping.Add(1)
	go func() {
		defer c.reaping.Done()
		// Stop waits for this task's worker to return, so it cannot run on it.
		q.pool.Stop()
	}()
}

// Channels returns the number of channels with queued or running work.
func (c *Console) Channels() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queues)
}

// Dispatch runs msg as a command. Messages that are not commands and
// commands from anyone but the operator are ignored without a reply.
func (c *Console) Dispatch(ctx context.Context, msg transport.Message) {
	name, args, ok := c.parse(msg.Content)
	if !ok {
		return
	}
	handler, ok := c.commands.Lookup(name)
	if !ok {
		return
	}

	log := logger.GetLoggerFromContext(ctx, c.logger).WithFields(
		logger.PlatformField(msg.Platform),
		logger.ChannelField(msg.ChannelID),
		logger.AuthorField(msg.AuthorID),
		logger.MessageField(msg.ID),
	)
	if !c.auth.IsOperator(msg) {
		log.Debug("Ignoring command from non-operator", logger.StringField("command", name))
		return
	}

	log.Info("Dispatching command", logger.StringField("command", name))
	if err := handler(ctx, msg, args); err != nil {
		log.Error("Command failed", logger.StringField("command", name), logger.ErrorField(err))
	}
}

// parse splits "<prefix><name> <args>" into name and args.
func (c *Console) parse(content string) (name, args string, ok bool) {
	if !strings.HasPrefix(content, c.cfg.Prefix) {
		return "", "", false
	}
	rest := content[len(c.cfg.Prefix):]
	idx := strings.IndexFunc(rest, unicode.IsSpace)
	if idx < 0 {
		return rest, "", rest != ""
	}
	if idx == 0 {
		return "", "", false
	}
	return rest[:idx], strings.TrimSpace(rest[idx:]), true
}

// environment builds the names bound into a snippet run for msg.
func (c *Console) environment(msg transport.Message, previous any) Env {
	message := messageValue(msg)
	return Env{
		"ctx": map[string]any{
			"platform": msg.Platform,
			"channel":  msg.ChannelID,
			"author":   msg.AuthorID,
			"message":  message,
			"prefix":   c.cfg.Prefix,
		},
		"author":  msg.AuthorID,
		"channel": msg.ChannelID,
		"message": message,
		"bot":     c.processHandle(msg.Platform),
		"_":       previous,
	}
}

func messageValue(msg transport.Message) map[string]any {
	return map[string]any{
		"id":       msg.ID,
		"channel":  msg.ChannelID,
		"author":   msg.AuthorID,
		"content":  msg.Content,
		"platform": msg.Platform,
	}
}

// processHandle exposes read-only facts about the running process.
func (c *Console) processHandle(platform string) map[string]any {
	return map[string]any{
		"name":     c.cfg.Name,
		"version":  c.cfg.Version,
		"platform": platform,
		"uptime": engine.HostFunc(func(...any) (any, error) {
			return time.Since(c.started).Seconds(), nil
		}),
		"goroutines": engine.HostFunc(func(...any) (any, error) {
			return runtime.NumGoroutine(), nil
		}),
		"memory": engine.HostFunc(func(...any) (any, error) {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return map[string]any{
				"alloc":        float64(ms.Alloc),
				"total_alloc":  float64(ms.TotalAlloc),
				"sys":          float64(ms.Sys),
				"heap_objects": float64(ms.HeapObjects),
				"num_gc":       float64(ms.NumGC),
			}, nil
		}),
		"sessions": engine.HostFunc(func(...any) (any, error) {
			return c.sessions.Count(), nil
		}),
		"mappings": engine.HostFunc(func(...any) (any, error) {
			return c.relay.Mappings().Len(), nil
		}),
	}
}

// Close ends every session, waits for queued work and releases the workers.
func (c *Console) Close() error {
	c.queueMu.Lock()
	if c.closed {
		c.queueMu.Unlock()
		return nil
	}
	c.closed = true
	pools := c.queues
	c.queues = nil
	c.queueMu.Unlock()

	c.cancel()
	for _, q := range pools {
		q.pool.StopWait()
	}
	c.reaping.Wait()
	c.sessions.Wait()
	c.logger.Info("Console stopped", logger.IntField("channels", len(pools)))
	return nil
}
