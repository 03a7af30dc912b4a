package console

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/lewisedginton/chat_console/internal/engine"
	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/metrics"
)

// DefaultIdleTimeout closes a session that has received no qualifying line.
const DefaultIdleTimeout = 10 * time.Minute

const (
	replGreeting = "Enter code to execute or evaluate. `exit()` or `quit` to exit."
	replConflict = "Already running a REPL session in this channel. Exit it with `quit`."
	replFarewell = "Exiting."
	replTimeout  = "Exiting REPL session."

	sessionInboxSize = 16
)

var quitPhrases = map[string]struct{}{
	"quit":   {},
	"exit":   {},
	"exit()": {},
	"stop":   {},
	"stop()": {},
}

// SessionState is the lifecycle stage of a REPL session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateActive
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Session is an interactive loop bound to one channel and one operator.
type Session struct {
	channel string
	owner   string
	opener  transport.Message
	interp  *Interpreter
	inbox   chan transport.Message
	done    chan struct{}

	mu           sync.Mutex
	state        SessionState
	lastActivity time.Time
	last         mo.Option[engine.Value]
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Owner is the author who opened the session.
func (s *Session) Owner() string {
	return s.owner
}

// LastResult is the value of the most recent line that produced one.
func (s *Session) LastResult() mo.Option[engine.Value] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// LastActivity is when the session last accepted a line.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Done is closed once the session is back to idle.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) setLast(v engine.Value) {
	s.mu.Lock()
	s.last = mo.Some(v)
	s.mu.Unlock()
}

// accepts reports whether msg is input for this session: same author, same
// channel, and wrapped in code marks.
func (s *Session) accepts(msg transport.Message) bool {
	return s.State() == StateActive &&
		msg.AuthorID == s.owner &&
		msg.ChannelKey() == s.channel &&
		strings.HasPrefix(msg.Content, "`")
}

// SessionManager owns at most one Session per channel.
type SessionManager struct {
	pipeline *Pipeline
	relay    *Relay
	tracker  *tracker
	idle     time.Duration
	logger   logger.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func newSessionManager(pipeline *Pipeline, relay *Relay, tr *tracker, idle time.Duration, log logger.Logger, m *metrics.Metrics) *SessionManager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &SessionManager{
		pipeline: pipeline,
		relay:    relay,
		tracker:  tr,
		idle:     idle,
		logger:   log,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session in the trigger's channel. A channel that already has
// one gets a notice and ErrSessionConflict; the existing session is untouched.
// The session runs until a quit phrase, the idle timeout or ctx ends.
func (m *SessionManager) Start(ctx context.Context, trigger transport.Message, env Env) (*Session, error) {
	key := trigger.ChannelKey()
	log := logger.GetLoggerFromContext(ctx, m.logger).WithFields(
		logger.PlatformField(trigger.Platform),
		logger.ChannelField(trigger.ChannelID),
		logger.AuthorField(trigger.AuthorID),
	)

	m.mu.Lock()
	if _, exists := m.sessions[key]; exists {
		m.mu.Unlock()
		log.Info("Rejected REPL start, session already active")
		if _, err := m.relay.Say(ctx, trigger, replConflict); err != nil {
			log.Warn("Failed to send session conflict notice", logger.ErrorField(err))
		}
		return nil, ErrSessionConflict
	}

	env["_"] = nil
	interp, err := m.pipeline.NewInterpreter(env)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	s := &Session{
		channel:      key,
		owner:        trigger.AuthorID,
		opener:       trigger,
		interp:       interp,
		inbox:        make(chan transport.Message, sessionInboxSize),
		done:         make(chan struct{}),
		state:        StateActive,
		lastActivity: time.Now(),
	}
	m.sessions[key] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.SessionOpened()
	log.Info("REPL session started", logger.DurationField("idle_timeout", m.idle))
	if _, err := m.relay.Say(ctx, trigger, replGreeting); err != nil {
		log.Warn("Failed to send session greeting", logger.ErrorField(err))
	}

	go m.loop(ctx, s, log)
	return s, nil
}

// Offer hands msg to the channel's session if the session accepts it.
// Messages that are not session input are left for normal dispatch.
func (m *SessionManager) Offer(msg transport.Message) bool {
	m.mu.Lock()
	s, ok := m.sessions[msg.ChannelKey()]
	m.mu.Unlock()
	if !ok || !s.accepts(msg) {
		return false
	}
	select {
	case s.inbox <- msg:
		return true
	case <-s.done:
		return false
	}
}

// Get returns the session active in a channel.
func (m *SessionManager) Get(channelKey string) mo.Option[*Session] {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[channelKey]
	if !ok {
		return mo.None[*Session]()
	}
	return mo.Some(s)
}

// Count returns the number of open sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every session loop has exited.
func (m *SessionManager) Wait() {
	m.wg.Wait()
}

func (m *SessionManager) loop(ctx context.Context, s *Session, log logger.Logger) {
	defer m.wg.Done()
	defer m.remove(s)

	timer := time.NewTimer(m.idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosing)
			log.Info("REPL session stopped", logger.ErrorField(ctx.Err()))
			return
		case <-timer.C:
			s.setState(StateClosing)
			log.Info("REPL session closed", logger.ErrorField(ErrSessionTimeout))
			if _, err := m.relay.Say(ctx, s.opener, replTimeout); err != nil {
				log.Warn("Failed to send session timeout notice", logger.ErrorField(err))
			}
			return
		case msg := <-s.inbox:
			if !m.handleLine(ctx, s, msg, log) {
				return
			}
			timer.Reset(m.idle)
		}
	}
}

// handleLine runs one line and reports whether the session continues.
func (m *SessionManager) handleLine(ctx context.Context, s *Session, msg transport.Message, log logger.Logger) bool {
	s.touch()
	cleaned := Normalize(msg.Content)

	if _, quit := quitPhrases[cleaned]; quit {
		s.setState(StateClosing)
		log.Info("REPL session closed by operator")
		if _, err := m.relay.Say(ctx, msg, replFarewell); err != nil {
			log.Warn("Failed to send session farewell", logger.ErrorField(err))
		}
		return false
	}

	if err := s.interp.Bind(Env{"message": messageValue(msg)}); err != nil {
		log.Warn("Failed to rebind message", logger.ErrorField(err))
	}

	start := time.Now()
	out := m.pipeline.RunREPLLine(ctx, cleaned, s.interp)
	res := out.OrEmpty()
	m.tracker.track(ctx, msg, "repl", cleaned, res, time.Since(start))

	if !out.IsPresent() {
		return true
	}
	if v, ok := res.Value.Get(); ok && res.Succeeded() {
		s.setLast(v)
		if err := s.interp.Bind(Env{"_": v.Native}); err != nil {
			log.Warn("Failed to bind previous result", logger.ErrorField(err))
		}
	}

	body := Body{Language: m.pipeline.Language(), Input: cleaned, Output: res.Output()}
	if err := m.relay.DeliverEphemeral(ctx, msg, body); err != nil {
		log.Warn("Failed to deliver session output", logger.ErrorField(err))
	}
	return true
}

func (m *SessionManager) remove(s *Session) {
	m.mu.Lock()
	if m.sessions[s.channel] == s {
		delete(m.sessions, s.channel)
	}
	m.mu.Unlock()

	s.interp.Close()
	s.setState(StateIdle)
	m.metrics.SessionClosed()
	close(s.done)
}
