// Package capture redirects interpreter output into a buffer for the
// duration of one execution.
package capture

import (
	"bytes"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/lewisedginton/chat_console/internal/engine"
)

// Sink is the stdout handed to an interpreter scope. Its destination can be
// swapped while the scope stays alive. Writes with no destination are dropped.
type Sink struct {
	mu  sync.Mutex
	dst io.Writer
}

// NewSink returns a sink that discards output until Run redirects it.
func NewSink() *Sink {
	return &Sink{dst: io.Discard}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dst.Write(p)
}

func (s *Sink) swap(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.dst
	s.dst = w
	return prev
}

// Run executes fn with the sink redirected to a fresh buffer and returns the
// text written meanwhile. The previous destination is restored on every exit
// path. A panic inside fn is recovered into an *engine.RuntimeError carrying
// the Go stack.
func Run[T any](sink *Sink, fn func() (T, error)) (result T, stdout string, err error) {
	var buf bytes.Buffer
	prev := sink.swap(&buf)
	defer func() {
		if r := recover(); r != nil {
			err = &engine.RuntimeError{
				Message: fmt.Sprintf("panic: %v", r),
				Trace:   fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack()),
			}
		}
		sink.swap(prev)
		stdout = buf.String()
	}()

	result, err = fn()
	return result, stdout, err
}
