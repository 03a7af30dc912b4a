package console

import "errors"

var (
	// ErrUndeliverable is returned when neither a direct send nor the paste
	// fallback could deliver a response.
	ErrUndeliverable = errors.New("response undeliverable")
	// ErrSessionConflict is returned when a REPL is requested in a channel
	// that already has one.
	ErrSessionConflict = errors.New("REPL session already active in channel")
	// ErrSessionTimeout ends a session that received no input within the idle window.
	ErrSessionTimeout = errors.New("REPL session idle timeout")
	// ErrUnknownPlatform is returned for messages from a platform with no registered transport.
	ErrUnknownPlatform = errors.New("no transport registered for platform")
)
