// Package audit records every console execution.
package audit

import (
	"context"
	"time"

	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/prefixed_uuid"
)

// Outcomes recorded for an execution.
const (
	OutcomeSuccess      = "success"
	OutcomeSyntaxError  = "syntax_error"
	OutcomeRuntimeError = "runtime_error"
	OutcomeStartError   = "start_error"
)

// Entry describes one execution.
type Entry struct {
	ID        prefixed_uuid.PrefixedUUID
	Platform  string
	ChannelID string
	AuthorID  string
	MessageID string
	Mode      string
	Source    string
	Outcome   string
	Duration  time.Duration
	At        time.Time
}

// NewEntry returns an entry with a fresh ID and timestamp.
func NewEntry() Entry {
	return Entry{ID: prefixed_uuid.New("exec"), At: time.Now().UTC()}
}

// Recorder persists execution entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// LogRecorder writes entries to the structured log.
type LogRecorder struct {
	logger logger.Logger
}

// NewLogRecorder creates a recorder that logs at info level.
func NewLogRecorder(log logger.Logger) *LogRecorder {
	return &LogRecorder{logger: log}
}

func (r *LogRecorder) Record(_ context.Context, entry Entry) error {
	r.logger.Info("Console execution",
		logger.StringField("execution_id", entry.ID.String()),
		logger.PlatformField(entry.Platform),
		logger.ChannelField(entry.ChannelID),
		logger.AuthorField(entry.AuthorID),
		logger.MessageField(entry.MessageID),
		logger.ModeField(entry.Mode),
		logger.StringField("outcome", entry.Outcome),
		logger.DurationField("duration", entry.Duration),
		logger.IntField("source_length", len(entry.Source)))
	return nil
}
