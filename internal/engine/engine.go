// Package engine embeds the snippet interpreters used by the operator console.
//
// An Engine produces Scopes. A Scope is one interpreter instance with its own
// globals: one-shot evaluations use a fresh Scope per run, interactive
// sessions keep a single Scope alive for their whole lifetime so that names
// defined on one line are visible on the next.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// Mode selects how source text is compiled.
type Mode int

const (
	// ModeBody compiles the source as the body of an implicit callable.
	// A top-level return statement produces the value.
	ModeBody Mode = iota
	// ModeExpression compiles the source as a single expression whose value is the result.
	ModeExpression
	// ModeStatements compiles the source as a block executed for effect only.
	ModeStatements
)

func (m Mode) String() string {
	switch m {
	case ModeBody:
		return "body"
	case ModeExpression:
		return "expression"
	case ModeStatements:
		return "statements"
	default:
		return "unknown"
	}
}

// Program is a compiled snippet bound to the Scope that compiled it.
type Program interface {
	Mode() Mode
}

// HostFunc is a Go function exposed to snippets. Arguments arrive as plain Go
// values (float64/int64, string, bool, []any, map[string]any or nil).
type HostFunc func(args ...any) (any, error)

// Value is a result produced by a snippet.
type Value struct {
	// Native is the Go representation, suitable for binding into another Scope.
	Native any
	// Text is the display form.
	Text string
}

// Scope is a single interpreter instance. Scopes are not safe for concurrent use.
type Scope interface {
	// Compile parses source in the given mode. Failures are *SyntaxError.
	Compile(source string, mode Mode) (Program, error)
	// Run executes a program compiled by this Scope. Failures are *RuntimeError.
	// Statement programs never produce a value.
	Run(ctx context.Context, prog Program) (mo.Option[Value], error)
	// Set binds a global name. Values may be HostFuncs or maps containing them.
	Set(name string, value any) error
	// OpenMath copies the math library into the globals and adds numeric helpers.
	OpenMath() error
	// ReturnStatement rewrites a single line so that it returns its value.
	ReturnStatement(line string) string
	Close()
}

// Engine creates Scopes for one language.
type Engine interface {
	// Name is the language tag used for code fences and file extensions.
	Name() string
	// NewScope creates an interpreter whose print output goes to stdout.
	NewScope(stdout io.Writer) (Scope, error)
}

// New returns the engine registered under name.
func New(name string) (Engine, error) {
	switch strings.ToLower(name) {
	case "", "lua":
		return NewLua(), nil
	case "js", "javascript":
		return NewJS(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// SyntaxError reports a snippet that failed to compile. Nothing was executed.
type SyntaxError struct {
	Class   string
	Message string
	// Line and Column are 1-based; zero when unknown.
	Line   int
	Column int
	// Text is the offending source line.
	Text string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Class, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Render formats the error as the offending line, a caret under the failing
// column and the class-qualified message.
func (e *SyntaxError) Render() string {
	var b strings.Builder
	if e.Text != "" {
		b.WriteString(e.Text)
		b.WriteString("\n")
		col := e.Column
		if col < 1 {
			col = 1
		}
		if col > len(e.Text)+1 {
			col = len(e.Text) + 1
		}
		b.WriteString(strings.Repeat(" ", col-1))
		b.WriteString("^\n")
	}
	b.WriteString(e.Class)
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// newSyntaxError fills in the offending line of source.
func newSyntaxError(source, message string, line, column int) *SyntaxError {
	err := &SyntaxError{Class: "SyntaxError", Message: message, Line: line, Column: column}
	lines := strings.Split(source, "\n")
	if line >= 1 && line <= len(lines) {
		err.Text = lines[line-1]
	}
	return err
}

// RuntimeError reports a failure raised while a snippet was running.
type RuntimeError struct {
	Message string
	// Trace is the full error text including the interpreter stack trace.
	Trace string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Format renders a native value for display.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any, map[string]any:
		data, err := json.Marshal(stripFuncs(x))
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(data)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// stripFuncs replaces host functions so that values stay JSON-encodable.
func stripFuncs(v any) any {
	switch x := v.(type) {
	case HostFunc:
		return "<function>"
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = stripFuncs(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = stripFuncs(item)
		}
		return out
	default:
		return v
	}
}

// sortedKeys gives host tables a stable construction order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
