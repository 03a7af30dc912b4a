package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/samber/mo"
)

const jsFileName = "console.js"

type jsEngine struct{}

// NewJS returns the goja (ECMAScript) engine.
func NewJS() Engine {
	return jsEngine{}
}

func (jsEngine) Name() string { return "js" }

func (jsEngine) NewScope(stdout io.Writer) (Scope, error) {
	vm := goja.New()
	s := &jsScope{vm: vm}

	printFunc := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		_, _ = io.WriteString(stdout, strings.Join(parts, " ")+"\n")
		return goja.Undefined()
	}
	if err := vm.Set("print", printFunc); err != nil {
		return nil, fmt.Errorf("failed to set print: %w", err)
	}
	console := vm.NewObject()
	if err := console.Set("log", printFunc); err != nil {
		return nil, fmt.Errorf("failed to set console.log: %w", err)
	}
	if err := vm.Set("console", console); err != nil {
		return nil, fmt.Errorf("failed to set console: %w", err)
	}
	return s, nil
}

type jsScope struct {
	vm *goja.Runtime
}

type jsProgram struct {
	prog *goja.Program
	mode Mode
}

func (p *jsProgram) Mode() Mode { return p.mode }

func (s *jsScope) Compile(source string, mode Mode) (Program, error) {
	text, lineOffset := source, 0
	switch mode {
	case ModeBody:
		text, lineOffset = "(function() {\n"+source+"\n})()", 1
	case ModeExpression:
		// Wrapped in parentheses a declaration would become an anonymous
		// expression and never bind its name.
		if isJSDeclaration(source) {
			return nil, &SyntaxError{Class: "SyntaxError", Message: "declaration is not an expression"}
		}
		text = "(" + source + "\n)"
	}

	ast, err := parser.ParseFile(nil, jsFileName, text, 0)
	if err != nil {
		return nil, jsSyntaxError(source, err, lineOffset)
	}
	prog, err := goja.CompileAST(ast, false)
	if err != nil {
		return nil, jsSyntaxError(source, err, lineOffset)
	}
	return &jsProgram{prog: prog, mode: mode}, nil
}

func (s *jsScope) Run(ctx context.Context, prog Program) (mo.Option[Value], error) {
	p, ok := prog.(*jsProgram)
	if !ok {
		return mo.None[Value](), fmt.Errorf("program %T was not compiled by the js engine", prog)
	}

	// Interrupt the VM if the context ends while the program is running.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			s.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
		s.vm.ClearInterrupt()
	}()

	val, err := s.vm.RunProgram(p.prog)
	if err != nil {
		return mo.None[Value](), jsRuntimeError(err)
	}
	if p.mode == ModeStatements || val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return mo.None[Value](), nil
	}

	native := exportJS(val)
	text := Format(native)
	if _, isFunc := goja.AssertFunction(val); isFunc || native == nil {
		text = val.String()
	}
	return mo.Some(Value{Native: native, Text: text}), nil
}

func (s *jsScope) Set(name string, value any) error {
	return s.vm.Set(name, s.toJS(value))
}

func (s *jsScope) OpenMath() error {
	const prelude = `for (const k of Object.getOwnPropertyNames(Math)) { globalThis[k] = Math[k]; }
globalThis.e = Math.E;
globalThis.pi = Math.PI;`
	if _, err := s.vm.RunString(prelude); err != nil {
		return fmt.Errorf("failed to open math namespace: %w", err)
	}
	for name, fn := range mathHelpers() {
		if err := s.Set(name, fn); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

func (s *jsScope) ReturnStatement(line string) string {
	return "return " + line
}

func (s *jsScope) Close() {
	s.vm.Interrupt("scope closed")
}

func (s *jsScope) toJS(value any) goja.Value {
	switch v := value.(type) {
	case goja.Value:
		return v
	case HostFunc:
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			args := make([]any, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = exportJS(arg)
			}
			result, err := v(args...)
			if err != nil {
				panic(s.vm.NewGoError(err))
			}
			return s.toJS(result)
		})
	case map[string]any:
		obj := s.vm.NewObject()
		for _, key := range sortedKeys(v) {
			_ = obj.Set(key, s.toJS(v[key]))
		}
		return obj
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = s.toJS(item)
		}
		return s.vm.NewArray(items...)
	default:
		return s.vm.ToValue(v)
	}
}

// exportJS converts a JS value to plain Go data, dropping functions.
func exportJS(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if _, isFunc := goja.AssertFunction(v); isFunc {
		return nil
	}
	return plainGo(v.Export(), 0)
}

func plainGo(v any, depth int) any {
	if depth >= maxConvertDepth {
		return fmt.Sprintf("%v", v)
	}
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plainGo(item, depth+1)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			if converted := plainGo(item, depth+1); converted != nil {
				out[k] = converted
			}
		}
		return out
	case func(goja.FunctionCall) goja.Value:
		return nil
	default:
		return x
	}
}

// isJSDeclaration reports whether source is exactly one function, class,
// let, const or var declaration.
func isJSDeclaration(source string) bool {
	program, err := parser.ParseFile(nil, jsFileName, source, 0)
	if err != nil || len(program.Body) != 1 {
		return false
	}
	switch program.Body[0].(type) {
	case *ast.FunctionDeclaration, *ast.ClassDeclaration, *ast.LexicalDeclaration, *ast.VariableStatement:
		return true
	}
	return false
}

func jsSyntaxError(source string, err error, lineOffset int) error {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		pos := list[0].Position
		msg := list[0].Message
		line, column := pos.Line-lineOffset, pos.Column
		lines := strings.Split(source, "\n")
		if line > len(lines) {
			// reported on the closing wrapper the operator never typed
			line = len(lines)
			column = len(lines[line-1]) + 1
			msg += " at end of input"
		}
		if line < 1 {
			line = 1
		}
		return newSyntaxError(source, msg, line, column)
	}
	var compileErr *goja.CompilerSyntaxError
	if errors.As(err, &compileErr) {
		return &SyntaxError{Class: "SyntaxError", Message: compileErr.Message}
	}
	return &SyntaxError{Class: "SyntaxError", Message: err.Error()}
}

func jsRuntimeError(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		msg := exc.Error()
		if val := exc.Value(); val != nil {
			msg = val.String()
		}
		return &RuntimeError{Message: msg, Trace: strings.TrimSpace(exc.String())}
	}
	return &RuntimeError{Message: err.Error(), Trace: err.Error()}
}
