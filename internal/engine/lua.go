package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/samber/mo"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const luaChunkName = "console"

type luaEngine struct{}

// NewLua returns the gopher-lua engine. Scopes get the full standard library:
// the console is an operator tool and is deliberately not sandboxed.
func NewLua() Engine {
	return luaEngine{}
}

func (luaEngine) Name() string { return "lua" }

func (luaEngine) NewScope(stdout io.Writer) (Scope, error) {
	L := lua.NewState()
	registerPrintFunction(L, stdout)
	registerIOWriter(L, stdout)
	registerJSONModule(L)
	return &luaScope{L: L}, nil
}

type luaScope struct {
	L *lua.LState
}

type luaProgram struct {
	fn   *lua.LFunction
	mode Mode
}

func (p *luaProgram) Mode() Mode { return p.mode }

func (s *luaScope) Compile(source string, mode Mode) (Program, error) {
	text := source
	if mode == ModeExpression {
		text = "return " + source
	}
	chunk, err := parse.Parse(strings.NewReader(text), luaChunkName)
	if err != nil {
		return nil, luaSyntaxError(source, err)
	}
	proto, err := lua.Compile(chunk, luaChunkName)
	if err != nil {
		return nil, &SyntaxError{Class: "SyntaxError", Message: err.Error()}
	}
	return &luaProgram{fn: s.L.NewFunctionFromProto(proto), mode: mode}, nil
}

func (s *luaScope) Run(ctx context.Context, prog Program) (mo.Option[Value], error) {
	p, ok := prog.(*luaProgram)
	if !ok {
		return mo.None[Value](), fmt.Errorf("program %T was not compiled by the lua engine", prog)
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	if err := s.L.CallByParam(lua.P{Fn: p.fn, NRet: 1, Protect: true}); err != nil {
		return mo.None[Value](), luaRuntimeError(err)
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	if p.mode == ModeStatements || ret == lua.LNil {
		return mo.None[Value](), nil
	}
	native := luaValueToGo(ret)
	text := Format(native)
	if native == nil {
		// functions, userdata and threads have no Go form
		text = ret.String()
	}
	return mo.Some(Value{Native: native, Text: text}), nil
}

func (s *luaScope) Set(name string, value any) error {
	s.L.SetGlobal(name, goValueToLua(s.L, value))
	return nil
}

func (s *luaScope) OpenMath() error {
	mathTbl, ok := s.L.GetGlobal("math").(*lua.LTable)
	if !ok {
		return errors.New("math library is not loaded")
	}
	mathTbl.ForEach(func(key, value lua.LValue) {
		if name, ok := key.(lua.LString); ok {
			s.L.SetGlobal(string(name), value)
		}
	})
	s.L.SetGlobal("e", lua.LNumber(math.E))
	for name, fn := range mathHelpers() {
		s.L.SetGlobal(name, goValueToLua(s.L, fn))
	}
	return nil
}

func (s *luaScope) ReturnStatement(line string) string {
	return "return " + line
}

func (s *luaScope) Close() {
	s.L.Close()
}

func luaSyntaxError(source string, err error) error {
	var perr *parse.Error
	if !errors.As(err, &perr) {
		return &SyntaxError{Class: "SyntaxError", Message: strings.TrimSpace(err.Error())}
	}

	msg := perr.Message
	if perr.Token != "" {
		msg = fmt.Sprintf("%s near '%s'", perr.Message, perr.Token)
	}
	line, column := perr.Pos.Line, perr.Pos.Column
	if line == parse.EOF {
		lines := strings.Split(source, "\n")
		line = len(lines)
		column = len(lines[len(lines)-1]) + 1
		msg = perr.Message + " at end of input"
	}
	return newSyntaxError(source, msg, line, column)
}

func luaRuntimeError(err error) error {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return &RuntimeError{Message: apiErr.Object.String(), Trace: apiErr.Error()}
	}
	return &RuntimeError{Message: err.Error(), Trace: err.Error()}
}

// registerPrintFunction routes print to w using Lua's tab-separated layout.
func registerPrintFunction(ls *lua.LState, w io.Writer) {
	ls.SetGlobal("print", ls.NewFunction(func(l *lua.LState) int {
		parts := make([]string, l.GetTop())
		for i := range parts {
			parts[i] = l.ToStringMeta(l.Get(i + 1)).String()
		}
		_, _ = io.WriteString(w, strings.Join(parts, "\t")+"\n")
		return 0
	}))
}

// registerIOWriter points io.write, io.stdout and the default io.output at w
// so that nothing a snippet writes reaches the process's own stdout.
func registerIOWriter(ls *lua.LState, w io.Writer) {
	ioTbl, ok := ls.GetGlobal("io").(*lua.LTable)
	if !ok {
		return
	}

	writeArgs := func(l *lua.LState, from int) {
		for i := from; i <= l.GetTop(); i++ {
			switch v := l.Get(i).(type) {
			case lua.LString:
				_, _ = io.WriteString(w, string(v))
			case lua.LNumber:
				_, _ = io.WriteString(w, v.String())
			default:
				l.ArgError(i, "string expected, got "+v.Type().String())
			}
		}
	}

	stdout := ls.NewTable()
	ls.SetField(stdout, "write", ls.NewFunction(func(l *lua.LState) int {
		writeArgs(l, 2)
		l.Push(l.Get(1))
		return 1
	}))
	noop := ls.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LTrue)
		return 1
	})
	ls.SetField(stdout, "flush", noop)
	ls.SetField(stdout, "setvbuf", noop)
	ls.SetField(stdout, "close", noop)

	ls.SetField(ioTbl, "stdout", stdout)
	ls.SetField(ioTbl, "write", ls.NewFunction(func(l *lua.LState) int {
		writeArgs(l, 1)
		l.Push(stdout)
		return 1
	}))

	output := ls.GetField(ioTbl, "output")
	ls.SetField(ioTbl, "output", ls.NewFunction(func(l *lua.LState) int {
		if l.GetTop() == 0 {
			l.Push(stdout)
			return 1
		}
		// switching to a file keeps the library's behaviour
		l.Push(output)
		l.Push(l.Get(1))
		l.Call(1, 1)
		return 1
	}))
}

// registerJSONModule registers json.encode and json.decode
func registerJSONModule(ls *lua.LState) {
	jsonMod := ls.NewTable()

	ls.SetField(jsonMod, "encode", ls.NewFunction(func(l *lua.LState) int {
		data, err := json.Marshal(stripFuncs(luaValueToGo(l.Get(1))))
		if err != nil {
			l.Push(lua.LNil)
			l.Push(lua.LString(err.Error()))
			return 2
		}
		l.Push(lua.LString(string(data)))
		return 1
	}))

	ls.SetField(jsonMod, "decode", ls.NewFunction(func(l *lua.LState) int {
		var value any
		if err := json.Unmarshal([]byte(l.CheckString(1)), &value); err != nil {
			l.Push(lua.LNil)
			l.Push(lua.LString(err.Error()))
			return 2
		}
		l.Push(goValueToLua(l, value))
		return 1
	}))

	ls.SetGlobal("json", jsonMod)
}
