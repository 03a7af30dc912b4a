package engine

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// maxConvertDepth bounds table conversion so self-referencing tables terminate.
const maxConvertDepth = 32

func goValueToLua(ls *lua.LState, value any) lua.LValue {
	if value == nil {
		return lua.LNil
	}

	switch v := value.(type) {
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []string:
		tbl := ls.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, lua.LString(item))
		}
		return tbl
	case []any:
		tbl := ls.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, goValueToLua(ls, item))
		}
		return tbl
	case map[string]any:
		tbl := ls.NewTable()
		for _, key := range sortedKeys(v) {
			tbl.RawSetString(key, goValueToLua(ls, v[key]))
		}
		return tbl
	case HostFunc:
		return ls.NewFunction(func(l *lua.LState) int {
			args := make([]any, l.GetTop())
			for i := range args {
				args[i] = luaValueToGo(l.Get(i + 1))
			}
			result, err := v(args...)
			if err != nil {
				l.RaiseError("%s", err.Error())
				return 0
			}
			l.Push(goValueToLua(l, result))
			return 1
		})
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return lua.LString(fmt.Sprintf("%v", v))
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return lua.LString(string(data))
		}
		return goValueToLua(ls, decoded)
	}
}

func luaValueToGo(value lua.LValue) any {
	return luaValueToGoDepth(value, 0)
}

func luaValueToGoDepth(value lua.LValue, depth int) any {
	switch v := value.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if depth >= maxConvertDepth {
			return v.String()
		}
		return luaTableToGo(v, depth+1)
	default:
		return nil
	}
}

// luaTableToGo converts a sequence (keys 1..n) to a slice and anything else to a map.
func luaTableToGo(tbl *lua.LTable, depth int) any {
	isArray := true
	count, maxIndex := 0, 0
	tbl.ForEach(func(key, _ lua.LValue) {
		count++
		num, ok := key.(lua.LNumber)
		if !ok || float64(num) != float64(int(num)) || int(num) < 1 {
			isArray = false
			return
		}
		if int(num) > maxIndex {
			maxIndex = int(num)
		}
	})

	if isArray && maxIndex > 0 && maxIndex == count {
		result := make([]any, maxIndex)
		tbl.ForEach(func(key, value lua.LValue) {
			result[int(key.(lua.LNumber))-1] = luaValueToGoDepth(value, depth)
		})
		return result
	}

	result := make(map[string]any, count)
	tbl.ForEach(func(key, value lua.LValue) {
		result[lua.LVAsString(key)] = luaValueToGoDepth(value, depth)
	})
	return result
}
