// FILE: lixenwraith/forgeconfig/provider_lua.go
package forgeconfig

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// LuaProvider evaluates Lua configuration modules. The chunk's return value is
// the export: a table for a record, or a function returning one.
//
// Two globals are available to scripts:
//
//	from_build_identifier(values [, default])  -- variant selector
//	regexp(pattern)                            -- pattern matcher
//
// Lua functions in the result become Callables bound to the evaluating state,
// which is kept open for as long as they are reachable.
type LuaProvider struct{}

// NewLuaProvider creates a Lua source provider
func NewLuaProvider() *LuaProvider {
	return &LuaProvider{}
}

// Extensions implements SourceProvider
func (p *LuaProvider) Extensions() []string {
	return []string{".lua"}
}

// Load implements SourceProvider
func (p *LuaProvider) Load(ctx context.Context, path string) (any, error) {
	L := lua.NewState()
	conv := &luaConverter{L: L}
	L.SetGlobal("from_build_identifier", L.NewFunction(conv.fromBuildIdentifier))
	L.SetGlobal("regexp", L.NewFunction(conv.compilePattern))

	L.SetContext(ctx)
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, err
	}
	L.RemoveContext()

	var ret lua.LValue = lua.LNil
	if L.GetTop() > 0 {
		ret = L.Get(1)
	}
	L.SetTop(0)

	v, err := conv.toGo(ret)
	if err != nil {
		L.Close()
		return nil, err
	}
	if !conv.retained {
		L.Close()
	}
	return v, nil
}

// luaConverter moves values between a Lua state and the configuration graph
type luaConverter struct {
	mutex    sync.Mutex // Serializes calls into L
	L        *lua.LState
	retained bool                 // A function escaped, L must stay open
	visiting map[*lua.LTable]bool // Tables on the current conversion path
}

func (c *luaConverter) toGo(v lua.LValue) (any, error) {
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTBool:
		return lua.LVAsBool(v), nil
	case lua.LTNumber:
		n := float64(v.(lua.LNumber))
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), nil
		}
		return n, nil
	case lua.LTString:
		return v.String(), nil
	case lua.LTTable:
		return c.tableToGo(v.(*lua.LTable))
	case lua.LTFunction:
		c.retained = true
		return c.callable(v.(*lua.LFunction)), nil
	case lua.LTUserData:
		switch ud := v.(*lua.LUserData).Value.(type) {
		case *Selector, *regexp.Regexp:
			return ud, nil
		default:
			return nil, fmt.Errorf("unsupported userdata %T", ud)
		}
	}
	return nil, fmt.Errorf("unsupported lua value of type %s", v.Type())
}

// tableToGo returns a sequence for tables with only keys 1..n, else a record
func (c *luaConverter) tableToGo(t *lua.LTable) (any, error) {
	if c.visiting[t] {
		return nil, ErrCyclicTable
	}
	if c.visiting == nil {
		c.visiting = make(map[*lua.LTable]bool)
	}
	c.visiting[t] = true
	defer delete(c.visiting, t)

	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n := t.MaxN(); n > 0 && n == count {
		seq := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			if inner, ok := t.RawGetInt(i).(*lua.LTable); ok && c.visiting[inner] {
				return nil, fmt.Errorf("%w at index %d", ErrCyclicTable, i)
			}
			v, err := c.toGo(t.RawGetInt(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			seq = append(seq, v)
		}
		return seq, nil
	}

	values := make(map[string]any, count)
	var convErr error
	t.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		if inner, ok := v.(*lua.LTable); ok && c.visiting[inner] {
			convErr = fmt.Errorf("%w at key %s", ErrCyclicTable, k.String())
			return
		}
		gv, err := c.toGo(v)
		if err != nil {
			convErr = fmt.Errorf("key %s: %w", k.String(), err)
			return
		}
		values[k.String()] = gv
	})
	if convErr != nil {
		return nil, convErr
	}
	return RecordFromMap(values), nil
}

func (c *luaConverter) toLua(v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case *Node:
		return c.toLua(t.Record())
	case *Record:
		tbl := c.L.NewTable()
		for _, k := range t.Keys() {
			e, _ := t.Get(k)
			tbl.RawSetString(k, c.toLua(e))
		}
		return tbl
	case []any:
		tbl := c.L.NewTable()
		for _, e := range t {
			tbl.Append(c.toLua(e))
		}
		return tbl
	}
	ud := c.L.NewUserData()
	ud.Value = v
	return ud
}

// callable binds fn to the converter's state
func (c *luaConverter) callable(fn *lua.LFunction) Callable {
	return func(args ...any) (any, error) {
		c.mutex.Lock()
		defer c.mutex.Unlock()

		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = c.toLua(a)
		}
		if err := c.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
			return nil, err
		}
		ret := c.L.Get(-1)
		c.L.Pop(1)
		return c.toGo(ret)
	}
}

func (c *luaConverter) fromBuildIdentifier(L *lua.LState) int {
	tbl := L.CheckTable(1)
	sel := &Selector{Values: make(map[string]any)}
	tbl.ForEach(func(k, v lua.LValue) {
		gv, err := c.toGo(v)
		if err != nil {
			L.RaiseError("from_build_identifier: %v", err)
		}
		sel.Values[k.String()] = gv
	})
	if L.GetTop() >= 2 {
		def, err := c.toGo(L.Get(2))
		if err != nil {
			L.RaiseError("from_build_identifier: %v", err)
		}
		sel.Default = def
		sel.HasDefault = true
	}

	ud := L.NewUserData()
	ud.Value = sel
	L.Push(ud)
	return 1
}

func (c *luaConverter) compilePattern(L *lua.LState) int {
	re, err := regexp.Compile(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	ud := L.NewUserData()
	ud.Value = re
	L.Push(ud)
	return 1
}
