package sandbox

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Lua executes Lua snippets in a sandboxed gopher-lua state
type Lua struct {
	// CallStackSize bounds recursion depth; zero uses the default.
	CallStackSize int
}

// NewLua creates a Lua engine
func NewLua() *Lua {
	return &Lua{CallStackSize: 256}
}

// Eval runs source as a chunk; values returned by the chunk are the result
func (e *Lua) Eval(ctx context.Context, source string, sink *Sink) (res Result, err error) {
	// Create new Lua state
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true, // Don't load any libraries by default
		CallStackSize: e.CallStackSize,
	})
	defer L.Close()

	defer func() {
		if r := recover(); r != nil {
			err = evalFailure(fmt.Sprint(r), nil)
		}
	}()

	// Abort the VM when the run deadline passes
	L.SetContext(ctx)

	// Load only safe libraries
	openSafeLibs(L)

	// Route print/warn into the sink
	registerConsole(L, sink)

	fn, err := L.LoadString(source)
	if err != nil {
		return Result{}, luaFailure(err)
	}

	base := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() != nil {
			return Result{}, interrupted(ctx)
		}
		return Result{}, luaFailure(err)
	}

	// Collect whatever the chunk returned
	var values []string
	for i := base + 1; i <= L.GetTop(); i++ {
		values = append(values, L.ToStringMeta(L.Get(i)).String())
	}
	if len(values) == 0 || (len(values) == 1 && values[0] == "nil") {
		return Result{IsEmpty: true}, nil
	}
	return Result{Value: strings.Join(values, "\t")}, nil
}

// openSafeLibs loads only the safe standard libraries
func openSafeLibs(L *lua.LState) {
	// Base library (pairs, ipairs, type, tostring, tonumber, error, etc.)
	lua.OpenBase(L)

	// Remove dangerous base functions
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Remove non-deterministic math functions
	math := L.GetGlobal("math")
	if tbl, ok := math.(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

// registerConsole binds print to the log channel and warn to the error channel
func registerConsole(L *lua.LState, sink *Sink) {
	writeTo := func(ch Channel) lua.LGFunction {
		return func(L *lua.LState) int {
			n := L.GetTop()
			parts := make([]string, 0, n)
			for i := 1; i <= n; i++ {
				parts = append(parts, L.ToStringMeta(L.Get(i)).String())
			}
			sink.Emit(ch, strings.Join(parts, "\t"))
			return 0
		}
	}
	L.SetGlobal("print", L.NewFunction(writeTo(Log)))
	L.SetGlobal("warn", L.NewFunction(writeTo(Error)))
}

// luaFailure extracts the message raised by error() or the compiler
func luaFailure(err error) error {
	apiErr, ok := err.(*lua.ApiError)
	if !ok || apiErr.Object == nil {
		return evalFailure(err.Error(), err)
	}
	if apiErr.Object == lua.LNil {
		return evalFailure("", fmt.Errorf("%w: nil", ErrUnknownThrow))
	}
	return evalFailure(apiErr.Object.String(), err)
}
