// Package scripting runs per-location Lua scripts in sandboxed GopherLua VMs.
// Scripts customise enemy behaviour through hooks; every hook call runs
// under an instruction budget and Lua failures never reach the caller.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget per script execution when no
// location override is configured.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done has been called limit times.
// GopherLua's main loop calls Done once per opcode, so this is an exact
// instruction budget.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining atomic.Int64
}

func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

func newCountingContext(limit int) (*countingContext, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	c := &countingContext{Context: base, cancel: cancel}
	c.remaining.Store(int64(limit))
	return c, cancel
}

// NewSandboxedState creates an LState with only the base, table, string and
// math libraries and without dofile, loadfile, load, collectgarbage or require.
//
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// withBudget runs fn with L limited to limit opcodes. A limit <= 0 uses
// DefaultInstructionLimit.
func withBudget(L *lua.LState, limit int, fn func() error) error {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := newCountingContext(limit)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()
	return fn()
}
