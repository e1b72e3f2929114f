package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewSeededSource(1), logger)
	mgr := scripting.NewManager(roller, logger)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0o644))
	return dir
}

func TestSandbox_UnsafeGlobalsRemoved(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), name)
	}
	require.NoError(t, L.DoString(`assert(math.floor(2.5) == 2); assert(string.upper("a") == "A")`))
}

func TestManager_CallHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function add(a, b) return a + b end
	`)
	require.NoError(t, mgr.LoadLocation("cave", dir, 0))
	ret, err := mgr.CallHook("cave", "add", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_MissingHookIsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadLocation("cave", writeTempLua(t, "empty.lua", `x = 1`), 0))
	ret, err := mgr.CallHook("cave", "nope")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)

	ret, err = mgr.CallHook("cave", "x")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret, "non-function globals are not hooks")
}

func TestManager_UnknownLocationLogsInfo(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret, err := mgr.CallHook("nowhere", "hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterMessage("scripting: no VM for location").Len())
}

func TestManager_GlobalFallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadGlobal(writeTempLua(t, "g.lua", `function who() return "global" end`), 0))
	require.NoError(t, mgr.LoadLocation("ruins", writeTempLua(t, "r.lua", `function who() return "ruins" end`), 0))

	ret, _ := mgr.CallHook("ruins", "who")
	assert.Equal(t, lua.LString("ruins"), ret)
	ret, _ = mgr.CallHook("forest", "who")
	assert.Equal(t, lua.LString("global"), ret)
}

func TestManager_RuntimeErrorIsLoggedNotPropagated(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.LoadLocation("cave", writeTempLua(t, "bad.lua", `function bad() error("boom") end`), 0))
	ret, err := mgr.CallHook("cave", "bad")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestManager_InstructionBudgetIsPerCall(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "loop.lua", `
		function spin() while true do end end
		function small() local s = 0 for i = 1, 10 do s = s + i end return s end
	`)
	require.NoError(t, mgr.LoadLocation("cave", dir, 5000))

	ret, err := mgr.CallHook("cave", "spin")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())

	for i := 0; i < 20; i++ {
		ret, err = mgr.CallHook("cave", "small")
		require.NoError(t, err)
		assert.Equal(t, lua.LNumber(55), ret)
	}
}

func TestManager_LoadErrors(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadLocation("cave", filepath.Join(t.TempDir(), "missing"), 0))
	assert.Error(t, mgr.LoadLocation("cave", writeTempLua(t, "syntax.lua", `function (`), 0))
	assert.Error(t, mgr.LoadLocation("", t.TempDir(), 0))
}

func TestEngineModule(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "engine.lua", `
		function roll() return engine.roll("2d6+100") end
		function bad_roll() local v, err = engine.roll("nonsense") return err end
		function rand() return engine.random(3, 3) end
		function always() return engine.chance(1) end
		function shout() engine.log("hello") return true end
	`)
	require.NoError(t, mgr.LoadLocation("forest", dir, 0))

	ret, _ := mgr.CallHook("forest", "roll")
	n, ok := ret.(lua.LNumber)
	require.True(t, ok)
	assert.GreaterOrEqual(t, int(n), 102)
	assert.LessOrEqual(t, int(n), 112)

	ret, _ = mgr.CallHook("forest", "bad_roll")
	assert.Equal(t, lua.LTString, ret.Type())

	ret, _ = mgr.CallHook("forest", "rand")
	assert.Equal(t, lua.LNumber(3), ret)

	ret, _ = mgr.CallHook("forest", "always")
	assert.Equal(t, lua.LTrue, ret)

	_, _ = mgr.CallHook("forest", "shout")
	entries := logs.FilterMessage("script log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].ContextMap()["message"])
}

func TestManager_ConcurrentCalls(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadLocation("cave", writeTempLua(t, "h.lua", `function id(x) return x end`), 0))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ret, err := mgr.CallHook("cave", "id", lua.LNumber(i))
			assert.NoError(t, err)
			assert.Equal(t, lua.LNumber(i), ret)
		}(i)
	}
	wg.Wait()
}
