package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

// globalLocationID is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when a location has none.
const globalLocationID = "__global__"

// vm is one sandboxed state. LStates are single-threaded, so calls serialise on mu.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed VM per location and dispatches hooks.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller must be non-nil. A nil logger is replaced by a no-op logger.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	return &Manager{vms: make(map[string]*vm), roller: roller, logger: observability.OrNop(logger)}
}

// LoadLocation creates a VM for locationID and executes every *.lua file in
// scriptDir in lexicographic order. A previous VM for the location is replaced.
//
// Postcondition: returns an error on unreadable directories and Lua load failures.
func (m *Manager) LoadLocation(locationID, scriptDir string, instLimit int) error {
	if locationID == "" {
		return fmt.Errorf("scripting: location id must not be empty")
	}
	return m.loadInto(locationID, scriptDir, instLimit)
}

// LoadGlobal creates the fallback VM consulted for locations without scripts.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalLocationID, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState()
	m.RegisterModules(L, key)
	for _, path := range files {
		if err := withBudget(L, instLimit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripts loaded", zap.String("location", key), zap.Int("files", len(files)))
	return nil
}

func (m *Manager) lookup(locationID string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vms[locationID]; ok {
		return v
	}
	return m.vms[globalLocationID]
}

// CallHook calls the named Lua global function in locationID's VM, falling
// back to the global VM. Returns (LNil, nil) when no VM or no such function
// exists. Lua runtime errors, including an exhausted instruction budget, are
// logged at Warn level and never propagated.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(locationID, hook string, args ...lua.LValue) (lua.LValue, error) {
	v := m.lookup(locationID)
	if v == nil {
		m.logger.Info("scripting: no VM for location",
			zap.String("location", locationID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	fn := v.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, nil
	}

	var ret lua.LValue = lua.LNil
	err := withBudget(v.L, v.limit, func() error {
		if err := v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = v.L.Get(-1)
		v.L.Pop(1)
		return nil
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("location", locationID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}
	return ret, nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}
