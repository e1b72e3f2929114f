package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// RegisterModules installs the engine table into L:
//
//	engine.roll(expr)       -> total of a dice expression, or nil and an error message
//	engine.random(lo, hi)   -> integer in [lo, hi]
//	engine.chance(p)        -> boolean, true with probability p
//	engine.log(msg)         -> writes msg to the server log at info level
func (m *Manager) RegisterModules(L *lua.LState, locationID string) {
	engine := L.NewTable()
	L.SetFuncs(engine, map[string]lua.LGFunction{
		"roll": func(L *lua.LState) int {
			res, err := m.roller.RollExpr(L.CheckString(1))
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LNumber(res.Total()))
			return 1
		},
		"random": func(L *lua.LState) int {
			lo, hi := L.CheckInt(1), L.CheckInt(2)
			L.Push(lua.LNumber(dice.Between(m.roller.Source(), lo, hi)))
			return 1
		},
		"chance": func(L *lua.LState) int {
			L.Push(lua.LBool(dice.Chance(m.roller.Source(), float64(L.CheckNumber(1)))))
			return 1
		},
		"log": func(L *lua.LState) int {
			m.logger.Info("script log",
				zap.String("location", locationID),
				zap.String("message", L.CheckString(1)),
			)
			return 0
		},
	})
	L.SetGlobal("engine", engine)
}
