// Package scripting runs the Lua encounter hooks consumed as content:
// per-creature on_aggro and on_death callbacks authored alongside the
// YAML templates.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps one gopher-lua VM. The VM is not goroutine-safe, so each
// zone owns its own Engine; scripts are cheap to load per zone.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a VM and loads every .lua file under scriptsDir.
// Scripts register hooks into the global `encounters` table:
//
//	encounters["stemdragon"] = {
//	    on_aggro = function(ev) ... end,
//	    on_death = function(ev) ... end,
//	}
//
// A missing directory yields an engine with no hooks, not an error —
// encounter scripts are optional content.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("encounters", vm.NewTable())

	e := &Engine{vm: vm, log: log}

	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		vm.Close()
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(scriptsDir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		log.Debug("loaded encounter script", zap.String("file", path))
	}
	return e, nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// HookEvent carries the fields handed to an encounter hook.
type HookEvent struct {
	CreatureID   uint32
	CreatureGUID uint64
	OtherGUID    uint64 // aggro target or killer
	HealthPct    float64
}

// OnAggro fires the script's on_aggro hook, if any.
func (e *Engine) OnAggro(script string, ev HookEvent) {
	e.call(script, "on_aggro", ev)
}

// OnDeath fires the script's on_death hook, if any.
func (e *Engine) OnDeath(script string, ev HookEvent) {
	e.call(script, "on_death", ev)
}

func (e *Engine) call(script, hook string, ev HookEvent) {
	if script == "" {
		return
	}
	encounters, ok := e.vm.GetGlobal("encounters").(*lua.LTable)
	if !ok {
		return
	}
	entry, ok := encounters.RawGetString(script).(*lua.LTable)
	if !ok {
		return
	}
	fn := entry.RawGetString(hook)
	if fn == lua.LNil {
		return
	}

	t := e.vm.NewTable()
	t.RawSetString("creature_id", lua.LNumber(ev.CreatureID))
	t.RawSetString("creature_guid", lua.LNumber(ev.CreatureGUID))
	t.RawSetString("other_guid", lua.LNumber(ev.OtherGUID))
	t.RawSetString("health_pct", lua.LNumber(ev.HealthPct))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, t); err != nil {
		e.log.Error("encounter hook error",
			zap.String("script", script),
			zap.String("hook", hook),
			zap.Error(err),
		)
	}
}
