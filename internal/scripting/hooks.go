package scripting

import (
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/game/condition"
)

// HookRunner executes condition lifecycle scripts from a directory of Lua
// files. Each script runs in a fresh sandboxed LState with the affected
// target's identity bound as globals. Script failures are logged and
// swallowed: a broken hook must never abort rule processing.
type HookRunner struct {
	dir       string
	instLimit int
	logger    *zap.Logger
}

var _ condition.HookRunner = (*HookRunner)(nil)

// NewHookRunner creates a HookRunner that resolves script names relative to
// dir. A zero instLimit uses DefaultInstructionLimit.
// Precondition: logger is non-nil. dir may be empty, in which case every
// RunHook is a no-op.
func NewHookRunner(dir string, instLimit int, logger *zap.Logger) *HookRunner {
	return &HookRunner{
		dir:       dir,
		instLimit: instLimit,
		logger:    logger.Named("hooks"),
	}
}

// RunHook loads and executes the named script, exposing target_id, kind,
// severity, and is_custom as Lua globals.
// Postcondition: never panics and never returns; all failures are logged at
// warn level and the caller proceeds unaffected.
func (h *HookRunner) RunHook(script, targetID string, kind condition.Kind, severity int) {
	if h.dir == "" || script == "" {
		return
	}
	path, err := h.resolve(script)
	if err != nil {
		h.logger.Warn("hook script rejected",
			zap.String("script", script),
			zap.Error(err))
		return
	}
	src, err := os.ReadFile(path)
	if err != nil {
		h.logger.Warn("hook script unreadable",
			zap.String("script", script),
			zap.String("path", path),
			zap.Error(err))
		return
	}

	L := NewSandboxedState(h.instLimit)
	defer L.Close()

	L.SetGlobal("target_id", lua.LString(targetID))
	L.SetGlobal("kind", lua.LString(string(kind)))
	L.SetGlobal("severity", lua.LNumber(severity))
	L.SetGlobal("is_custom", lua.LBool(kind.IsCustom()))

	if err := L.DoString(string(src)); err != nil {
		h.logger.Warn("hook script failed",
			zap.String("script", script),
			zap.String("target", targetID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}
	h.logger.Debug("hook script completed",
		zap.String("script", script),
		zap.String("target", targetID),
		zap.String("kind", string(kind)))
}

// resolve maps a script name to a file path under the runner's directory,
// refusing names that would escape it.
func (h *HookRunner) resolve(script string) (string, error) {
	name := script
	if !strings.HasSuffix(name, ".lua") {
		name += ".lua"
	}
	cleaned := filepath.Clean(name)
	if cleaned != name || strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", os.ErrPermission
	}
	return filepath.Join(h.dir, cleaned), nil
}
