// Package history maintains the ordered sequence of Snapshots produced by
// single-stepping a VmEngine, and the cursor that lets a caller step
// forward, step backward into already-recorded states, and reset into a
// fresh CpuMode. Ported from original_source/src/runner.hpp/.cpp's Runner,
// which folds the same responsibility into its historyIndex/history pair.
package history

import (
	"fmt"

	"x86lab/regval"
	"x86lab/snapshot"
)

// Engine is the subset of vmengine.Engine that History drives. Declared
// here (rather than depended on directly) so history never needs to know
// about the hypervisor lifecycle concerns vmengine.Engine also exposes.
type Engine interface {
	SetMode(mode regval.CpuMode) error
	LoadCode(code []byte) error
	Step() (regval.OperatingState, error)
	GetRegisters() (regval.RegisterSet, error)
	DumpPhysical() []byte
}

// History is the time-travel log: snapshots[0] is the state immediately
// after load_code; snapshots[cursor] is the currently observed state.
type History struct {
	engine    Engine
	code      []byte
	snapshots []*snapshot.Snapshot
	cursor    int
	mode      regval.CpuMode
	terminal  bool
}

// New sets engine to mode, loads code into it (via Reset, which calls
// engine.SetMode and engine.LoadCode), and records the root snapshot.
func New(engine Engine, mode regval.CpuMode, code []byte) (*History, error) {
	h := &History{engine: engine, code: code}

	if err := h.Reset(mode); err != nil {
		return nil, err
	}

	return h, nil
}

// Cursor returns the currently observed snapshot.
func (h *History) Cursor() *snapshot.Snapshot { return h.snapshots[h.cursor] }

// Len returns the number of recorded snapshots.
func (h *History) Len() int { return len(h.snapshots) }

// Index returns the position of the currently observed snapshot.
func (h *History) Index() int { return h.cursor }

// Step advances one state forward. If the cursor is not at the end of the
// recorded history, this only re-observes an already-recorded future
// snapshot (no guest execution happens). Otherwise it asks the engine to
// execute one instruction; if the resulting OperatingState is not
// Runnable, the terminal snapshot is recorded and no further Step calls
// are accepted until Reset.
func (h *History) Step() error {
	if h.terminal {
		return nil
	}

	if h.cursor < len(h.snapshots)-1 {
		h.cursor++

		return nil
	}

	state, err := h.engine.Step()
	if err != nil {
		return fmt.Errorf("history: step: %w", err)
	}

	regs, err := h.engine.GetRegisters()
	if err != nil {
		return fmt.Errorf("history: get registers after step: %w", err)
	}

	mem := h.engine.DumpPhysical()

	next := snapshot.Next(h.snapshots[h.cursor], regs, h.mode, mem)
	h.snapshots = append(h.snapshots, next)
	h.cursor++

	if state != regval.Runnable {
		h.terminal = true
	}

	return nil
}

// ReverseStep moves the cursor one step back, or is a no-op at the root.
func (h *History) ReverseStep() {
	if h.cursor > 0 {
		h.cursor--
	}
}

// Reset re-creates the guest in mode, reloads code, clears history, and
// records the new root snapshot at index 0.
func (h *History) Reset(mode regval.CpuMode) error {
	if err := h.engine.SetMode(mode); err != nil {
		return fmt.Errorf("history: reset: SetMode: %w", err)
	}

	if err := h.engine.LoadCode(h.code); err != nil {
		return fmt.Errorf("history: reset: LoadCode: %w", err)
	}

	regs, err := h.engine.GetRegisters()
	if err != nil {
		return fmt.Errorf("history: reset: GetRegisters: %w", err)
	}

	mem := h.engine.DumpPhysical()

	h.mode = mode
	h.snapshots = []*snapshot.Snapshot{snapshot.New(regs, mode, mem)}
	h.cursor = 0
	h.terminal = false

	return nil
}
