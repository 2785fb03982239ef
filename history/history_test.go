package history_test

import (
	"testing"

	"x86lab/history"
	"x86lab/regval"
)

type fakeEngine struct {
	rip     uint64
	mode    regval.CpuMode
	states  []regval.OperatingState // consumed one per Step call
	stepIdx int
	mem     []byte
}

func (f *fakeEngine) SetMode(mode regval.CpuMode) error { f.mode = mode; return nil }

func (f *fakeEngine) LoadCode(code []byte) error {
	f.rip = 0
	f.mem = make([]byte, 4096)
	copy(f.mem, code)

	return nil
}

func (f *fakeEngine) Step() (regval.OperatingState, error) {
	f.rip++

	state := regval.Runnable
	if f.stepIdx < len(f.states) {
		state = f.states[f.stepIdx]
	}

	f.stepIdx++

	return state, nil
}

func (f *fakeEngine) GetRegisters() (regval.RegisterSet, error) {
	return regval.RegisterSet{RIP: f.rip}, nil
}

func (f *fakeEngine) DumpPhysical() []byte {
	return append([]byte(nil), f.mem...)
}

func TestStepReverseStepPalindrome(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}

	h, err := history.New(eng, regval.Long64, []byte{0x90})
	if err != nil {
		t.Fatal(err)
	}

	var forward []uint64
	for i := 0; i < 10; i++ {
		if err := h.Step(); err != nil {
			t.Fatal(err)
		}

		forward = append(forward, h.Cursor().Registers().RIP)
	}

	var backward []uint64
	for i := 0; i < 10; i++ {
		h.ReverseStep()
		backward = append(backward, h.Cursor().Registers().RIP)
	}

	// backward should be forward reversed, minus the final entry (root).
	for i, rip := range backward {
		var want uint64 // root snapshot
		if i < len(backward)-1 {
			want = forward[len(forward)-2-i]
		}

		if rip != want {
			t.Fatalf("backward[%d] = %d, want %d", i, rip, want)
		}
	}

	var replay []uint64
	for i := 0; i < 10; i++ {
		if err := h.Step(); err != nil {
			t.Fatal(err)
		}

		replay = append(replay, h.Cursor().Registers().RIP)
	}

	for i := range replay {
		if replay[i] != forward[i] {
			t.Fatalf("replay[%d] = %d, want %d (re-observed, not re-executed)", i, replay[i], forward[i])
		}
	}

	if eng.stepIdx != 10 {
		t.Fatalf("engine.Step called %d times, want 10 (re-observed future must not re-execute)", eng.stepIdx)
	}
}

func TestStepStopsAtTerminalState(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{states: []regval.OperatingState{regval.Runnable, regval.Halted}}

	h, err := history.New(eng, regval.Real16, []byte{0xF4})
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Step(); err != nil {
		t.Fatal(err)
	}

	if err := h.Step(); err != nil {
		t.Fatal(err)
	}

	lenAfterHalt := h.Len()

	if err := h.Step(); err != nil {
		t.Fatal(err)
	}

	if h.Len() != lenAfterHalt {
		t.Fatalf("Step after terminal state recorded a new snapshot: len %d -> %d", lenAfterHalt, h.Len())
	}

	if eng.stepIdx != 2 {
		t.Fatalf("engine.Step called %d times after terminal, want 2 (no further execution)", eng.stepIdx)
	}
}

func TestResetClearsHistory(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}

	h, err := history.New(eng, regval.Real16, []byte{0x90})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := h.Step(); err != nil {
			t.Fatal(err)
		}
	}

	if err := h.Reset(regval.Protected32); err != nil {
		t.Fatal(err)
	}

	if h.Len() != 1 || h.Index() != 0 {
		t.Fatalf("after Reset: len=%d index=%d, want len=1 index=0", h.Len(), h.Index())
	}

	if eng.mode != regval.Protected32 {
		t.Fatalf("engine mode = %v, want Protected32", eng.mode)
	}
}
