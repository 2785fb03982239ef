package labui_test

import (
	"bytes"
	"strings"
	"testing"

	"x86lab/asmdrv"
	"x86lab/history"
	"x86lab/labui"
	"x86lab/regval"
)

type fakeEngine struct {
	rip  uint64
	mode regval.CpuMode
	mem  []byte
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

	return regval.Runnable, nil
}

func (f *fakeEngine) GetRegisters() (regval.RegisterSet, error) {
	return regval.RegisterSet{RIP: f.rip}, nil
}

func (f *fakeEngine) DumpPhysical() []byte { return append([]byte(nil), f.mem...) }

func newSession(t *testing.T, out *bytes.Buffer) *labui.Session {
	t.Helper()

	eng := &fakeEngine{}

	h, err := history.New(eng, regval.Long64, []byte{0x90, 0x90, 0xF4})
	if err != nil {
		t.Fatal(err)
	}

	code := &asmdrv.Code{Bytes: []byte{0x90, 0x90, 0xF4}, LineMap: map[uint64]uint64{0: 1, 1: 2, 2: 3}}

	return labui.New(h, code, out)
}

func TestRunStepAndQuit(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newSession(t, &out)

	if err := s.Run(strings.NewReader("step\nstep\nquit\n")); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "line 1:") {
		t.Fatalf("expected initial state to print line 1, got:\n%s", out.String())
	}

	if !strings.Contains(out.String(), "line 2:") {
		t.Fatalf("expected a step to reach line 2, got:\n%s", out.String())
	}
}

func TestRunUnknownCommandContinues(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newSession(t, &out)

	if err := s.Run(strings.NewReader("bogus\nquit\n")); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "error:") {
		t.Fatalf("expected an error line for the unknown command, got:\n%s", out.String())
	}
}

func TestRunResetRequiresMode(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newSession(t, &out)

	if err := s.Run(strings.NewReader("reset\nquit\n")); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "error:") {
		t.Fatalf("expected an error for reset without a mode, got:\n%s", out.String())
	}
}
