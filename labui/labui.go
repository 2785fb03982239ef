// Package labui is the minimal terminal UI collaborator: it reads command
// lines from an io.Reader, drives a history.History with the closed action
// set {Step, ReverseStep, Reset(mode), Quit}, and prints the resulting
// Snapshot's registers and the disassembled instruction at RIP. It is a thin
// pull-model consumer of the core, never a dependency of it — grounded on
// the teacher's flag/runs.go command-loop idiom and machine/debug_amd64.go's
// use of x86asm for display-only disassembly.
package labui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"x86lab/asmdrv"
	"x86lab/history"
	"x86lab/regval"
	"x86lab/snapshot"
)

// Session pairs a History with the assembled code it is stepping through, so
// each command can print the source line a given code offset came from.
type Session struct {
	hist *history.History
	code *asmdrv.Code
	out  io.Writer
}

// New wraps an already-reset History and the Code it was loaded from.
func New(hist *history.History, code *asmdrv.Code, out io.Writer) *Session {
	return &Session{hist: hist, code: code, out: out}
}

// Run reads one command per line from in until Quit or EOF.
func (s *Session) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)

	s.printState()

	for scanner.Scan() {
		quit, err := s.dispatch(strings.Fields(scanner.Text()))
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)

			continue
		}

		if quit {
			return nil
		}

		s.printState()
	}

	return scanner.Err()
}

// dispatch executes one command and reports whether Quit was requested.
func (s *Session) dispatch(fields []string) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "step", "s":
		return false, s.hist.Step()
	case "reverse", "back", "b":
		s.hist.ReverseStep()

		return false, nil
	case "reset", "r":
		mode, err := parseMode(fields)
		if err != nil {
			return false, err
		}

		return false, s.hist.Reset(mode)
	case "quit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("labui: unknown command %q", fields[0])
	}
}

func parseMode(fields []string) (regval.CpuMode, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("labui: reset requires a mode: real16|protected32|long64")
	}

	switch fields[1] {
	case "real16":
		return regval.Real16, nil
	case "protected32":
		return regval.Protected32, nil
	case "long64":
		return regval.Long64, nil
	default:
		return 0, fmt.Errorf("labui: unknown mode %q", fields[1])
	}
}

// printState prints the current snapshot's instruction pointer, the source
// line it maps to (if any), its disassembly, and the general-purpose
// registers.
func (s *Session) printState() {
	snap := s.hist.Cursor()
	regs := snap.Registers()

	fmt.Fprintf(s.out, "--- index %d/%d mode=%v rip=%#x ---\n",
		s.hist.Index(), s.hist.Len()-1, snap.CpuMode(), regs.RIP)

	if line, ok := s.code.LineMap[regs.RIP]; ok {
		fmt.Fprintf(s.out, "line %d: %s\n", line, s.disasm(snap))
	} else {
		fmt.Fprintf(s.out, "%s\n", s.disasm(snap))
	}

	fmt.Fprintf(s.out, "rax=%#016x rbx=%#016x rcx=%#016x rdx=%#016x\n", regs.RAX, regs.RBX, regs.RCX, regs.RDX)
	fmt.Fprintf(s.out, "rsi=%#016x rdi=%#016x rsp=%#016x rbp=%#016x\n", regs.RSI, regs.RDI, regs.RSP, regs.RBP)
	fmt.Fprintf(s.out, "rflags=%#x\n", regs.RFLAGS)
}

// disasm decodes the instruction at the current RIP, in whatever bit width
// the snapshot's CpuMode implies, purely for display: this never feeds back
// into History or VmEngine.
func (s *Session) disasm(snap *snapshot.Snapshot) string {
	bits := 64

	switch snap.CpuMode() {
	case regval.Protected32:
		bits = 32
	case regval.Real16:
		bits = 16
	case regval.Long64:
		bits = 64
	}

	regs := snap.Registers()

	insn := snap.ReadLinear(regs.RIP, 16)

	inst, err := x86asm.Decode(insn, bits)
	if err != nil {
		return "(undecodable)"
	}

	return x86asm.GNUSyntax(inst, regs.RIP, nil)
}
