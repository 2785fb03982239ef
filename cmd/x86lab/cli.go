// The x86lab CLI mirrors the teacher's flag/runs.go: a kong.CLI struct of
// subcommands, each implementing Run() error, parsed with
// kong.UsageOnError() and a compact help summary.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"x86lab/asmdrv"
	"x86lab/history"
	"x86lab/labui"
	"x86lab/probe"
	"x86lab/regval"
	"x86lab/vmengine"
)

// CLI is the top-level kong command tree. "run" is the default command, so
// `x86lab <path-to-source>` works without naming a subcommand.
type CLI struct {
	Run   RunCMD   `cmd:"" default:"withargs" help:"assemble and step through a source file"`
	Probe ProbeCMD `cmd:"" help:"print host KVM/CPUID capabilities"`
}

// RunCMD assembles Source, boots a guest in Mode with MemSize bytes of
// guest physical memory, and drives an interactive step/reverse/reset
// session against stdin/stdout.
type RunCMD struct {
	Source  string `arg:"" help:"path to the x86 assembly source file"`
	Mode    string `default:"long64"   help:"starting CPU mode: real16, protected32, or long64"`
	MemSize int    `default:"1048576"  help:"guest physical memory size in bytes"`
}

// ProbeCMD prints host hypervisor capabilities and exits.
type ProbeCMD struct{}

func (p *ProbeCMD) Run() error {
	return probe.Capabilities(os.Stdout)
}

func (r *RunCMD) Run() error {
	mode, err := parseMode(r.Mode)
	if err != nil {
		return err
	}

	assembled, err := asmdrv.Assemble(r.Source)
	if err != nil {
		return fmt.Errorf("assembling %s: %w", r.Source, err)
	}

	engine, err := vmengine.New(uint64(r.MemSize))
	if err != nil {
		return fmt.Errorf("creating guest: %w", err)
	}
	defer engine.Close()

	hist, err := history.New(engine, mode, assembled.Bytes)
	if err != nil {
		return fmt.Errorf("loading %s: %w", r.Source, err)
	}

	return labui.New(hist, assembled, os.Stdout).Run(os.Stdin)
}

func parseMode(s string) (regval.CpuMode, error) {
	switch s {
	case "real16":
		return regval.Real16, nil
	case "protected32":
		return regval.Protected32, nil
	case "long64":
		return regval.Long64, nil
	default:
		return 0, fmt.Errorf("unknown CPU mode %q: want real16, protected32, or long64", s)
	}
}

func run() error {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("x86lab"),
		kong.Description("interactive x86 assembly lab: assemble, single-step, and time-travel a hardware-virtualized guest"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	return ctx.Run()
}
