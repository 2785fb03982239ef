// Package vmengine drives one hardware-virtualized guest through KVM: it
// owns the vCPU, the guest's physical memory, and the register codecs, and
// exposes the single-step executor the rest of this module drives. Grounded
// on original_source/src/vm.cpp's Vm class and on the teacher's
// machine/machine.go for the Go lifecycle idiom (open device, create VM,
// create vCPU, mmap the kvm_run region, mmap guest memory).
package vmengine

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"x86lab/kvm"
	"x86lab/regval"
	"x86lab/xsave"
)

const (
	defaultKVMPath = "/dev/kvm"
	supportedCPUID = 64
	pageSize       = 4096
)

// Engine owns a single vCPU guest: its memory, register codec, and run
// state. The core is single-threaded and synchronous by design — there is
// no concurrency boundary inside Engine to protect.
type Engine struct {
	kvmFile *os.File
	vmFd    uintptr
	vcpuFd  uintptr

	runData *kvm.RunData
	runMem  []byte

	mem     []byte // guest physical memory at address 0, memSize bytes
	memSize uint64

	pml4 []byte // only non-nil in Long64 mode
	pdpt []byte

	codec *xsave.Codec
	mode  regval.CpuMode
	state regval.OperatingState
}

// New opens the hypervisor, creates a guest with one vCPU, and registers
// memSize bytes of guest physical memory at address 0. The guest has no
// mode set and no code loaded: call SetMode then LoadCode before Step.
func New(memSize uint64) (*Engine, error) {
	kvmFile, err := os.OpenFile(defaultKVMPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", defaultKVMPath, err)
	}

	e := &Engine{kvmFile: kvmFile, memSize: memSize, state: regval.NoCodeLoaded}

	if err := e.init(); err != nil {
		e.kvmFile.Close()

		return nil, err
	}

	return e, nil
}

func (e *Engine) init() error {
	kvmFd := e.kvmFile.Fd()

	vmFd, err := kvm.CreateVM(kvmFd)
	if err != nil {
		return fmt.Errorf("CreateVM: %w", err)
	}

	e.vmFd = vmFd

	if err := kvm.DisableMSRFiltering(e.vmFd); err != nil {
		return fmt.Errorf("DisableMSRFiltering: %w", err)
	}

	vcpuFd, err := kvm.CreateVCPU(e.vmFd, 0)
	if err != nil {
		return fmt.Errorf("CreateVCPU: %w", err)
	}

	e.vcpuFd = vcpuFd

	if err := e.initCPUID(); err != nil {
		return err
	}

	mmapSize, err := kvm.GetVCPUMMapSize(kvmFd)
	if err != nil {
		return fmt.Errorf("GetVCPUMMapSize: %w", err)
	}

	runData, runMem, err := kvm.MapRunData(e.vcpuFd, int(mmapSize))
	if err != nil {
		return fmt.Errorf("MapRunData: %w", err)
	}

	e.runData, e.runMem = runData, runMem

	mem, err := kvm.MmapGuestMemory(int(e.memSize))
	if err != nil {
		return fmt.Errorf("MmapGuestMemory: %w", err)
	}

	e.mem = mem

	if err := kvm.SetUserMemoryRegion(e.vmFd, &kvm.UserspaceMemoryRegion{
		Slot:          0,
		GuestPhysAddr: 0,
		MemorySize:    e.memSize,
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
	}); err != nil {
		return fmt.Errorf("SetUserMemoryRegion(slot 0): %w", err)
	}

	codec, err := xsave.NewCodec()
	if err != nil {
		return fmt.Errorf("xsave.NewCodec: %w", err)
	}

	e.codec = codec

	return nil
}

// initCPUID exposes the host's supported CPUID leaves to the guest
// verbatim, so the guest sees whatever ISA extensions the host advertises.
func (e *Engine) initCPUID() error {
	cpuid := kvm.CPUID{Nent: supportedCPUID, Entries: make([]kvm.CPUIDEntry2, supportedCPUID)}

	if err := kvm.GetSupportedCPUID(e.kvmFile.Fd(), &cpuid); err != nil {
		return fmt.Errorf("GetSupportedCPUID: %w", err)
	}

	if err := kvm.SetCPUID2(e.vcpuFd, &cpuid); err != nil {
		return fmt.Errorf("SetCPUID2: %w", err)
	}

	return nil
}

// State returns the engine's current OperatingState.
func (e *Engine) State() regval.OperatingState { return e.state }

// Mode returns the CpuMode last installed by SetMode.
func (e *Engine) Mode() regval.CpuMode { return e.mode }

// Close tears down the guest in the order the hypervisor interface
// requires: unregister memory regions, close vCPU, close VM, close the
// hypervisor handle.
func (e *Engine) Close() error {
	if e.mem != nil {
		if err := kvm.SetUserMemoryRegion(e.vmFd, &kvm.UserspaceMemoryRegion{
			Slot: 0, GuestPhysAddr: 0, MemorySize: 0, UserspaceAddr: 0,
		}); err != nil {
			return fmt.Errorf("unregister slot 0: %w", err)
		}

		if err := kvm.MunmapGuestMemory(e.mem); err != nil {
			return fmt.Errorf("munmap guest memory: %w", err)
		}
	}

	if e.pml4 != nil {
		if err := kvm.SetUserMemoryRegion(e.vmFd, &kvm.UserspaceMemoryRegion{Slot: 1}); err != nil {
			return fmt.Errorf("unregister slot 1: %w", err)
		}

		if err := kvm.MunmapGuestMemory(e.pml4); err != nil {
			return fmt.Errorf("munmap PML4: %w", err)
		}
	}

	if e.pdpt != nil {
		if err := kvm.SetUserMemoryRegion(e.vmFd, &kvm.UserspaceMemoryRegion{Slot: 2}); err != nil {
			return fmt.Errorf("unregister slot 2: %w", err)
		}

		if err := kvm.MunmapGuestMemory(e.pdpt); err != nil {
			return fmt.Errorf("munmap PDPT: %w", err)
		}
	}

	if e.runMem != nil {
		if err := kvm.UnmapRunData(e.runMem); err != nil {
			return fmt.Errorf("munmap run data: %w", err)
		}
	}

	if err := closeFd(e.vcpuFd); err != nil {
		return fmt.Errorf("close vcpu: %w", err)
	}

	if err := closeFd(e.vmFd); err != nil {
		return fmt.Errorf("close vm: %w", err)
	}

	return e.kvmFile.Close()
}

func closeFd(fd uintptr) error {
	return unix.Close(int(fd))
}

// DumpPhysical returns a copy of the user-requested memory region,
// excluding any internally-added page table pages (those live in separate
// KVM memory slots and are never part of this buffer).
func (e *Engine) DumpPhysical() []byte {
	out := make([]byte, len(e.mem))
	copy(out, e.mem)

	return out
}
