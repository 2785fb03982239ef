package vmengine

import (
	"fmt"
	"unsafe"

	"x86lab/kvm"
	"x86lab/regval"
)

// Entry bit layout for the identity-map page table entries this package
// synthesizes: present(0) | writable(1) | ... | PS/huge-page(7).
const (
	entryPresent  = 1 << 0
	entryWritable = 1 << 1
	entryHugePage = 1 << 7
)

// Segment descriptor type-field values for the hidden descriptors this
// package synthesizes in place of a real GDT.
const (
	codeSegType32 = 0xa
	codeSegType64 = 0xa
	dataSegType   = 0x2
)

// SetMode installs one of the three starting CPU modes. It must be called
// before LoadCode. Ported from original_source/src/vm.cpp's
// enableProtectedMode/enable64BitsMode.
func (e *Engine) SetMode(mode regval.CpuMode) error {
	switch mode {
	case regval.Real16:
		if err := e.setModeReal16(); err != nil {
			return err
		}
	case regval.Protected32:
		if err := e.setModeProtected32(); err != nil {
			return err
		}
	case regval.Long64:
		if err := e.setModeLong64(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("vmengine: unknown CpuMode %v", mode)
	}

	e.mode = mode

	return nil
}

func (e *Engine) setModeReal16() error {
	sregs, err := kvm.GetSregs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetSregs: %w", err)
	}

	zero := kvm.Segment{}
	sregs.CS, sregs.DS, sregs.ES, sregs.FS, sregs.GS, sregs.SS = zero, zero, zero, zero, zero, zero
	sregs.IDT = kvm.Descriptor{}
	sregs.GDT = kvm.Descriptor{}
	sregs.CR0 &^= 1 // PE = 0

	if err := kvm.SetSregs(e.vcpuFd, sregs); err != nil {
		return fmt.Errorf("SetSregs: %w", err)
	}

	regs, err := kvm.GetRegs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetRegs: %w", err)
	}

	regs.RFLAGS = 0x2

	return kvm.SetRegs(e.vcpuFd, regs)
}

func (e *Engine) setModeProtected32() error {
	sregs, err := kvm.GetSregs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetSregs: %w", err)
	}

	sregs.CR0 |= 1 // PE = 1, paging stays off

	sregs.CS = flatSegment(0x8, codeSegType32, 0xFFFFF, true, true)
	data := flatSegment(0x10, dataSegType, 0xFFFFF, true, true)
	sregs.DS, sregs.ES, sregs.FS, sregs.GS, sregs.SS = data, data, data, data, data

	if err := kvm.SetSregs(e.vcpuFd, sregs); err != nil {
		return fmt.Errorf("SetSregs: %w", err)
	}

	return nil
}

func (e *Engine) setModeLong64() error {
	pml4Mem, pdptMem, pml4Offset, pdptOffset, err := e.allocateIdentityMapPages()
	if err != nil {
		return err
	}

	putEntryLE64(pml4Mem, 0, pdptOffset|entryPresent|entryWritable)
	putEntryLE64(pdptMem, 0, entryHugePage|entryPresent|entryWritable)

	e.pml4, e.pdpt = pml4Mem, pdptMem

	sregs, err := kvm.GetSregs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetSregs: %w", err)
	}

	sregs.CR3 = pml4Offset
	sregs.CR4 = 0x20 // PAE
	sregs.EFER = 0x500 // LME | LMA
	sregs.CR0 = 0xe0000011 // PG | ... | PE

	sregs.CS = flatSegment(0x28, codeSegType64, 0xFFFFFFFF, false, true)
	sregs.CS.L = 1
	data := flatSegment(0x30, dataSegType, 0xFFFFFFFF, true, true)
	sregs.DS, sregs.ES, sregs.FS, sregs.GS, sregs.SS = data, data, data, data, data

	if err := kvm.SetSregs(e.vcpuFd, sregs); err != nil {
		return fmt.Errorf("SetSregs: %w", err)
	}

	return nil
}

// allocateIdentityMapPages registers two additional one-page KVM memory
// regions immediately after the user-requested guest memory, for the
// PML4 and PDPT of the Long64 identity map. These frames are never part
// of DumpPhysical's output.
func (e *Engine) allocateIdentityMapPages() (pml4Mem, pdptMem []byte, pml4Offset, pdptOffset uint64, err error) {
	pml4Offset = e.memSize
	pdptOffset = pml4Offset + pageSize

	pml4Mem, err = kvm.MmapGuestMemory(pageSize)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("mmap PML4 page: %w", err)
	}

	if err = kvm.SetUserMemoryRegion(e.vmFd, &kvm.UserspaceMemoryRegion{
		Slot: 1, GuestPhysAddr: pml4Offset, MemorySize: pageSize,
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&pml4Mem[0]))),
	}); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("SetUserMemoryRegion(slot 1, PML4): %w", err)
	}

	pdptMem, err = kvm.MmapGuestMemory(pageSize)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("mmap PDPT page: %w", err)
	}

	if err = kvm.SetUserMemoryRegion(e.vmFd, &kvm.UserspaceMemoryRegion{
		Slot: 2, GuestPhysAddr: pdptOffset, MemorySize: pageSize,
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&pdptMem[0]))),
	}); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("SetUserMemoryRegion(slot 2, PDPT): %w", err)
	}

	return pml4Mem, pdptMem, pml4Offset, pdptOffset, nil
}

// flatSegment builds a synthesized hidden descriptor covering the full
// 32-bit (or 64-bit, paired with L=1) linear space, in place of a guest-
// built GDT entry.
func flatSegment(selector uint16, typ uint8, limit uint32, db, granularity bool) kvm.Segment {
	seg := kvm.Segment{
		Selector: selector,
		Base:     0,
		Limit:    limit,
		Typ:      typ,
		Present:  1,
		DPL:      0,
		S:        1,
		Unusable: 0,
	}

	if db {
		seg.DB = 1
	}

	if granularity {
		seg.G = 1
	}

	return seg
}

func putEntryLE64(mem []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		mem[off+i] = byte(v >> (8 * i))
	}
}
