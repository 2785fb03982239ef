package kvm

import "unsafe"

// Regs mirrors struct kvm_regs: the general purpose registers plus RIP and
// RFLAGS.
type Regs struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RSP, RBP uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RIP, RFLAGS        uint64
}

// Segment mirrors struct kvm_segment: the hidden descriptor cache of a
// segment register plus its selector.
type Segment struct {
	Base     uint64
	Limit    uint32
	Selector uint16
	Typ      uint8
	Present  uint8
	DPL      uint8
	DB       uint8
	S        uint8
	L        uint8
	G        uint8
	AVL      uint8
	Unusable uint8
	Padding  uint8
}

// Descriptor mirrors struct kvm_dtable: an IDTR/GDTR base+limit pair.
type Descriptor struct {
	Base    uint64
	Limit   uint16
	Padding [3]uint16
}

const numInterrupts = 0x100

// Sregs mirrors struct kvm_sregs: segments, descriptor tables and control
// registers.
type Sregs struct {
	CS, DS, ES, FS, GS, SS Segment
	TR, LDT                Segment
	GDT, IDT               Descriptor
	CR0, CR2, CR3, CR4, CR8 uint64
	EFER                    uint64
	ApicBase                uint64
	InterruptBitmap         [(numInterrupts + 63) / 64]uint64
}

const (
	kvmGetRegs  = 0x8090AE81
	kvmSetRegs  = 0x4090AE82
	kvmGetSregs = 0x8138AE83
	kvmSetSregs = 0x4138AE84
)

// GetRegs reads the vCPU's general purpose registers.
func GetRegs(vcpuFd uintptr) (*Regs, error) {
	regs := &Regs{}
	if _, err := Ioctl(vcpuFd, uintptr(kvmGetRegs), uintptr(unsafe.Pointer(regs))); err != nil {
		return nil, err
	}

	return regs, nil
}

// SetRegs writes the vCPU's general purpose registers.
func SetRegs(vcpuFd uintptr, regs *Regs) error {
	_, err := Ioctl(vcpuFd, uintptr(kvmSetRegs), uintptr(unsafe.Pointer(regs)))

	return err
}

// GetSregs reads the vCPU's segment/control/descriptor-table registers.
func GetSregs(vcpuFd uintptr) (*Sregs, error) {
	sregs := &Sregs{}
	if _, err := Ioctl(vcpuFd, uintptr(kvmGetSregs), uintptr(unsafe.Pointer(sregs))); err != nil {
		return nil, err
	}

	return sregs, nil
}

// SetSregs writes the vCPU's segment/control/descriptor-table registers.
func SetSregs(vcpuFd uintptr, sregs *Sregs) error {
	_, err := Ioctl(vcpuFd, uintptr(kvmSetSregs), uintptr(unsafe.Pointer(sregs)))

	return err
}

// guestDebug mirrors struct kvm_guest_debug, trimmed to the fields this
// core ever sets: single-step is the only debug facility used.
type guestDebug struct {
	Control  uint32
	Pad      uint32
	DR       [8]uint64
	DR7      uint64
	Reserved [9]uint64
}

const (
	guestDebugEnable     = 1 << 0
	guestDebugSingleStep = 1 << 1

	kvmSetGuestDebug = 0x4048ae9b
)

// SingleStep arms or disarms hardware single-stepping on the vCPU. It must
// be called again before every KVM_RUN: a register write (SetRegs/SetSregs)
// silently clears the debug control the kernel holds.
func SingleStep(vcpuFd uintptr, onoff bool) error {
	dbg := guestDebug{}
	if onoff {
		dbg.Control = guestDebugEnable | guestDebugSingleStep
	}

	_, err := Ioctl(vcpuFd, uintptr(kvmSetGuestDebug), uintptr(unsafe.Pointer(&dbg)))

	return err
}
