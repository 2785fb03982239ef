package vmengine

import (
	"fmt"

	"x86lab/kvm"
	"x86lab/regval"
)

// GetRegisters unions general registers, special registers, and the XSAVE
// area into one RegisterSet.
func (e *Engine) GetRegisters() (regval.RegisterSet, error) {
	regs, err := kvm.GetRegs(e.vcpuFd)
	if err != nil {
		return regval.RegisterSet{}, fmt.Errorf("GetRegs: %w", err)
	}

	sregs, err := kvm.GetSregs(e.vcpuFd)
	if err != nil {
		return regval.RegisterSet{}, fmt.Errorf("GetSregs: %w", err)
	}

	xs, err := kvm.GetXSave(e.vcpuFd)
	if err != nil {
		return regval.RegisterSet{}, fmt.Errorf("GetXSave: %w", err)
	}

	var rs regval.RegisterSet

	rs.RAX, rs.RBX, rs.RCX, rs.RDX = regs.RAX, regs.RBX, regs.RCX, regs.RDX
	rs.RDI, rs.RSI, rs.RBP, rs.RSP = regs.RDI, regs.RSI, regs.RBP, regs.RSP
	rs.R8, rs.R9, rs.R10, rs.R11 = regs.R8, regs.R9, regs.R10, regs.R11
	rs.R12, rs.R13, rs.R14, rs.R15 = regs.R12, regs.R13, regs.R14, regs.R15
	rs.RFLAGS, rs.RIP = regs.RFLAGS, regs.RIP

	rs.CS, rs.DS, rs.ES = sregs.CS.Selector, sregs.DS.Selector, sregs.ES.Selector
	rs.FS, rs.GS, rs.SS = sregs.FS.Selector, sregs.GS.Selector, sregs.SS.Selector

	rs.CR0, rs.CR2, rs.CR3, rs.CR4, rs.CR8 = sregs.CR0, sregs.CR2, sregs.CR3, sregs.CR4, sregs.CR8
	rs.EFER = sregs.EFER

	rs.IDT = regval.Table{Base: sregs.IDT.Base, Limit: sregs.IDT.Limit}
	rs.GDT = regval.Table{Base: sregs.GDT.Base, Limit: sregs.GDT.Limit}

	e.codec.Decode(xs.Region[:], &rs)

	return rs, nil
}

// SetRegisters is the inverse of GetRegisters. Segment selectors in rs are
// ignored: the current hidden descriptors are preserved, since writing
// selectors without re-synthesizing the descriptor they name would corrupt
// the mode SetMode installed. In Real16, each segment's hidden base is
// refreshed to selector<<4 with limit 0xFFFF from the *current* selector
// (unchanged, since selectors are ignored).
func (e *Engine) SetRegisters(rs regval.RegisterSet) error {
	regs := kvm.Regs{
		RAX: rs.RAX, RBX: rs.RBX, RCX: rs.RCX, RDX: rs.RDX,
		RDI: rs.RDI, RSI: rs.RSI, RBP: rs.RBP, RSP: rs.RSP,
		R8: rs.R8, R9: rs.R9, R10: rs.R10, R11: rs.R11,
		R12: rs.R12, R13: rs.R13, R14: rs.R14, R15: rs.R15,
		RFLAGS: rs.RFLAGS, RIP: rs.RIP,
	}

	if err := kvm.SetRegs(e.vcpuFd, &regs); err != nil {
		return fmt.Errorf("SetRegs: %w", err)
	}

	sregs, err := kvm.GetSregs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetSregs: %w", err)
	}

	sregs.CR0, sregs.CR2, sregs.CR3, sregs.CR4, sregs.CR8 = rs.CR0, rs.CR2, rs.CR3, rs.CR4, rs.CR8
	sregs.EFER = rs.EFER
	sregs.IDT = kvm.Descriptor{Base: rs.IDT.Base, Limit: rs.IDT.Limit}
	sregs.GDT = kvm.Descriptor{Base: rs.GDT.Base, Limit: rs.GDT.Limit}

	if e.mode == regval.Real16 {
		refreshReal16Hidden(&sregs.CS)
		refreshReal16Hidden(&sregs.DS)
		refreshReal16Hidden(&sregs.ES)
		refreshReal16Hidden(&sregs.FS)
		refreshReal16Hidden(&sregs.GS)
		refreshReal16Hidden(&sregs.SS)
	}

	if err := kvm.SetSregs(e.vcpuFd, sregs); err != nil {
		return fmt.Errorf("SetSregs: %w", err)
	}

	xs, err := kvm.GetXSave(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetXSave: %w", err)
	}

	e.codec.Encode(&rs, xs.Region[:])

	if err := kvm.SetXSave(e.vcpuFd, xs); err != nil {
		return fmt.Errorf("SetXSave: %w", err)
	}

	xcrs, err := kvm.GetXCRs(e.vcpuFd)
	if err != nil {
		return fmt.Errorf("GetXCRs: %w", err)
	}

	xcrs.SetXCR0(xcrs.XCR0() | requiredXCR0Bits(e.codec.HasAVX512()))

	if err := kvm.SetXCRs(e.vcpuFd, xcrs); err != nil {
		return fmt.Errorf("SetXCRs: %w", err)
	}

	return nil
}

func refreshReal16Hidden(seg *kvm.Segment) {
	seg.Base = uint64(seg.Selector) << 4
	seg.Limit = 0xFFFF
}

// requiredXCR0Bits returns the XCR0 bits that must be set for the vector
// state this RegisterSet write may have touched: x87|SSE|AVX always, plus
// opmask|ZMM-hi256|hi16-ZMM when the host supports AVX-512.
func requiredXCR0Bits(avx512 bool) uint64 {
	const x87SSEAVX = 0b111

	if !avx512 {
		return x87SSEAVX
	}

	const opmaskZMMHi256Hi16ZMM = (1 << 5) | (1 << 6) | (1 << 7)

	return x87SSEAVX | opmaskZMMHi256Hi16ZMM
}
