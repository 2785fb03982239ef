package kvm

import "unsafe"

// XSaveAreaSize mirrors struct kvm_xsave's region (4096 bytes), large
// enough to hold the legacy x87/SSE area plus every AVX/AVX-512 XSAVE
// component KVM currently defines.
const XSaveAreaSize = 4096

// XSave mirrors struct kvm_xsave: a flat byte region in the architectural
// XSAVE layout. xsave.Codec decodes/encodes this against a RegisterSet;
// this package only moves the bytes in and out of the kernel.
type XSave struct {
	Region [XSaveAreaSize]byte
}

const (
	kvmGetXSave = 0x9000AEA4
	kvmSetXSave = 0x5000AEA5
)

// GetXSave reads the vCPU's XSAVE area.
func GetXSave(vcpuFd uintptr) (*XSave, error) {
	xs := &XSave{}
	if _, err := Ioctl(vcpuFd, uintptr(kvmGetXSave), uintptr(unsafe.Pointer(xs))); err != nil {
		return nil, err
	}

	return xs, nil
}

// SetXSave writes the vCPU's XSAVE area.
func SetXSave(vcpuFd uintptr, xs *XSave) error {
	_, err := Ioctl(vcpuFd, uintptr(kvmSetXSave), uintptr(unsafe.Pointer(xs)))

	return err
}

const maxXCRs = 16

// xcr mirrors struct kvm_xcr.
type xcr struct {
	XCR      uint32
	Reserved uint32
	Value    uint64
}

// XCRs mirrors struct kvm_xcrs: the XCR0 (and friends) extended control
// registers that gate which XSAVE components are active.
type XCRs struct {
	NrXCRs  uint32
	Flags   uint32
	XCRs    [maxXCRs]xcr
	Padding [16]uint64
}

const (
	kvmGetXCRs = 0x8188AEA6
	kvmSetXCRs = 0x4188AEA7
)

// GetXCRs reads the vCPU's extended control registers.
func GetXCRs(vcpuFd uintptr) (*XCRs, error) {
	xc := &XCRs{}
	if _, err := Ioctl(vcpuFd, uintptr(kvmGetXCRs), uintptr(unsafe.Pointer(xc))); err != nil {
		return nil, err
	}

	return xc, nil
}

// SetXCRs writes the vCPU's extended control registers.
func SetXCRs(vcpuFd uintptr, xc *XCRs) error {
	_, err := Ioctl(vcpuFd, uintptr(kvmSetXCRs), uintptr(unsafe.Pointer(xc)))

	return err
}

// XCR0 returns the current value of XCR0 (index 0), the only XCR defined
// by the architecture today.
func (xc *XCRs) XCR0() uint64 {
	for i := uint32(0); i < xc.NrXCRs; i++ {
		if xc.XCRs[i].XCR == 0 {
			return xc.XCRs[i].Value
		}
	}

	return 0
}

// SetXCR0 ORs bits into XCR0, adding a component index entry if none exists
// yet. VmEngine never clears bits here: set_registers only grows the set of
// active XSAVE components.
func (xc *XCRs) SetXCR0(bits uint64) {
	for i := uint32(0); i < xc.NrXCRs; i++ {
		if xc.XCRs[i].XCR == 0 {
			xc.XCRs[i].Value |= bits

			return
		}
	}

	xc.XCRs[xc.NrXCRs].XCR = 0
	xc.XCRs[xc.NrXCRs].Value = bits
	xc.NrXCRs++
}
