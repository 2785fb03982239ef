package kvm

import "unsafe"

// msrFilterRanges is the number of ranges struct kvm_msr_filter carries;
// the kernel ABI fixes this at 16.
const msrFilterRanges = 16

// msrFilterRange mirrors struct kvm_msr_filter_range. An all-zero range
// (Nmsrs == 0) is inert: it filters nothing.
type msrFilterRange struct {
	Flags   uint32
	Nmsrs   uint32
	Base    uint32
	Bitmap  uint64
}

// msrFilter mirrors struct kvm_msr_filter: a set of ranges plus a default
// action flag. With every range zeroed and Flags left at its default
// (allow-by-default), installing this filter is equivalent to disabling
// MSR filtering outright.
type msrFilter struct {
	Flags  uint32
	Ranges [msrFilterRanges]msrFilterRange
}

const kvmX86SetMSRFilter = 0x4188AEC6

// DisableMSRFiltering installs an all-zero kvm_msr_filter so no MSR access
// by the guest traps to userspace. Grounded on the original x86Lab's Vm
// constructor (src/vm.cpp), which does exactly this: the distilled spec
// only says "disable host-imposed MSR filtering", this is the concrete
// mechanism.
func DisableMSRFiltering(vmFd uintptr) error {
	filter := msrFilter{}
	_, err := Ioctl(vmFd, uintptr(kvmX86SetMSRFilter), uintptr(unsafe.Pointer(&filter)))

	return err
}
