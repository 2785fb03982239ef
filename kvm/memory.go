package kvm

import "unsafe"

// UserspaceMemoryRegion mirrors struct kvm_userspace_memory_region: one
// guest-physical-address range backed by host memory at UserspaceAddr.
type UserspaceMemoryRegion struct {
	Slot          uint32
	Flags         uint32
	GuestPhysAddr uint64
	MemorySize    uint64
	UserspaceAddr uint64
}

const (
	memLogDirtyPages = 1 << 0
	memReadonly      = 1 << 1
)

// SetMemLogDirtyPages marks the region for dirty-page tracking. Unused by
// this core (no incremental-snapshot optimization reads KVM's dirty log;
// BlockTree diffs the full dump instead) but kept for parity with the
// region-flag vocabulary the kernel defines.
func (r *UserspaceMemoryRegion) SetMemLogDirtyPages() {
	r.Flags |= memLogDirtyPages
}

// SetMemReadonly marks the region read-only from the guest's point of view.
func (r *UserspaceMemoryRegion) SetMemReadonly() {
	r.Flags |= memReadonly
}

const kvmSetUserMemoryRegion = 0x4020AE46

// SetUserMemoryRegion registers or updates a guest memory slot.
func SetUserMemoryRegion(vmFd uintptr, region *UserspaceMemoryRegion) error {
	_, err := Ioctl(vmFd, uintptr(kvmSetUserMemoryRegion), uintptr(unsafe.Pointer(region)))

	return err
}
