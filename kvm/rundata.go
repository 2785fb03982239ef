package kvm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// RunData mirrors the head of struct kvm_run, the kernel-shared region
// mmap'd over a vCPU's file descriptor. Only the fields this core reads
// (the exit reason) are named; the trailing exit-specific union and
// padding are left as backing bytes nothing here interprets, since this
// core never handles EXITIO/EXITMMIO (there is no emulated device model).
type RunData struct {
	RequestInterruptWindow uint8
	ImmediateExit          uint8
	Padding1               [6]uint8
	ExitReason             uint32
}

// MapRunData mmaps the kernel-shared kvm_run region for a vCPU, read-only,
// and returns both a typed view and the backing bytes (so the mapping can
// later be unmapped).
func MapRunData(vcpuFd uintptr, size int) (*RunData, []byte, error) {
	mem, err := unix.Mmap(int(vcpuFd), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}

	return (*RunData)(unsafe.Pointer(&mem[0])), mem, nil
}

// UnmapRunData releases a mapping previously returned by MapRunData.
func UnmapRunData(mem []byte) error {
	return unix.Munmap(mem)
}
