package kvm

import "unsafe"

// Numeric ioctl requests, hardcoded from the Linux KVM ABI (type byte 0xAE).
// SetIdentityMapAddr computes the same request as kvmSetIdentityMapAddr
// with IIOW.
const (
	kvmGetAPIVersion = 44544
	kvmCreateVM      = 44545
	kvmCreateVCPU    = 44609
	kvmRun           = 44672

	kvmGetVCPUMMapSize = 44548

	kvmSetTSSAddr        = 0xAE47
	kvmSetIdentityMapAddr = 0x4008AE48

	kvmCheckExtension = 0xAE03
)

// GetAPIVersion returns the KVM API version reported by the opened
// /dev/kvm handle. Callers should check this equals 12 before relying on
// the rest of this package.
func GetAPIVersion(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, uintptr(kvmGetAPIVersion), 0)
}

// CreateVM creates a new guest and returns its file descriptor.
func CreateVM(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, uintptr(kvmCreateVM), 0)
}

// CreateVCPU creates vCPU number cpu within the given guest and returns its
// file descriptor. This core only ever creates one vCPU per guest (cpu ==
// 0); the index is kept so the ioctl mirrors the kernel signature.
func CreateVCPU(vmFd uintptr, cpu int) (uintptr, error) {
	return Ioctl(vmFd, uintptr(kvmCreateVCPU), uintptr(cpu))
}

// GetVCPUMMapSize returns the size, in bytes, of the kvm_run structure that
// must be mmap'd over a vCPU's file descriptor.
func GetVCPUMMapSize(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, uintptr(kvmGetVCPUMMapSize), 0)
}

// SetTSSAddr reserves three pages above addr for the guest's task-state
// segment. Required by KVM on x86 even though this core never executes a
// task switch.
func SetTSSAddr(vmFd uintptr, addr uint32) error {
	_, err := Ioctl(vmFd, uintptr(kvmSetTSSAddr), uintptr(addr))

	return err
}

// SetIdentityMapAddr tells KVM where to place its real-mode identity-map
// page, a page it privately manages for the same reason as SetTSSAddr.
func SetIdentityMapAddr(vmFd uintptr, addr uint32) error {
	return ioctlWriteU64(vmFd, IIOW(0x48, unsafe.Sizeof(uint64(0))), uint64(addr))
}

func ioctlWriteU64(fd uintptr, request uintptr, v uint64) error {
	_, err := Ioctl(fd, request, uintptr(unsafe.Pointer(&v)))

	return err
}

// Run enters the guest on the given vCPU. It returns once the guest raises
// an exit (debug trap, halt, shutdown, ...); the exit reason is read from
// the mmap'd kvm_run region by the caller, not from this return value.
func Run(vcpuFd uintptr) error {
	_, err := Ioctl(vcpuFd, uintptr(kvmRun), 0)

	return err
}

// CheckExtension reports the value the kernel returns for the given
// Capability; most capabilities are boolean (0/1), a few (e.g.
// CapNRMemSlots) return a count.
func CheckExtension(fd uintptr, cap Capability) (int, error) {
	ret, err := Ioctl(fd, uintptr(kvmCheckExtension), uintptr(cap))
	if err != nil {
		return 0, err
	}

	return int(ret), nil
}
