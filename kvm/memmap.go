package kvm

import "golang.org/x/sys/unix"

// MmapGuestMemory allocates size bytes of anonymous host memory suitable
// for backing a guest-physical memory slot (SetUserMemoryRegion).
func MmapGuestMemory(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
}

// MunmapGuestMemory releases memory previously returned by MmapGuestMemory.
func MunmapGuestMemory(mem []byte) error {
	return unix.Munmap(mem)
}
