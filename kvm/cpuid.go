package kvm

import "unsafe"

// CPUIDEntry2 mirrors struct kvm_cpuid_entry2: one (function, index) leaf
// and the four register values the guest will observe for it.
type CPUIDEntry2 struct {
	Function uint32
	Index    uint32
	Flags    uint32
	Eax      uint32
	Ebx      uint32
	Ecx      uint32
	Edx      uint32
	Padding  [3]uint32
}

// CPUID mirrors the flexible-array-member struct kvm_cpuid2: Nent entries
// follow the header. The Go side always allocates Entries at the capacity
// the ioctl is told about via Nent.
type CPUID struct {
	Nent    uint32
	Padding uint32
	Entries []CPUIDEntry2
}

const (
	// CPUIDFeatures is the KVM-defined leaf advertising paravirt features.
	CPUIDFeatures = 0x40000001
	// CPUIDSignature is the leaf a guest probes to identify the hypervisor.
	CPUIDSignature = 0x40000000

	kvmGetSupportedCPUID = 0xC008AE05
	kvmGetCPUID2         = 0xC008AE91
	kvmSetCPUID2         = 0x4008AE90
)

func cpuidIoctl(fd uintptr, request uintptr, c *CPUID) error {
	// kvm_cpuid2 is a header followed by Nent entries; the kernel only
	// looks at as many bytes as Nent describes, so we pass the address of
	// the header and rely on Entries being laid out immediately after it
	// in memory being irrelevant — instead we build the flattened buffer
	// explicitly to match the C flexible-array-member layout.
	buf := marshalCPUID(c)

	if _, err := Ioctl(fd, request, uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return err
	}

	unmarshalCPUID(buf, c)

	return nil
}

// marshalCPUID packs the header + entries into one contiguous buffer, since
// kvm_cpuid2's entries are a C flexible array member rather than a Go
// slice header.
func marshalCPUID(c *CPUID) []byte {
	headerSize := int(unsafe.Sizeof(c.Nent) + unsafe.Sizeof(c.Padding))
	entrySize := int(unsafe.Sizeof(CPUIDEntry2{}))
	buf := make([]byte, headerSize+entrySize*len(c.Entries))

	*(*uint32)(unsafe.Pointer(&buf[0])) = c.Nent
	for i := range c.Entries {
		*(*CPUIDEntry2)(unsafe.Pointer(&buf[headerSize+i*entrySize])) = c.Entries[i]
	}

	return buf
}

func unmarshalCPUID(buf []byte, c *CPUID) {
	headerSize := int(unsafe.Sizeof(c.Nent) + unsafe.Sizeof(c.Padding))
	entrySize := int(unsafe.Sizeof(CPUIDEntry2{}))

	c.Nent = *(*uint32)(unsafe.Pointer(&buf[0]))
	for i := range c.Entries {
		c.Entries[i] = *(*CPUIDEntry2)(unsafe.Pointer(&buf[headerSize+i*entrySize]))
	}
}

// GetSupportedCPUID asks the host kernel which CPUID leaves it can safely
// pass through to a guest. VmEngine re-exposes these verbatim so the guest
// sees whatever vector extensions the host advertises.
func GetSupportedCPUID(kvmFd uintptr, c *CPUID) error {
	return cpuidIoctl(kvmFd, uintptr(kvmGetSupportedCPUID), c)
}

// GetCPUID2 reads back the CPUID leaves currently configured on a vCPU.
func GetCPUID2(vcpuFd uintptr, c *CPUID) error {
	return cpuidIoctl(vcpuFd, uintptr(kvmGetCPUID2), c)
}

// SetCPUID2 installs the given CPUID leaves on a vCPU.
func SetCPUID2(vcpuFd uintptr, c *CPUID) error {
	return cpuidIoctl(vcpuFd, uintptr(kvmSetCPUID2), c)
}
