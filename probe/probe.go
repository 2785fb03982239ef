// Package probe prints host hypervisor capabilities for the CLI's "probe"
// subcommand. Adapted from the teacher's probe/cpuid.go, which opened
// /dev/kvm and printed KVM_GET_SUPPORTED_CPUID entries; this version adds
// the API version and the handful of KVM_CHECK_EXTENSION capabilities this
// core's VmEngine actually relies on.
package probe

import (
	"fmt"
	"io"
	"os"

	"x86lab/kvm"
)

// Capabilities opens /dev/kvm and reports the API version, the supported
// CPUID entries, and whether the capabilities VmEngine depends on are
// present on this host.
func Capabilities(out io.Writer) error {
	kvmFile, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("probe: open /dev/kvm: %w", err)
	}
	defer kvmFile.Close()

	kvmFd := kvmFile.Fd()

	version, err := kvm.GetAPIVersion(kvmFd)
	if err != nil {
		return fmt.Errorf("probe: GetAPIVersion: %w", err)
	}

	fmt.Fprintf(out, "KVM API version: %d\n", version)

	for _, c := range []kvm.Capability{
		kvm.CapMPState, kvm.CapNRMemSlots, kvm.CapIRQChip, kvm.CapIOMMU,
	} {
		n, err := kvm.CheckExtension(kvmFd, c)
		if err != nil {
			return fmt.Errorf("probe: CheckExtension(%v): %w", c, err)
		}

		fmt.Fprintf(out, "%s: %d\n", c, n)
	}

	cpuid := kvm.CPUID{Nent: 64, Entries: make([]kvm.CPUIDEntry2, 64)}
	if err := kvm.GetSupportedCPUID(kvmFd, &cpuid); err != nil {
		return fmt.Errorf("probe: GetSupportedCPUID: %w", err)
	}

	for _, e := range cpuid.Entries {
		fmt.Fprintf(out, "0x%08x 0x%02x: eax=0x%08x ebx=0x%08x ecx=0x%08x edx=0x%08x\n",
			e.Function, e.Index, e.Eax, e.Ebx, e.Ecx, e.Edx)
	}

	return nil
}
