// Package cpuid executes the CPUID instruction directly on the host,
// independent of any guest: VmEngine queries KVM for the CPUID leaves it
// may pass through to a guest, but discovering where AVX-512 components
// live inside the XSAVE area requires running CPUID on the host CPU itself
// (leaf 0xD, several subleaves), which no KVM ioctl surfaces.
package cpuid

// cpuidLow executes CPUID with EAX=leaf, ECX=subleaf and returns the four
// result registers. Implemented in cpuid_amd64.s, grounded on the teacher's
// cpuid/cpuid.go declaration of an equivalent `cpuid_low(arg1, arg2
// uint32)` — extended here with an explicit subleaf parameter since the
// XSAVE offset discovery in xsave.Codec needs leaf 0xD subleaves 2, 5, 6
// and 7, not just subleaf 0.
func cpuidLow(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

// Leaf runs CPUID for the given (leaf, subleaf) pair on the host CPU.
func Leaf(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32) {
	return cpuidLow(leaf, subleaf)
}
