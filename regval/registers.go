package regval

// CpuMode selects the starting architectural mode of a guest.
type CpuMode int

const (
	Real16 CpuMode = iota
	Protected32
	Long64
)

func (m CpuMode) String() string {
	switch m {
	case Real16:
		return "Real16"
	case Protected32:
		return "Protected32"
	case Long64:
		return "Long64"
	default:
		return "CpuMode(invalid)"
	}
}

// OperatingState is the run state of a VmEngine.
type OperatingState int

const (
	Runnable OperatingState = iota
	Halted
	Shutdown
	NoCodeLoaded
	SingleStepError
)

func (s OperatingState) String() string {
	switch s {
	case Runnable:
		return "Runnable"
	case Halted:
		return "Halted"
	case Shutdown:
		return "Shutdown"
	case NoCodeLoaded:
		return "NoCodeLoaded"
	case SingleStepError:
		return "SingleStepError"
	default:
		return "OperatingState(invalid)"
	}
}

// Table is a descriptor-table base+limit pair (IDTR/GDTR). Limit is stored
// as the inclusive byte count minus one, matching the hardware descriptor.
type Table struct {
	Base  uint64
	Limit uint16
}

// RegisterSet is the complete architectural register file this module
// exposes: general purpose, flow, segment selectors, system/control,
// descriptor tables, and the full vector/opmask state. All fields are
// public value data; equality is componentwise (struct ==), just as
// original_source/include/x86lab/vm.hpp's Registers uses a defaulted
// operator==.
type RegisterSet struct {
	// General purpose registers.
	RAX, RBX, RCX, RDX uint64
	RDI, RSI, RBP, RSP uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	// Flow. RFLAGS bit 1 is invariantly 1 (reserved by the ISA).
	RFLAGS uint64
	RIP    uint64

	// Segment selectors; the hidden descriptor state lives in VmEngine,
	// not here.
	CS, DS, ES, FS, GS, SS uint16

	// System / control registers.
	CR0, CR2, CR3, CR4, CR8, EFER uint64

	// Descriptor tables.
	IDT, GDT Table

	// MMX registers.
	MMX [8]Vec64

	// SSE control register.
	MXCSR uint32

	// ZMM[i] is canonical; XMM(i)/YMM(i) below are views over its low
	// bits. Low 16 lanes alias XMM/YMM; 16..32 are AVX-512-only.
	ZMM [32]Vec512

	// AVX-512 opmask registers; only the low 16 bits are architectural on
	// baseline AVX-512F.
	K [8]uint64
}

// XMM returns the low 128 bits of ZMM[i] as a view.
func (r *RegisterSet) XMM(i int) Vec128 {
	var v Vec128

	copy(v[:], r.ZMM[i][:16])

	return v
}

// YMM returns the low 256 bits of ZMM[i] as a view.
func (r *RegisterSet) YMM(i int) Vec256 {
	var v Vec256

	copy(v[:], r.ZMM[i][:32])

	return v
}

// SetXMM writes v into the low 128 bits of ZMM[i], leaving the upper bits
// untouched. Callers that write XMM must mirror the low 128 bits into the
// corresponding ZMM lane; this is the one-way aliasing the codec enforces
// on encode.
func (r *RegisterSet) SetXMM(i int, v Vec128) {
	copy(r.ZMM[i][:16], v[:])
}

// SetYMM writes v into the low 256 bits of ZMM[i], leaving the upper bits
// untouched.
func (r *RegisterSet) SetYMM(i int, v Vec256) {
	copy(r.ZMM[i][:32], v[:])
}
