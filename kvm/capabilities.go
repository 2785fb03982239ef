package kvm

import "fmt"

// Capability identifies a KVM_CAP_* extension queried via CheckExtension.
//
//go:generate stringer -type=Capability
type Capability uint

const (
	CapIRQChip       Capability = 0
	CapMPState       Capability = 14
	CapIOMMU         Capability = 18
	CapIRQRouting    Capability = 25
	CapNRMemSlots    Capability = 10
	CapKVMClockCtrl  Capability = 76
)

var capabilityNames = map[Capability]string{
	CapIRQChip:      "CapIRQChip",
	CapMPState:      "CapMPState",
	CapIOMMU:        "CapIOMMU",
	CapIRQRouting:   "CapIRQRouting",
	CapNRMemSlots:   "CapNRMemSlots",
	CapKVMClockCtrl: "CapKVMClockCtrl",
}

// String implements fmt.Stringer, hand-written in the same shape that
// `stringer` would generate, with an explicit fallback for capabilities
// this package has no name for.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Capability(%d)", uint(c))
}
