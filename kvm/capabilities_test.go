package kvm_test

import (
	"testing"

	"x86lab/kvm"
)

func TestCapabilityStringer(t *testing.T) {
	cases := []struct {
		name string
		cap  kvm.Capability
		want string
	}{
		{"irqchip", kvm.CapIRQChip, "CapIRQChip"},
		{"mpstate", kvm.CapMPState, "CapMPState"},
		{"iommu", kvm.CapIOMMU, "CapIOMMU"},
		{"irqrouting", kvm.CapIRQRouting, "CapIRQRouting"},
		{"nrmemslots", kvm.CapNRMemSlots, "CapNRMemSlots"},
		{"kvmclockctrl", kvm.CapKVMClockCtrl, "CapKVMClockCtrl"},
		{"unknown", kvm.Capability(255), "Capability(255)"},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			if got := c.cap.String(); got != c.want {
				t.Errorf("String() = %q, want %q", got, c.want)
			}
		})
	}
}
