package regval_test

import (
	"testing"

	"x86lab/regval"
)

func TestRegisterSetEqualityIsComponentwise(t *testing.T) {
	t.Parallel()

	a := regval.RegisterSet{RAX: 1, RIP: 0x1000}
	b := regval.RegisterSet{RAX: 1, RIP: 0x1000}

	if a != b {
		t.Fatalf("expected equal RegisterSets")
	}

	b.RBX = 1
	if a == b {
		t.Fatalf("expected unequal RegisterSets after differing field")
	}
}

func TestXMMIsLowViewOfZMM(t *testing.T) {
	t.Parallel()

	var rs regval.RegisterSet

	var xmm regval.Vec128

	regval.SetElem128[uint64](&xmm, 0, 0x0102030405060708)
	rs.SetXMM(3, xmm)

	if got := rs.XMM(3); got != xmm {
		t.Fatalf("XMM(3) = %v, want %v", got, xmm)
	}

	// Writing XMM must not disturb the high 384 bits of the ZMM lane.
	if regval.Elem512[uint64](&rs.ZMM[3], 4) != 0 {
		t.Fatalf("expected high bits of ZMM[3] untouched")
	}
}
