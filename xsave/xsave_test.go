package xsave_test

import (
	"testing"

	"x86lab/regval"
	"x86lab/xsave"
)

// hostCodec builds a Codec from the host's own CPUID via NewCodec (no root
// needed), skipping the test when the host lacks FXSAVE/SSE. Its offsets
// and AVX-512 support are those of the host running the test.
func hostCodec(t *testing.T) *xsave.Codec {
	t.Helper()

	c, err := xsave.NewCodec()
	if err != nil {
		t.Skipf("host lacks baseline FXSAVE/SSE support: %v", err)
	}

	return c
}

func TestDecodeEncodeRoundTripXMM(t *testing.T) {
	t.Parallel()

	c := hostCodec(t)

	area := make([]byte, 4096)

	var in regval.RegisterSet
	in.MXCSR = 0x1F80

	var xmm regval.Vec128
	regval.SetElem128[uint64](&xmm, 0, 0xDEADBEEFCAFEBABE)
	in.SetXMM(2, xmm)

	c.Encode(&in, area)

	var out regval.RegisterSet
	c.Decode(area, &out)

	if out.MXCSR != in.MXCSR {
		t.Fatalf("MXCSR = %#x, want %#x", out.MXCSR, in.MXCSR)
	}

	if out.XMM(2) != xmm {
		t.Fatalf("XMM(2) = %v, want %v", out.XMM(2), xmm)
	}
}

func TestDecodeZeroesOpmaskWithoutAVX512(t *testing.T) {
	t.Parallel()

	c := hostCodec(t)
	if c.HasAVX512() {
		t.Skip("host has AVX-512; this test targets the non-AVX-512 decode path")
	}

	area := make([]byte, 4096)

	var rs regval.RegisterSet
	for i := range rs.K {
		rs.K[i] = 0xFFFF
	}

	c.Decode(area, &rs)

	for i, k := range rs.K {
		if k != 0 {
			t.Fatalf("K[%d] = %#x, want 0 (no AVX-512 on this host)", i, k)
		}
	}
}
