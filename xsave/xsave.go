// Package xsave implements the mapping between a regval.RegisterSet's
// vector fields and the raw XSAVE area a vCPU's XSAVE state is stored in
// (kvm.XSave.Region). Several of the component offsets are not fixed by
// the legacy x87/SSE layout; they must be queried from the host's own
// CPUID leaf 0xD, since KVM does not report them through any ioctl.
package xsave

import (
	"errors"

	"x86lab/cpuid"
	"x86lab/regval"
)

// ErrNoFXSAVE is returned by NewCodec when the host lacks the baseline
// FXSAVE/SSE support this core assumes is always present.
var ErrNoFXSAVE = errors.New("xsave: host CPU lacks FXSAVE/SSE support")

// Legacy offsets fixed by the FXSAVE area layout.
const (
	offMXCSR     = 24
	offMXCSRMask = 28
	offMM        = 32
	offXMM       = 160
	offXstateBv  = 512

	strideMM  = 16
	strideXMM = 16
)

// xstateBv bits this core sets on encode so the kernel commits the lanes
// RegisterSet actually carries values for.
const (
	xstateBvX87 = 1 << 0
	xstateBvSSE = 1 << 1
	xstateBvAVX = 1 << 2
	xstateBvOpmask = 1 << 5
	xstateBvZMMHi256 = 1 << 6
	xstateBvHi16ZMM  = 1 << 7

	committedComponentMask = xstateBvX87 | xstateBvSSE | xstateBvAVX |
		xstateBvOpmask | xstateBvZMMHi256 | xstateBvHi16ZMM
)

const avx512FEBXBit = 16 // CPUID leaf 7 subleaf 0 EBX bit 16.

// Codec encodes/decodes a RegisterSet's vector fields against a raw XSAVE
// area, using host-CPUID-discovered offsets for the components whose
// placement is not architecturally fixed.
type Codec struct {
	avx512        bool
	ymmOffset     uint32
	opmaskOffset  uint32
	zmmHi256Offset uint32
	zmmFullOffset  uint32
}

// NewCodec queries the host's CPUID leaves once and builds a Codec from
// them. It never touches the guest; the same Codec can decode/encode every
// snapshot for the process's lifetime, since the offsets are a property of
// the host CPU, not of any particular vCPU.
func NewCodec() (*Codec, error) {
	_, _, _, edx1 := cpuid.Leaf(1, 0)
	if edx1&(1<<cpuid.FXSR) == 0 || edx1&(1<<cpuid.XMM) == 0 {
		return nil, ErrNoFXSAVE
	}

	_, ebx7, _, _ := cpuid.Leaf(7, 0)
	avx512 := ebx7&(1<<avx512FEBXBit) != 0

	c := &Codec{avx512: avx512}

	if avx512 {
		_, ymmEBX, _, _ := cpuid.Leaf(0xD, 2)
		_, opmaskEBX, _, _ := cpuid.Leaf(0xD, 5)
		_, zmmHiEBX, _, _ := cpuid.Leaf(0xD, 6)
		_, zmmFullEBX, _, _ := cpuid.Leaf(0xD, 7)

		c.ymmOffset = ymmEBX
		c.opmaskOffset = opmaskEBX
		c.zmmHi256Offset = zmmHiEBX
		c.zmmFullOffset = zmmFullEBX
	} else {
		// Hosts without AVX-512 still have the AVX (YMM-high) component;
		// its subleaf is independent of AVX-512 support.
		_, ymmEBX, _, _ := cpuid.Leaf(0xD, 2)
		c.ymmOffset = ymmEBX
	}

	return c, nil
}

// HasAVX512 reports whether this host advertises baseline AVX-512F
// (CPUID leaf 7 subleaf 0 EBX bit 16).
func (c *Codec) HasAVX512() bool { return c.avx512 }

// Decode reads a RegisterSet's vector fields out of a raw XSAVE area. On a
// host without AVX-512, the K/ZMM-high fields are set to zero rather than
// read, since they do not exist in the area at all.
func (c *Codec) Decode(area []byte, rs *regval.RegisterSet) {
	rs.MXCSR = le32(area[offMXCSR:])

	for i := 0; i < 8; i++ {
		off := offMM + i*strideMM
		copy(rs.MMX[i][:], area[off:off+8])
	}

	for i := 0; i < 16; i++ {
		off := offXMM + i*strideXMM
		rs.SetXMM(i, regval.Vec128(area2Vec128(area[off : off+16])))
	}

	if c.ymmOffset != 0 {
		for i := 0; i < 16; i++ {
			off := int(c.ymmOffset) + i*16
			var hi regval.Vec128
			copy(hi[:], area[off:off+16])
			rs.SetYMM(i, concatYMM(rs.XMM(i), hi))
		}
	}

	if !c.avx512 {
		rs.K = [8]uint64{}

		for i := 0; i < 16; i++ {
			setZMMHigh256(&rs.ZMM[i], regval.Vec256{})
		}

		for i := 16; i < 32; i++ {
			rs.ZMM[i] = regval.Vec512{}
		}

		return
	}

	for i := 0; i < 8; i++ {
		off := int(c.opmaskOffset) + i*8
		rs.K[i] = le64(area[off:])
	}

	for i := 0; i < 16; i++ {
		off := int(c.zmmHi256Offset) + i*32
		var hi regval.Vec256
		copy(hi[:], area[off:off+32])
		setZMMHigh256(&rs.ZMM[i], hi)
	}

	for i := 16; i < 32; i++ {
		off := int(c.zmmFullOffset) + (i-16)*64
		copy(rs.ZMM[i][:], area[off:off+64])
	}
}

// Encode overlays a RegisterSet's vector fields onto an existing XSAVE
// area (read first via kvm.GetXSave, so unrelated bytes are preserved) and
// ORs the component-present bitmap so the kernel commits the written
// lanes
func (c *Codec) Encode(rs *regval.RegisterSet, area []byte) {
	putLE32(area[offMXCSR:], rs.MXCSR)
	putLE32(area[offMXCSRMask:], 0xFFFFFFFF)

	for i := 0; i < 8; i++ {
		off := offMM + i*strideMM
		copy(area[off:off+8], rs.MMX[i][:])
	}

	for i := 0; i < 16; i++ {
		off := offXMM + i*strideXMM
		xmm := rs.XMM(i)
		copy(area[off:off+16], xmm[:])
	}

	if c.ymmOffset != 0 {
		for i := 0; i < 16; i++ {
			off := int(c.ymmOffset) + i*16
			ymm := rs.YMM(i)
			copy(area[off:off+16], ymm[16:])
		}
	}

	bitmap := committedComponentMask
	if !c.avx512 {
		// On a host without AVX-512, the K/ZMM-high regions do not exist
		// in this area: silently drop them rather than writing past the
		// legacy+AVX layout.
		bitmap = xstateBvX87 | xstateBvSSE | xstateBvAVX
	} else {
		for i := 0; i < 8; i++ {
			off := int(c.opmaskOffset) + i*8
			putLE64(area[off:], rs.K[i])
		}

		for i := 0; i < 16; i++ {
			off := int(c.zmmHi256Offset) + i*32
			hi := zmmHigh256(rs.ZMM[i])
			copy(area[off:off+32], hi[:])
		}

		for i := 16; i < 32; i++ {
			off := int(c.zmmFullOffset) + (i-16)*64
			copy(area[off:off+64], rs.ZMM[i][:])
		}
	}

	area[offXstateBv] |= byte(bitmap)
}

func area2Vec128(b []byte) [16]byte {
	var v [16]byte

	copy(v[:], b)

	return v
}

func concatYMM(low regval.Vec128, high regval.Vec128) regval.Vec256 {
	var v regval.Vec256

	copy(v[:16], low[:])
	copy(v[16:], high[:])

	return v
}

func setZMMHigh256(zmm *regval.Vec512, hi regval.Vec256) {
	copy(zmm[32:64], hi[:])
}

func zmmHigh256(zmm regval.Vec512) regval.Vec256 {
	var v regval.Vec256

	copy(v[:], zmm[32:64])

	return v
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}

	return v
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
