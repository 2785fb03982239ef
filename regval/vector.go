// Package regval holds the flat, value-type register representation the
// rest of this module operates on: VectorValue, Table, CpuMode,
// OperatingState and RegisterSet. None of these types touch KVM or any
// host resource; they are pure data, the same way
// original_source/include/x86lab/vm.hpp's Vm::State::Registers is pure
// data independent of the Vm class that produces it.
package regval

import "fmt"

// Numeric is the set of element types a VectorValue can be sliced into.
type Numeric interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Vec64, Vec128, Vec256 and Vec512 are the fixed-width byte containers
// backing MMX, XMM, YMM and ZMM values respectively, specialized per width
// since Go generics cannot parametrize an array length by a type
// parameter.
type (
	Vec64  [8]byte
	Vec128 [16]byte
	Vec256 [32]byte
	Vec512 [64]byte
)

func elem[T Numeric](data []byte, i int) T {
	var zero T

	size := sizeOf(zero)
	lo := i * size

	if i < 0 || lo+size > len(data) {
		panic(fmt.Sprintf("regval: element index %d out of range for %d-byte value of %d-byte elements", i, len(data), size))
	}

	var v T

	loadLE(data[lo:lo+size], &v)

	return v
}

func setElem[T Numeric](data []byte, i int, v T) {
	size := sizeOf(v)
	lo := i * size

	if i < 0 || lo+size > len(data) {
		panic(fmt.Sprintf("regval: element index %d out of range for %d-byte value of %d-byte elements", i, len(data), size))
	}

	storeLE(data[lo:lo+size], v)
}

// Elem64 reads the i'th T-sized little-endian element out of v.
func Elem64[T Numeric](v *Vec64, i int) T { return elem[T](v[:], i) }

// SetElem64 writes the i'th T-sized little-endian element into v.
func SetElem64[T Numeric](v *Vec64, i int, val T) { setElem(v[:], i, val) }

// Elem128 reads the i'th T-sized little-endian element out of v.
func Elem128[T Numeric](v *Vec128, i int) T { return elem[T](v[:], i) }

// SetElem128 writes the i'th T-sized little-endian element into v.
func SetElem128[T Numeric](v *Vec128, i int, val T) { setElem(v[:], i, val) }

// Elem256 reads the i'th T-sized little-endian element out of v.
func Elem256[T Numeric](v *Vec256, i int) T { return elem[T](v[:], i) }

// SetElem256 writes the i'th T-sized little-endian element into v.
func SetElem256[T Numeric](v *Vec256, i int, val T) { setElem(v[:], i, val) }

// Elem512 reads the i'th T-sized little-endian element out of v.
func Elem512[T Numeric](v *Vec512, i int) T { return elem[T](v[:], i) }

// SetElem512 writes the i'th T-sized little-endian element into v.
func SetElem512[T Numeric](v *Vec512, i int, val T) { setElem(v[:], i, val) }

// FromBytes512 builds a Vec512 from raw bytes, zero-padding or truncating to
// 64 bytes.
func FromBytes512(b []byte) Vec512 {
	var v Vec512

	copy(v[:], b)

	return v
}
