package regval

import (
	"encoding/binary"
	"math"
)

func sizeOf[T Numeric](v T) int {
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32, float32:
		return 4
	case uint64, float64:
		return 8
	default:
		panic("regval: unreachable numeric type")
	}
}

func loadLE[T Numeric](b []byte, out *T) {
	switch p := any(out).(type) {
	case *uint8:
		*p = b[0]
	case *uint16:
		*p = binary.LittleEndian.Uint16(b)
	case *uint32:
		*p = binary.LittleEndian.Uint32(b)
	case *uint64:
		*p = binary.LittleEndian.Uint64(b)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		panic("regval: unreachable numeric type")
	}
}

func storeLE[T Numeric](b []byte, v T) {
	switch x := any(v).(type) {
	case uint8:
		b[0] = x
	case uint16:
		binary.LittleEndian.PutUint16(b, x)
	case uint32:
		binary.LittleEndian.PutUint32(b, x)
	case uint64:
		binary.LittleEndian.PutUint64(b, x)
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	default:
		panic("regval: unreachable numeric type")
	}
}
