package schema

import (
	"encoding/binary"
	"hash"
	"math"
	"reflect"

	"github.com/spaolacci/murmur3"
)

// maxHashDepth bounds pointer chasing so cyclic values terminate.
const maxHashDepth = 32

// hashValue is a structural hash consistent with reflect.DeepEqual: values
// that are deeply equal hash equally.
func hashValue(v reflect.Value) uint64 {
	h := murmur3.New64()
	writeValue(h, v, 0)
	return h.Sum64()
}

func writeUint(w hash.Hash64, u uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	_, _ = w.Write(buf[:])
}

func writeValue(w hash.Hash64, v reflect.Value, depth int) {
	if depth > maxHashDepth {
		return
	}
	if !v.IsValid() {
		_, _ = w.Write([]byte{0})
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			writeUint(w, 1)
		} else {
			writeUint(w, 2)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeUint(w, uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		writeUint(w, v.Uint())
	case reflect.Float32, reflect.Float64:
		writeUint(w, floatBits(v.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		writeUint(w, floatBits(real(c)))
		writeUint(w, floatBits(imag(c)))
	case reflect.String:
		writeUint(w, uint64(v.Len()))
		_, _ = w.Write([]byte(v.String()))
	case reflect.Slice, reflect.Array:
		writeUint(w, uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			writeValue(w, v.Index(i), depth+1)
		}
	case reflect.Map:
		// Entry hashes are summed so iteration order does not matter.
		var sum uint64
		iter := v.MapRange()
		for iter.Next() {
			sum += 31*subHash(iter.Key(), depth+1) + subHash(iter.Value(), depth+1)
		}
		writeUint(w, uint64(v.Len()))
		writeUint(w, sum)
	case reflect.Pointer:
		if v.IsNil() {
			writeUint(w, 0)
			return
		}
		writeValue(w, v.Elem(), depth+1)
	case reflect.Interface:
		if v.IsNil() {
			writeUint(w, 0)
			return
		}
		e := v.Elem()
		_, _ = w.Write([]byte(e.Type().String()))
		writeValue(w, e, depth+1)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			writeValue(w, v.Field(i), depth+1)
		}
	case reflect.Chan, reflect.UnsafePointer:
		writeUint(w, uint64(v.Pointer()))
	case reflect.Func:
		// Non-nil funcs are never deeply equal.
		if v.IsNil() {
			writeUint(w, 0)
		} else {
			writeUint(w, 1)
		}
	}
}

func subHash(v reflect.Value, depth int) uint64 {
	h := murmur3.New64()
	writeValue(h, v, depth)
	return h.Sum64()
}

func floatBits(f float64) uint64 {
	if f == 0 {
		return 0 // -0 == +0
	}
	return math.Float64bits(f)
}
