package pluginapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TypeHashOf returns a 64-bit identity for T's in-memory layout: the
// field names, types, sizes, and offsets, in declaration order. Two
// payload types loaded from separately built extension .so files hash
// identically iff they describe the same layout — unlike a hash of
// reflect.Type itself, which is never equal across two plugin.Open'd
// binaries even for byte-identical struct definitions, since each
// loaded plugin gets its own runtime type.
func TypeHashOf[T any]() uint64 {
	var zero T
	return layoutHash(reflect.TypeOf(zero))
}

func layoutHash(t reflect.Type) uint64 {
	var b strings.Builder
	describeType(&b, t)
	return xxhash.Sum64String(b.String())
}

func describeType(b *strings.Builder, t reflect.Type) {
	if t == nil {
		b.WriteString("nil")
		return
	}
	switch t.Kind() {
	case reflect.Struct:
		fmt.Fprintf(b, "struct{size=%d;", t.Size())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			fmt.Fprintf(b, "%s:off=%d,", f.Name, f.Offset)
			describeType(b, f.Type)
			b.WriteByte(';')
		}
		b.WriteByte('}')
	case reflect.Array:
		fmt.Fprintf(b, "array[%d]", t.Len())
		describeType(b, t.Elem())
	case reflect.Ptr:
		b.WriteString("ptr->")
		describeType(b, t.Elem())
	default:
		fmt.Fprintf(b, "%s(size=%d)", t.Kind().String(), t.Size())
	}
}

// PayloadSizeOf returns sizeof(T) as the runtime would lay it out.
func PayloadSizeOf[T any]() int {
	var zero T
	return int(reflect.TypeOf(zero).Size())
}
