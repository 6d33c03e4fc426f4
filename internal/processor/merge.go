package processor

import (
	"reflect"
)

func mergeReflect(t reflect.Type, a, b, out reflect.Value) {
	switch t.Kind() {
	case reflect.Struct:
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() {
				continue
			}
			mergeReflect(f.Type, a.FieldByIndex(f.Index), b.FieldByIndex(f.Index), out.FieldByIndex(f.Index))
		}
	case reflect.Pointer:
		if a.IsNil() {
			out.Set(b)
		} else if b.IsNil() {
			out.Set(a)
		} else {
			out.Set(reflect.New(t.Elem()))
			mergeReflect(t.Elem(), a.Elem(), b.Elem(), out.Elem())
		}
	case reflect.Map:
		if a.Len() == 0 && b.Len() == 0 {
			out.Set(b)
			return
		}
		// Entries of b replace entries of a with the same key.
		m := reflect.MakeMapWithSize(t, a.Len()+b.Len())
		for _, src := range []reflect.Value{a, b} {
			iter := src.MapRange()
			for iter.Next() {
				m.SetMapIndex(iter.Key(), iter.Value())
			}
		}
		out.Set(m)
	default:
		if b.IsZero() {
			out.Set(a)
		} else {
			out.Set(b)
		}
	}
}

// Merge returns a with every non-zero field of b applied on top.
// Structs and pointers to structs merge field by field, maps merge by key.
func Merge[T any](a T, b T) T {
	var out T
	mergeReflect(reflect.TypeOf((*T)(nil)).Elem(), reflect.ValueOf(a), reflect.ValueOf(b), reflect.ValueOf(&out).Elem())
	return out
}
