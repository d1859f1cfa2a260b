package objmodel

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"

	"gc_master/internal/errs"
	"gc_master/internal/mem"
)

// 堆内数据对 Go 回收器不可见，只能存放不含指针的类型。
func assertNoPointers[T any]() error {
	var zero T
	return typeNoPointers(reflect.TypeOf(zero))
}

func typeNoPointers(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Array:
		return typeNoPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := typeNoPointers(t.Field(i).Type); err != nil {
				return errors.Wrapf(err, "field %s", t.Field(i).Name)
			}
		}
		return nil
	case reflect.String, reflect.Slice, reflect.Map, reflect.Pointer,
		reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return errors.Wrapf(errs.ErrBadArgument, "type %s contains pointer-like data", t.String())
	default:
		return errors.Wrapf(errs.ErrBadArgument, "unsupported kind %s (%s)", t.Kind(), t.String())
	}
}

func bytesViewOf[T any](p *T) []byte {
	n := int(unsafe.Sizeof(*p))
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

// NewFixed 分配一个带 nrefs 个引用、数据区存放 *v 的对象。
func NewFixed[T any](r *Runtime, nrefs int, v *T) (mem.Addr, error) {
	if err := assertNoPointers[T](); err != nil {
		return mem.Null, err
	}
	obj, err := r.New(nrefs, int(unsafe.Sizeof(*v)))
	if err != nil {
		return mem.Null, err
	}
	copy(r.Data(obj), bytesViewOf(v))
	return obj, nil
}

// PutFixed 将无指针类型 T 的实例写入对象数据区。
func PutFixed[T any](r *Runtime, obj mem.Addr, v *T) error {
	if err := assertNoPointers[T](); err != nil {
		return err
	}
	b := bytesViewOf(v)
	data := r.Data(obj)
	if len(data) < len(b) {
		return errors.Wrapf(errs.ErrBadArgument, "object %s holds %d data bytes, %T needs %d", obj, len(data), *v, len(b))
	}
	copy(data, b)
	return nil
}

// GetFixed 从对象数据区读出 *T。
func GetFixed[T any](r *Runtime, obj mem.Addr) (*T, error) {
	if err := assertNoPointers[T](); err != nil {
		return nil, err
	}
	out := new(T)
	b := bytesViewOf(out)
	data := r.Data(obj)
	if len(data) < len(b) {
		return nil, errors.Wrapf(errs.ErrBadArgument, "object %s holds %d data bytes, %T needs %d", obj, len(data), *out, len(b))
	}
	copy(b, data)
	return out, nil
}
