package gc_master

import "gc_master/internal/objmodel"

// Runtime 自带的宿主对象模型：16 字节头部、引用槽、原始数据。
type Runtime = objmodel.Runtime

// NewRuntime 在 g 上建立对象模型，要求 header_size 为 16。
func NewRuntime(g *GC) (*Runtime, error) {
	if g == nil || g.e == nil {
		return nil, ErrClosed
	}
	return objmodel.NewRuntime(g.e)
}

// NewFixed 分配一个数据区存放无指针类型 T 实例的对象。
func NewFixed[T any](r *Runtime, nrefs int, v *T) (Addr, error) {
	if r == nil {
		return Null, ErrClosed
	}
	return objmodel.NewFixed(r, nrefs, v)
}

// PutFixed 将 *v 写入对象数据区。
func PutFixed[T any](r *Runtime, obj Addr, v *T) error {
	if r == nil {
		return ErrClosed
	}
	return objmodel.PutFixed(r, obj, v)
}

// GetFixed 从对象数据区读出 *T。
func GetFixed[T any](r *Runtime, obj Addr) (*T, error) {
	if r == nil {
		return nil, ErrClosed
	}
	return objmodel.GetFixed[T](r, obj)
}
