package objmodel

import (
	"github.com/cockroachdb/errors"

	"gc_master/internal/engine"
	"gc_master/internal/errs"
	"gc_master/internal/heap"
	"gc_master/internal/mem"
)

// Runtime 在 engine.GC 之上实现 engine.Behavior，根槽保存在 Go 内存里。
type Runtime struct {
	gc   *engine.GC
	heap *heap.Heap

	roots     []*mem.Addr
	verbose   bool
	profile   bool
	finalized []mem.Addr
}

var _ engine.Behavior = (*Runtime)(nil)

// NewRuntime 绑定 gc，要求 gc 的头部大小与本模型一致。
func NewRuntime(gc *engine.GC) (*Runtime, error) {
	if gc.HeaderSize() != HeaderSize {
		return nil, errors.Wrapf(errs.ErrBadArgument, "header_size %d, object model needs %d", gc.HeaderSize(), HeaderSize)
	}
	return &Runtime{gc: gc, heap: gc.Heap()}, nil
}

// GC 返回底层回收器。
func (r *Runtime) GC() *engine.GC { return r.gc }

func (r *Runtime) SetVerbose(v bool) { r.verbose = v }
func (r *Runtime) SetProfile(v bool) { r.profile = v }

// New 分配并登记一个带 nrefs 个空引用、dataLen 字节零数据的对象。
func (r *Runtime) New(nrefs, dataLen int) (mem.Addr, error) {
	if nrefs < 0 || dataLen < 0 {
		return mem.Null, errors.Wrapf(errs.ErrBadArgument, "new object refs=%d data=%d", nrefs, dataLen)
	}
	size := SizeFor(nrefs, dataLen)
	p, err := r.gc.Alloc(size, r)
	if err != nil {
		return mem.Null, err
	}
	EncodeHeader(r.heap.Bytes(p, HeaderSize), Header{Magic: Magic, NRefs: uint32(nrefs), Size: size})
	obj := p.Add(HeaderSize)
	if err := r.gc.Register(obj); err != nil {
		return mem.Null, err
	}
	return obj, nil
}

func (r *Runtime) header(obj mem.Addr) Header {
	h := DecodeHeader(r.heap.Bytes(obj-HeaderSize, HeaderSize))
	errs.Assertf(h.Magic == Magic, "objmodel: bad magic %#x at %s", h.Magic, obj)
	return h
}

// NumRefs 返回引用槽个数。
func (r *Runtime) NumRefs(obj mem.Addr) int {
	return int(r.header(obj).NRefs)
}

func (r *Runtime) slot(obj mem.Addr, i int) *mem.Addr {
	n := r.NumRefs(obj)
	errs.Assertf(i >= 0 && i < n, "objmodel: ref %d of %d at %s", i, n, obj)
	return r.heap.Slot(obj.Add(uint64(i) * mem.WordSize))
}

// SetRef 设置第 i 个引用。
func (r *Runtime) SetRef(obj mem.Addr, i int, target mem.Addr) {
	*r.slot(obj, i) = target
}

// Ref 读取第 i 个引用。
func (r *Runtime) Ref(obj mem.Addr, i int) mem.Addr {
	return *r.slot(obj, i)
}

// Data 返回引用槽之后的数据区。
func (r *Runtime) Data(obj mem.Addr) []byte {
	h := r.header(obj)
	off := uint64(h.NRefs) * mem.WordSize
	return r.heap.Bytes(obj.Add(off), h.Size-HeaderSize-off)
}

// Grow 把数据区原地扩到至少 dataLen 字节，失败时返回 engine 的错误且对象不变。
func (r *Runtime) Grow(obj mem.Addr, dataLen int) error {
	h := r.header(obj)
	size := SizeFor(int(h.NRefs), dataLen)
	if size <= h.Size {
		return nil
	}
	if err := r.gc.Resize(obj, size, r); err != nil {
		return err
	}
	h.Size = size
	EncodeHeader(r.heap.Bytes(obj-HeaderSize, HeaderSize), h)
	return nil
}

// NewRoot 新增一个根槽，初始为 Null。
func (r *Runtime) NewRoot() *mem.Addr {
	slot := new(mem.Addr)
	r.roots = append(r.roots, slot)
	return slot
}

// DropRoot 移除根槽。
func (r *Runtime) DropRoot(slot *mem.Addr) {
	for i, s := range r.roots {
		if s == slot {
			r.roots = append(r.roots[:i], r.roots[i+1:]...)
			return
		}
	}
}

// Finalized 返回被 Finalize 过的对象，按调用顺序。
func (r *Runtime) Finalized() []mem.Addr {
	return r.finalized
}

func (r *Runtime) RootSet() []*mem.Addr {
	return r.roots
}

func (r *Runtime) SizeOf(obj mem.Addr) uint64 {
	return r.header(obj).Size
}

func (r *Runtime) References(obj mem.Addr) []*mem.Addr {
	n := r.NumRefs(obj)
	refs := make([]*mem.Addr, n)
	for i := range refs {
		refs[i] = r.heap.Slot(obj.Add(uint64(i) * mem.WordSize))
	}
	return refs
}

func (r *Runtime) Verbose() bool { return r.verbose }
func (r *Runtime) Profile() bool { return r.profile }

func (r *Runtime) Finalize(obj mem.Addr) {
	r.finalized = append(r.finalized, obj)
}
