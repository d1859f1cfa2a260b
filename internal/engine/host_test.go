package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gc_master/internal/config"
	"gc_master/internal/mem"
)

const testHeader = 16

// fakeObj 的引用槽放在 Go 内存里，对回收器来说与堆内槽没有区别。
type fakeObj struct {
	size uint64
	refs []mem.Addr
}

type fakeHost struct {
	t  *testing.T
	gc *GC

	objs      map[mem.Addr]*fakeObj
	roots     []*mem.Addr
	finalized []mem.Addr
	verbose   bool
	profile   bool
}

func newTestGC(t *testing.T, mutate ...func(*config.Config)) (*GC, *fakeHost) {
	t.Helper()
	cfg := config.Default()
	cfg.Verify = true
	for _, m := range mutate {
		m(&cfg)
	}
	gc, err := Open(cfg, nil)
	require.NoError(t, err)
	h := &fakeHost{t: t, gc: gc, objs: make(map[mem.Addr]*fakeObj)}
	t.Cleanup(func() { _ = gc.Shutdown(nil) })
	return gc, h
}

// alloc 分配 size 字节（含头部）并登记，返回对象指针。
func (h *fakeHost) alloc(size uint64, nrefs int) mem.Addr {
	h.t.Helper()
	p, err := h.gc.Alloc(size, h)
	require.NoError(h.t, err)
	obj := p.Add(testHeader)
	h.objs[obj] = &fakeObj{size: size, refs: make([]mem.Addr, nrefs)}
	require.NoError(h.t, h.gc.Register(obj))
	return obj
}

func (h *fakeHost) link(from mem.Addr, i int, to mem.Addr) {
	h.objs[from].refs[i] = to
}

func (h *fakeHost) root(obj mem.Addr) *mem.Addr {
	slot := new(mem.Addr)
	*slot = obj
	h.roots = append(h.roots, slot)
	return slot
}

func (h *fakeHost) RootSet() []*mem.Addr { return h.roots }

func (h *fakeHost) SizeOf(obj mem.Addr) uint64 { return h.objs[obj].size }

func (h *fakeHost) References(obj mem.Addr) []*mem.Addr {
	o := h.objs[obj]
	refs := make([]*mem.Addr, len(o.refs))
	for i := range o.refs {
		refs[i] = &o.refs[i]
	}
	return refs
}

func (h *fakeHost) Verbose() bool { return h.verbose }
func (h *fakeHost) Profile() bool { return h.profile }

func (h *fakeHost) Finalize(obj mem.Addr) { h.finalized = append(h.finalized, obj) }
