package objmodel

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gc_master/internal/config"
	"gc_master/internal/engine"
	"gc_master/internal/errs"
	"gc_master/internal/mem"
)

func newTestRuntime(t *testing.T, mutate ...func(*config.Config)) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Verify = true
	for _, m := range mutate {
		m(&cfg)
	}
	gc, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	r, err := NewRuntime(gc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gc.Shutdown(r) })
	return r
}

func TestHeaderEncodeDecode(t *testing.T) {
	b := make([]byte, HeaderSize)
	h := Header{Magic: Magic, NRefs: 3, Size: 64}
	EncodeHeader(b, h)
	assert.Equal(t, h, DecodeHeader(b))
	assert.Equal(t, byte(0x47), b[0])
}

func TestSizeFor(t *testing.T) {
	assert.Equal(t, uint64(16), SizeFor(0, 0))
	assert.Equal(t, uint64(32), SizeFor(2, 0))
	assert.Equal(t, uint64(40), SizeFor(2, 1))
	assert.Equal(t, uint64(40), SizeFor(2, 8))
}

func TestNewRuntimeHeaderMismatch(t *testing.T) {
	cfg := config.Default()
	cfg.HeaderSize = 24
	gc, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	defer gc.Shutdown(nil)

	_, err = NewRuntime(gc)
	assert.True(t, errors.Is(err, errs.ErrBadArgument))
}

func TestNewObject(t *testing.T) {
	r := newTestRuntime(t)
	obj, err := r.New(2, 10)
	require.NoError(t, err)

	assert.Equal(t, r.GC().Heap().Bottom().Add(HeaderSize), obj)
	assert.Equal(t, 2, r.NumRefs(obj))
	assert.Equal(t, SizeFor(2, 10), r.SizeOf(obj))
	assert.Len(t, r.Data(obj), 16)
	assert.Equal(t, mem.Null, r.Ref(obj, 1))

	_, err = r.New(-1, 0)
	assert.True(t, errors.Is(err, errs.ErrBadArgument))
}

func TestRefsAndCollect(t *testing.T) {
	r := newTestRuntime(t)
	a, err := r.New(2, 0)
	require.NoError(t, err)
	b, err := r.New(0, 8)
	require.NoError(t, err)
	c, err := r.New(1, 0)
	require.NoError(t, err)
	garbage, err := r.New(1, 0)
	require.NoError(t, err)
	r.SetRef(garbage, 0, a)

	r.SetRef(a, 0, b)
	r.SetRef(a, 1, c)
	r.SetRef(c, 0, a)
	assert.Equal(t, b, r.Ref(a, 0))

	root := r.NewRoot()
	*root = a
	copy(r.Data(b), "survivor")

	gc := r.GC()
	gc.Collect(r)
	assert.Equal(t, []mem.Addr{a, b, c}, gc.Objects())
	assert.Equal(t, "survivor", string(r.Data(b)))
	require.NoError(t, gc.Validate(r))

	r.DropRoot(root)
	gc.Collect(r)
	assert.Empty(t, gc.Objects())
	assert.Equal(t, gc.Heap().Size(), gc.FreeBytes())
}

func TestBadRefIndexPanics(t *testing.T) {
	r := newTestRuntime(t)
	obj, err := r.New(1, 0)
	require.NoError(t, err)
	assert.Panics(t, func() { r.SetRef(obj, 1, obj) })
}

func TestGrow(t *testing.T) {
	r := newTestRuntime(t)
	a, err := r.New(0, 8)
	require.NoError(t, err)
	root := r.NewRoot()
	*root = a

	require.NoError(t, r.Grow(a, 32))
	assert.Len(t, r.Data(a), 32)
	assert.Equal(t, SizeFor(0, 32), r.SizeOf(a))
	require.NoError(t, r.GC().Validate(r))

	b, err := r.New(0, 8)
	require.NoError(t, err)
	*r.NewRoot() = b
	err = r.Grow(a, 64)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Len(t, r.Data(a), 32, "object unchanged after failed growth")
}

type point struct {
	X, Y int64
	Tag  [4]byte
}

func TestFixed(t *testing.T) {
	r := newTestRuntime(t)
	obj, err := NewFixed(r, 1, &point{X: 1, Y: -2, Tag: [4]byte{'a'}})
	require.NoError(t, err)
	assert.Equal(t, 1, r.NumRefs(obj))

	got, err := GetFixed[point](r, obj)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: -2, Tag: [4]byte{'a'}}, *got)

	require.NoError(t, PutFixed(r, obj, &point{X: 7}))
	got, err = GetFixed[point](r, obj)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.X)

	small, err := r.New(0, 8)
	require.NoError(t, err)
	_, err = GetFixed[point](r, small)
	assert.True(t, errors.Is(err, errs.ErrBadArgument))
}

func TestFixedRejectsPointers(t *testing.T) {
	r := newTestRuntime(t)
	type withPtr struct {
		N int
		P *int
	}
	_, err := NewFixed(r, 0, &withPtr{})
	assert.True(t, errors.Is(err, errs.ErrBadArgument))
	_, err = NewFixed(r, 0, &struct{ S string }{})
	assert.True(t, errors.Is(err, errs.ErrBadArgument))
}

func TestFinalizeOnShutdown(t *testing.T) {
	r := newTestRuntime(t, func(c *config.Config) { c.Finalizers = true })
	a, err := r.New(0, 0)
	require.NoError(t, err)
	*r.NewRoot() = a
	dead, err := r.New(0, 0)
	require.NoError(t, err)

	r.GC().Collect(r)
	assert.Equal(t, []mem.Addr{dead}, r.Finalized())
	require.NoError(t, r.GC().Shutdown(r))
	assert.Equal(t, []mem.Addr{dead, a}, r.Finalized())
}
