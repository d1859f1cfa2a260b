package freelist

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gc_master/internal/errs"
	"gc_master/internal/mem"
)

func mkPool(blocks ...Block) *Pool {
	p := New(0)
	for _, b := range blocks {
		p.Insert(b)
	}
	return p
}

func TestBestFitPicksSmallestLeftover(t *testing.T) {
	p := mkPool(
		Block{Start: 1000, Length: 50},
		Block{Start: 2000, Length: 120},
		Block{Start: 3000, Length: 80},
	)
	addr, ok := p.BestFit(70)
	require.True(t, ok)
	assert.Equal(t, mem.Addr(3000), addr)
	assert.Equal(t, []Block{
		{Start: 1000, Length: 50},
		{Start: 2000, Length: 120},
		{Start: 3070, Length: 10},
	}, p.Blocks())
}

func TestBestFitTieKeepsFirst(t *testing.T) {
	p := mkPool(
		Block{Start: 1000, Length: 80},
		Block{Start: 2000, Length: 80},
	)
	addr, ok := p.BestFit(70)
	require.True(t, ok)
	assert.Equal(t, mem.Addr(1000), addr)
}

func TestBestFitExactRemovesBlock(t *testing.T) {
	p := mkPool(Block{Start: 1000, Length: 64}, Block{Start: 2000, Length: 128})
	addr, ok := p.BestFit(64)
	require.True(t, ok)
	assert.Equal(t, mem.Addr(1000), addr)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, Block{Start: 2000, Length: 128}, p.At(0))
}

func TestBestFitNoFit(t *testing.T) {
	p := mkPool(Block{Start: 1000, Length: 32})
	_, ok := p.BestFit(33)
	assert.False(t, ok)
	_, ok = p.BestFit(0)
	assert.False(t, ok)
	assert.Equal(t, uint64(32), p.FreeBytes())
}

func TestInsertMergesAdjacentAfter(t *testing.T) {
	p := mkPool(Block{Start: 1000, Length: 50})
	n := p.Insert(Block{Start: 1050, Length: 30})
	assert.Equal(t, uint64(30), n)
	assert.Equal(t, []Block{{Start: 1000, Length: 80}}, p.Blocks())
}

func TestInsertMergesOverlap(t *testing.T) {
	p := mkPool(Block{Start: 1000, Length: 80})
	n := p.Insert(Block{Start: 1040, Length: 100})
	assert.Equal(t, uint64(60), n)
	assert.Equal(t, []Block{{Start: 1000, Length: 140}}, p.Blocks())

	n = p.Insert(Block{Start: 1010, Length: 10})
	assert.Equal(t, uint64(0), n, "contained run adds nothing")
	assert.Equal(t, 1, p.Len())
}

func TestInsertMergesAdjacentBefore(t *testing.T) {
	p := mkPool(Block{Start: 1100, Length: 50})
	n := p.Insert(Block{Start: 1000, Length: 100})
	assert.Equal(t, uint64(100), n)
	assert.Equal(t, []Block{{Start: 1000, Length: 150}}, p.Blocks())
}

func TestInsertSwallowsSeveral(t *testing.T) {
	p := mkPool(
		Block{Start: 1000, Length: 10},
		Block{Start: 1100, Length: 10},
		Block{Start: 1200, Length: 10},
		Block{Start: 5000, Length: 10},
	)
	n := p.Insert(Block{Start: 990, Length: 300})
	assert.Equal(t, uint64(270), n)
	assert.Equal(t, []Block{{Start: 5000, Length: 10}, {Start: 990, Length: 300}}, p.Blocks())
	require.NoError(t, p.Validate())
}

func TestInsertZeroLength(t *testing.T) {
	p := New(0)
	assert.Equal(t, uint64(0), p.Insert(Block{Start: 1000}))
	assert.Equal(t, 0, p.Len())
}

func TestGrowsInChunks(t *testing.T) {
	p := New(2)
	for i := 0; i < 5; i++ {
		p.Insert(Block{Start: mem.Addr(1000 + i*100), Length: 10})
	}
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 6, cap(p.blocks))
}

func TestRemoveAt(t *testing.T) {
	p := mkPool(
		Block{Start: 1000, Length: 10},
		Block{Start: 2000, Length: 20},
		Block{Start: 3000, Length: 30},
	)
	p.RemoveAt(1)
	assert.Equal(t, []Block{{Start: 1000, Length: 10}, {Start: 3000, Length: 30}}, p.Blocks())
	assert.Panics(t, func() { p.RemoveAt(2) })
}

func TestGrowInPlace(t *testing.T) {
	p := mkPool(Block{Start: 1100, Length: 50})
	require.NoError(t, p.GrowInPlace(1000, 100, 140))
	assert.Equal(t, []Block{{Start: 1140, Length: 10}}, p.Blocks())

	require.NoError(t, p.GrowInPlace(1000, 140, 150))
	assert.Equal(t, 0, p.Len(), "exhausted block is removed")
}

func TestGrowInPlaceFails(t *testing.T) {
	p := mkPool(Block{Start: 1100, Length: 50})
	before := p.Blocks()

	err := p.GrowInPlace(1000, 100, 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCannotResize))
	assert.True(t, errs.IsFatal(err))

	err = p.GrowInPlace(1000, 90, 100)
	assert.True(t, errors.Is(err, errs.ErrCannotResize), "block not adjacent")
	assert.Equal(t, before, p.Blocks(), "failed growth must not touch the pool")
}

func TestValidate(t *testing.T) {
	p := mkPool(Block{Start: 1000, Length: 10}, Block{Start: 2000, Length: 10})
	require.NoError(t, p.Validate())

	p.blocks = append(p.blocks, Block{Start: 1005, Length: 10})
	assert.True(t, errors.Is(p.Validate(), errs.ErrCorrupt))

	p.blocks = []Block{{Start: 1000}}
	assert.True(t, errors.Is(p.Validate(), errs.ErrCorrupt))
}

func TestReset(t *testing.T) {
	p := mkPool(Block{Start: 1000, Length: 10})
	p.Reset()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, uint64(0), p.FreeBytes())
}

func TestInsertManyDisjointRuns(t *testing.T) {
	p := New(0)
	const n = 5000
	for i := 0; i < n; i++ {
		assert.Equal(t, uint64(32), p.Insert(Block{Start: mem.Addr(4096 + i*64), Length: 32}))
	}
	assert.Equal(t, n, p.Len())
	assert.Equal(t, uint64(n*32), p.FreeBytes())

	// 一个大区间吞并全部小块
	got := p.Insert(Block{Start: 4096, Length: n * 64})
	assert.Equal(t, uint64(n*32), got)
	assert.Equal(t, []Block{{Start: 4096, Length: n * 64}}, p.Blocks())
}

func TestInsertAbsorbsOnBothSides(t *testing.T) {
	p := mkPool(
		Block{Start: 1250, Length: 100},
		Block{Start: 1100, Length: 10},
		Block{Start: 3000, Length: 10},
	)
	n := p.Insert(Block{Start: 1000, Length: 260})
	assert.Equal(t, uint64(240), n)
	assert.Equal(t, []Block{{Start: 3000, Length: 10}, {Start: 1000, Length: 350}}, p.Blocks())
	require.NoError(t, p.Validate())
}

func BenchmarkSweepInsertFragmented(b *testing.B) {
	p := New(0)
	for i := 0; i < b.N; i++ {
		p.Reset()
		for r := 0; r < 4000; r++ {
			p.Insert(Block{Start: mem.Addr(4096 + r*64), Length: 32})
		}
	}
}
