package engine

import (
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"gc_master/internal/config"
	"gc_master/internal/freelist"
	"gc_master/internal/heap"
	"gc_master/internal/mmap"
	"gc_master/internal/objtable"
)

// GC 堆、空闲块池与对象表的唯一所有者。
//
// 不加锁：所有入口须由调用方串行化，回收期间 mutator 不得运行。
type GC struct {
	cfg config.Config
	log *slog.Logger

	heap  *heap.Heap
	pool  *freelist.Pool
	table *objtable.Table

	state  State
	stats  Stats
	closed bool
}

// Open 按配置初始化堆，整个堆作为一个空闲块。log 为 nil 时丢弃日志。
func Open(cfg config.Config, log *slog.Logger) (*GC, error) {
	if err := cfg.Validate(mmap.PageSize()); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h, err := heap.Open(uint64(cfg.HeapSize), heap.Options{Mmap: cfg.Mmap, Path: cfg.Backing})
	if err != nil {
		return nil, err
	}
	gc := &GC{
		cfg:   cfg,
		log:   log,
		heap:  h,
		pool:  freelist.New(cfg.PoolChunk),
		table: objtable.New(cfg.TableChunk, h),
	}
	gc.pool.Insert(freelist.Block{Start: h.Bottom(), Length: h.Size()})
	gc.stats.HeapSize = h.Size()
	log.Debug("gc: init", "heap", cfg.HeapSize, "bottom", h.Bottom(), "mapped", h.Mapped())
	return gc, nil
}

// Shutdown 释放堆、空闲块池与对象表。开启 run_finalizers 时先对每个存活对象调用 Finalize。
func (gc *GC) Shutdown(b Behavior) error {
	if gc.closed {
		return nil
	}
	if gc.cfg.Finalizers && b != nil {
		for _, p := range gc.table.Slots() {
			b.Finalize(p)
		}
	}
	gc.closed = true
	gc.pool.Reset()
	gc.table.Reset()
	if err := gc.heap.Close(); err != nil {
		return errors.Wrap(err, "gc: release heap")
	}
	gc.log.Debug("gc: shutdown", "collections", gc.stats.Collections)
	return nil
}

// Config 返回生效的配置。
func (gc *GC) Config() config.Config { return gc.cfg }

// Heap 返回底层堆，供宿主读写对象内容。
func (gc *GC) Heap() *heap.Heap { return gc.heap }

// HeaderSize 返回对象指针之前的头部字节数。
func (gc *GC) HeaderSize() uint64 { return gc.cfg.HeaderSize }

// State 返回回收状态，回收之外恒为 Idle。
func (gc *GC) State() State { return gc.state }

// Closed 报告是否已 Shutdown。
func (gc *GC) Closed() bool { return gc.closed }
