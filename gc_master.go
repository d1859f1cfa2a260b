// Package gc_master 是一个停顿式标记清除堆管理器：固定大小的竞技场、best-fit 空闲块池、
// 存活对象表，回收时从宿主给出的根集追踪可达对象并重建空闲块池。
//
// 宿主运行时实现 Behavior，并自行串行化对 GC 的所有调用。
package gc_master

import (
	"golang.org/x/exp/slog"

	"gc_master/internal/config"
	"gc_master/internal/engine"
	"gc_master/internal/errs"
	"gc_master/internal/freelist"
	"gc_master/internal/mem"
)

// 对外暴露的 sentinel errors，便于调用方 errors.Is。
var (
	ErrNoSpace      = errs.ErrNoSpace
	ErrCannotResize = errs.ErrCannotResize
	ErrBadArgument  = errs.ErrBadArgument
	ErrClosed       = errs.ErrClosed
	ErrCorrupt      = errs.ErrCorrupt
)

type (
	Addr      = mem.Addr
	Behavior  = engine.Behavior
	Stats     = engine.Stats
	State     = engine.State
	Config    = config.Config
	Size      = config.Size
	FreeBlock = freelist.Block
)

const Null = mem.Null

// IsFatal 报告 err 是否不可重试（无法原地增长、堆记账损坏）。
func IsFatal(err error) bool { return errs.IsFatal(err) }

// DefaultConfig 返回默认配置。
func DefaultConfig() Config { return config.Default() }

// LoadConfig 从 YAML 文件读取配置，缺省字段取默认值。
func LoadConfig(path string) (Config, error) { return config.Load(path) }

type options struct {
	log *slog.Logger
}

// Option 配置 Open。
type Option func(*options)

// WithLogger 指定日志输出，不指定时丢弃日志。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

type GC struct {
	e *engine.GC
}

// Open 按 cfg 初始化堆。
func Open(cfg Config, opts ...Option) (*GC, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	e, err := engine.Open(cfg, o.log)
	if err != nil {
		return nil, err
	}
	return &GC{e: e}, nil
}

// InitMemory 以默认配置初始化 size 字节的堆，size 须为页大小的整数倍。
func InitMemory(size uint64) (*GC, error) {
	cfg := config.Default()
	cfg.HeapSize = config.Size(size)
	return Open(cfg)
}

// Shutdown 释放堆。b 可为 nil；开启 run_finalizers 时对存活对象调用 Finalize。
func (g *GC) Shutdown(b Behavior) error {
	if g == nil || g.e == nil {
		return nil
	}
	return g.e.Shutdown(b)
}

// FetchFreeMemory 分配 size 字节（含头部），返回存储起始地址。b 为 nil 时返回 ErrBadArgument。
func (g *GC) FetchFreeMemory(size uint64, b Behavior) (Addr, error) {
	if g == nil || g.e == nil {
		return Null, ErrClosed
	}
	return g.e.Alloc(size, b)
}

// ResizeMemory 原地调整已登记对象的大小，无法增长时返回 ErrCannotResize。
func (g *GC) ResizeMemory(obj Addr, newSize uint64, b Behavior) error {
	if g == nil || g.e == nil {
		return ErrClosed
	}
	return g.e.Resize(obj, newSize, b)
}

// AddObjectReference 登记对象，obj 指向头部之后。
func (g *GC) AddObjectReference(obj Addr) error {
	if g == nil || g.e == nil {
		return ErrClosed
	}
	return g.e.Register(obj)
}

// Collect 执行一次完整回收，b 为 nil 时什么也不做。
func (g *GC) Collect(b Behavior) {
	if g == nil || g.e == nil || b == nil {
		return
	}
	g.e.Collect(b)
}

// FreeMemorySize 返回空闲字节数。
func (g *GC) FreeMemorySize() uint64 {
	if g == nil || g.e == nil {
		return 0
	}
	return g.e.FreeBytes()
}

func (g *GC) Stats() Stats {
	if g == nil || g.e == nil {
		return Stats{}
	}
	return g.e.Stats()
}

func (g *GC) State() State {
	if g == nil || g.e == nil {
		return engine.Idle
	}
	return g.e.State()
}

// Objects 返回存活对象，下标即 id，只在下一次回收前有效。
func (g *GC) Objects() []Addr {
	if g == nil || g.e == nil {
		return nil
	}
	return g.e.Objects()
}

func (g *GC) ObjectID(obj Addr) (int, bool) {
	if g == nil || g.e == nil {
		return 0, false
	}
	return g.e.ObjectID(obj)
}

func (g *GC) FreeBlocks() []FreeBlock {
	if g == nil || g.e == nil {
		return nil
	}
	return g.e.FreeBlocks()
}

// Bottom 与 Top 是堆的地址范围，Top 不含。
func (g *GC) Bottom() Addr { return g.e.Heap().Bottom() }
func (g *GC) Top() Addr    { return g.e.Heap().Top() }

// Bytes 返回 [p, p+n) 的字节视图。
func (g *GC) Bytes(p Addr, n uint64) []byte { return g.e.Heap().Bytes(p, n) }

// Slot 把堆内对齐地址 p 视作一个引用槽。
func (g *GC) Slot(p Addr) *Addr { return g.e.Heap().Slot(p) }

// Validate 检查记账一致性，失败返回 ErrCorrupt。
func (g *GC) Validate(b Behavior) error {
	if g == nil || g.e == nil {
		return ErrClosed
	}
	return g.e.Validate(b)
}

// Engine 返回内部回收器，供同模块的宿主对象模型使用。
func (g *GC) Engine() *engine.GC { return g.e }
