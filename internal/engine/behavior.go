package engine

import "gc_master/internal/mem"

// Behavior 由宿主运行时实现，回收器通过它了解根集与对象布局。
type Behavior interface {
	// RootSet 返回保存堆引用的根槽，槽内可以是 Null。
	RootSet() []*mem.Addr
	// SizeOf 返回对象占用的总字节数（含头部）。
	SizeOf(obj mem.Addr) uint64
	// References 返回对象内可能保存引用的槽。
	References(obj mem.Addr) []*mem.Addr
	Verbose() bool
	Profile() bool
	// Finalize 仅在开启 run_finalizers 时被调用。
	Finalize(obj mem.Addr)
}
