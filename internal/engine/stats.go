package engine

import "time"

// State 一次回收依次经过的阶段，回收结束总是回到 Idle。
type State uint8

const (
	Idle State = iota
	Resetting
	Marking
	SweepingHeap
	SweepingTable
)

var stateNames = map[State]string{
	Idle:          "Idle",
	Resetting:     "Resetting",
	Marking:       "Marking",
	SweepingHeap:  "SweepingHeap",
	SweepingTable: "SweepingTable",
}

func (s State) String() string {
	return stateNames[s]
}

// Stats 回收器统计。MaxOccupancy、MarkTime、SweepTime 仅在 Profile() 为 true 时累计。
type Stats struct {
	HeapSize    uint64
	FreeBytes   uint64
	LiveObjects int

	Collections    uint64
	Allocs         uint64
	FailedAllocs   uint64
	AllocatedBytes uint64

	LastMarkedBytes  uint64
	LastFreedObjects int

	MaxOccupancy uint64
	MarkTime     time.Duration
	SweepTime    time.Duration
}

// Stats 返回当前统计。
func (gc *GC) Stats() Stats {
	s := gc.stats
	s.FreeBytes = gc.pool.FreeBytes()
	s.LiveObjects = gc.table.Len()
	return s
}
