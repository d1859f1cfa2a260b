// Package mem 定义堆地址类型。
package mem

import "fmt"

// Addr 是堆内的原始地址，0 表示空引用。
type Addr uintptr

// Null 空地址。
const Null Addr = 0

// WordSize 引用槽的字节数。
const WordSize = 8

// Add 返回 a 偏移 n 字节后的地址。
func (a Addr) Add(n uint64) Addr { return a + Addr(n) }

// Sub 返回 a 与 b 之间的字节距离，要求 a >= b。
func (a Addr) Sub(b Addr) uint64 { return uint64(a - b) }

func (a Addr) String() string {
	if a == Null {
		return "nil"
	}
	return fmt.Sprintf("%#x", uintptr(a))
}

// AlignUp 把 n 向上取整到 align 的倍数，align 须为 2 的幂。
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
