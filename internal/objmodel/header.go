// Package objmodel 是一个最小的宿主对象模型：定长头部、引用槽、原始数据。
//
// 布局: [magic u32 | nrefs u32 | size u64] [ref0 .. refN-1] [data]
// 对象指针指向头部之后的第一个引用槽，size 含头部并按字对齐。
package objmodel

import (
	"encoding/binary"

	"gc_master/internal/mem"
)

const (
	Magic      = uint32(0x4A424F47) // 'GOBJ'
	HeaderSize = 4 + 4 + 8
)

// Header 对象头。
type Header struct {
	Magic uint32
	NRefs uint32
	Size  uint64
}

// DecodeHeader 从 data 解码对象头。
func DecodeHeader(data []byte) Header {
	return Header{
		Magic: binary.LittleEndian.Uint32(data[0:4]),
		NRefs: binary.LittleEndian.Uint32(data[4:8]),
		Size:  binary.LittleEndian.Uint64(data[8:16]),
	}
}

// EncodeHeader 将 h 编码到 b（至少 HeaderSize 字节）。
func EncodeHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.NRefs)
	binary.LittleEndian.PutUint64(b[8:16], h.Size)
}

// SizeFor 返回 nrefs 个引用槽加 dataLen 字节数据的对象总大小。
func SizeFor(nrefs, dataLen int) uint64 {
	return mem.AlignUp(HeaderSize+uint64(nrefs)*mem.WordSize+uint64(dataLen), mem.WordSize)
}
