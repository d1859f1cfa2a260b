// Package mmap 为堆提供页对齐、不随 Go 回收移动的内存。
package mmap

import "github.com/cockroachdb/errors"

var ErrNotSupported = errors.New("mmap: not supported on this platform")
