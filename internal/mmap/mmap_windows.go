//go:build windows

package mmap

import "os"

func PageSize() uint64 {
	return uint64(os.Getpagesize())
}

func MapAnon(size int) ([]byte, error) {
	return nil, ErrNotSupported
}

func Map(fd uintptr, size int) ([]byte, error) {
	return nil, ErrNotSupported
}

func Sync(data []byte) error {
	return ErrNotSupported
}

func Unmap(data []byte) error {
	return nil
}
