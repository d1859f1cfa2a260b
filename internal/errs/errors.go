package errs

import "github.com/cockroachdb/errors"

var (
	ErrNoSpace      = errors.New("gc: no space")
	ErrBadArgument  = errors.New("gc: bad argument")
	ErrClosed       = errors.New("gc: closed")
	ErrCorrupt      = errors.New("gc: corrupt")
	ErrCannotResize = errors.New("gc: cannot resize live object in place")
)

// IsFatal 判断 err 是否属于调用方不应重试的类别。
func IsFatal(err error) bool {
	return errors.Is(err, ErrCannotResize) || errors.Is(err, ErrCorrupt)
}

// Assertf 不变量被破坏时直接 panic，堆已不可信，不做恢复。
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
