package main

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gc "gc_master"
)

type failingShutdown struct{ err error }

func (f failingShutdown) Shutdown(gc.Behavior) error { return f.err }

func TestShutdownErrorIsReturned(t *testing.T) {
	syncErr := errors.New("msync: input/output error")

	var err error
	shutdown(failingShutdown{syncErr}, nil, &err)
	assert.True(t, errors.Is(err, syncErr))

	err = gc.ErrNoSpace
	shutdown(failingShutdown{syncErr}, nil, &err)
	assert.True(t, errors.Is(err, gc.ErrNoSpace), "earlier error wins")

	err = nil
	shutdown(failingShutdown{}, nil, &err)
	assert.NoError(t, err)
}

func TestRunWithBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.data")
	err := newApp().Run([]string{
		"gcmaster-demo", "--heap-size", "1MB", "--backing-file", path,
		"run", "--cycles", "3", "--objects", "50", "--quiet",
	})
	require.NoError(t, err)
}
