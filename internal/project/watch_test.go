package project

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tasklist/internal/logger"
)

func TestWatch_DescriptorChanges(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, DescriptorFile)
	require.NoError(t, os.WriteFile(path, []byte(minimalDescriptor), 0o644))

	var logs bytes.Buffer
	ctx, cancel := context.WithCancel(logger.ContextWithLogger(context.Background(),
		logger.New(&logger.Config{Level: logger.InfoLevel, Output: &logs})))
	defer cancel()

	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, 20*time.Millisecond, func() { changes.Add(1) })
	}()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.txt"), []byte("x"), 0o644))

	// A burst of writes settles into one notification.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(minimalDescriptor), 0o644))
	}

	assert.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), changes.Load())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Contains(t, logs.String(), "descriptor changed", "Watch logs through the context logger")
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), 0, func() {})
	assert.Error(t, err)
}
