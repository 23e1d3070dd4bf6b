//go:build linux

package descriptor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilfeat/internal/domain"
)

// alive reports whether pid is a live, non-zombie process.
func alive(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// the state follows the parenthesised command name
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z" && fields[0] != "X"
}

func TestExternal_TimeoutKillsSpawnedProcesses(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	// the wrapper shell forks a helper instead of exec-ing it
	cfg := shellTool(t, fmt.Sprintf(`sleep 30 & echo $! > %q; wait`, pidFile), "a")
	cfg.Timeout = 500 * time.Millisecond
	gen, err := NewExternal(cfg)
	require.NoError(t, err)

	start := time.Now()
	_, err = gen.Compute(context.Background(), canonical(t, "[Cl-]"), chloride())
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, domain.ErrExternalTool)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, elapsed, toolWaitDelay, "the helper must not hold the tool's pipes open")

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !alive(pid) }, 2*time.Second, 20*time.Millisecond,
		"helper process %d survived the timeout", pid)
}

func TestExternal_CancelKillsSpawnedProcesses(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	gen, err := NewExternal(shellTool(t, fmt.Sprintf(`sleep 30 & echo $! > %q; wait`, pidFile), "a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
			if data, err := os.ReadFile(pidFile); err == nil && strings.HasSuffix(string(data), "\n") {
				return
			}
		}
	}()
	_, err = gen.Compute(ctx, canonical(t, "[Cl-]"), chloride())
	assert.ErrorIs(t, err, context.Canceled)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !alive(pid) }, 2*time.Second, 20*time.Millisecond,
		"helper process %d survived cancellation", pid)
}
