//go:build linux

package handoff_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"

	"github.com/SecareLupus/radius-virtual/internal/handoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threadGroups returns the Groups line of every thread of this process.
func threadGroups(t *testing.T) map[string]string {
	t.Helper()
	paths, err := filepath.Glob("/proc/self/task/*/status")
	require.NoError(t, err)
	groups := make(map[string]string, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue // thread exited
		}
		require.NoError(t, err)
		for _, line := range strings.Split(string(raw), "\n") {
			if v, ok := strings.CutPrefix(line, "Groups:"); ok {
				groups[p] = strings.TrimSpace(v)
			}
		}
	}
	return groups
}

func TestOSSetgroupsAppliesToEveryThread(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	orig, err := syscall.Getgroups()
	require.NoError(t, err)
	t.Cleanup(func() { syscall.Setgroups(orig) })

	release := make(chan struct{})
	ready := make(chan struct{})
	const extra = 8
	for range extra {
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			ready <- struct{}{}
			<-release
		}()
	}
	for range extra {
		<-ready
	}
	defer close(release)

	require.NoError(t, handoff.NewOS().Setgroups([]int{4242}))

	groups := threadGroups(t)
	require.GreaterOrEqual(t, len(groups), extra+1)
	for task, g := range groups {
		assert.Equal(t, "4242", g, task)
	}
}
