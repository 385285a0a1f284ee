package watcher_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/drl-lsp/internal/watcher"
)

func TestIsDRLFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"rules/adult.drl", true},
		{"rules/ADULT.DRL", true},
		{"rules/guided.rdrl", true},
		{"rules/adult.drl.bak", false},
		{"pom.xml", false},
		{"drl", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, watcher.IsDRLFile(tt.path))
		})
	}
}

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) handle(changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, changed...)
	r.removed = append(r.removed, removed...)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func TestWatcher_ReportsDRLChanges(t *testing.T) {
	root := t.TempDir()
	rules := filepath.Join(root, "rules")
	require.NoError(t, os.Mkdir(rules, 0o755))

	rec := &recorder{}
	w, err := watcher.New(root, rec.handle)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Close() })

	drl := filepath.Join(rules, "a.drl")
	require.NoError(t, os.WriteFile(drl, []byte("rule \"A\"\nwhen\nthen\nend\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rules, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	}, 5*time.Second, 10*time.Millisecond)

	changed, _ := rec.snapshot()
	for _, p := range changed {
		assert.Equal(t, drl, p)
	}

	require.NoError(t, os.Remove(drl))
	require.Eventually(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) == 1 && removed[0] == drl
	}, 5*time.Second, 10*time.Millisecond)
}
