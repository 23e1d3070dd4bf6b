package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CacheResult("topological", "hit")
	m.ObserveCompute("topological", time.Millisecond)
	m.EmbeddingAttempt("ok")
	m.ExternalToolRun("mordred", "ok")
	m.BatchRow("ok")
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestCounters(t *testing.T) {
	m := New()
	m.CacheResult("topological", "hit")
	m.CacheResult("topological", "hit")
	m.CacheResult("topological", "miss")
	m.BatchRow("invalid_structure")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("topological", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("topological", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRows.WithLabelValues("invalid_structure")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.EmbeddingAttempt("converged")

	path := filepath.Join(t.TempDir(), "ilfeat.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `ilfeat_embedding_attempts_total{outcome="converged"} 1`))
}
