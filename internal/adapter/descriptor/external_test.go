package descriptor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilfeat/internal/domain"
	"ilfeat/internal/metrics"
)

// shellTool returns a config running script with $1 bound to the SDF input
// and $2 to the CSV output.
func shellTool(t *testing.T, script string, names ...string) ExternalConfig {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return ExternalConfig{
		Name:    "fake",
		Version: "2",
		Command: []string{"sh", "-c", script, "sh", "{input}", "{output}"},
		Names:   names,
		Timeout: 5 * time.Second,
	}
}

func chloride() *domain.Conformer {
	return conformer([]string{"Cl"}, []int{-1}, [][3]float64{{0, 0, 0}})
}

func TestExternal_Success(t *testing.T) {
	cfg := shellTool(t, `grep -q 'M  END' "$1" || exit 9
printf 'b,a,extra,c\n2.5,NA,7,\n' > "$2"`, "a", "b", "c", "d")
	gen, err := NewExternal(cfg)
	require.NoError(t, err)

	assert.Equal(t, "external:fake", gen.ID())
	assert.Equal(t, "2", gen.Version())
	assert.Equal(t, []string{"a", "b", "c", "d"}, gen.Names())
	assert.True(t, gen.RequiresConformer())

	vec, err := gen.Compute(context.Background(), canonical(t, "[Cl-]"), chloride())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, vec.Names())
	assertFloat(t, vec, "b", 2.5)
	assertMissing(t, vec, "a")
	assertMissing(t, vec, "c")
	assertMissing(t, vec, "d")
	_, ok := vec.Get("extra")
	assert.False(t, ok)
}

func TestExternal_NonZeroExitIsRetriedOnce(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "calls")
	cfg := shellTool(t, `echo call >> `+counter+`
echo boom >&2
exit 3`, "a")
	cfg.Retries = 1
	m := metrics.New()
	gen, err := NewExternal(cfg, WithToolMetrics(m))
	require.NoError(t, err)

	_, err = gen.Compute(context.Background(), canonical(t, "[Cl-]"), chloride())

	var te *domain.ExternalToolError
	require.ErrorAs(t, err, &te)
	assert.True(t, errors.Is(err, domain.ErrExternalTool))
	assert.Equal(t, 3, te.ExitCode)
	assert.Equal(t, "boom", te.Stderr)

	calls, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(calls), "call"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExternalToolRuns.WithLabelValues("fake", "exit_error")))
}

func TestExternal_Timeout(t *testing.T) {
	cfg := shellTool(t, `exec sleep 10`, "a")
	cfg.Timeout = 100 * time.Millisecond
	gen, err := NewExternal(cfg)
	require.NoError(t, err)

	start := time.Now()
	_, err = gen.Compute(context.Background(), canonical(t, "[Cl-]"), chloride())
	assert.ErrorIs(t, err, domain.ErrExternalTool)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExternal_BadOutput(t *testing.T) {
	tests := map[string]string{
		"no output file": `true`,
		"header only":    `printf 'a\n' > "$2"`,
		"non-numeric":    `printf 'a\nabc\n' > "$2"`,
		"ragged rows":    `printf 'a,b\n1\n' > "$2"`,
	}
	for name, script := range tests {
		t.Run(name, func(t *testing.T) {
			gen, err := NewExternal(shellTool(t, script, "a"))
			require.NoError(t, err)
			_, err = gen.Compute(context.Background(), canonical(t, "[Cl-]"), chloride())
			assert.ErrorIs(t, err, domain.ErrExternalTool)
		})
	}
}

func TestExternal_MissingCommand(t *testing.T) {
	gen, err := NewExternal(ExternalConfig{Name: "ghost", Command: []string{"/nonexistent/ilfeat-tool"}, Names: []string{"a"}})
	require.NoError(t, err)
	_, err = gen.Compute(context.Background(), canonical(t, "[Cl-]"), chloride())
	assert.ErrorIs(t, err, domain.ErrExternalTool)
}

func TestExternal_NeedsConformer(t *testing.T) {
	gen, err := NewExternal(shellTool(t, `true`, "a"))
	require.NoError(t, err)
	_, err = gen.Compute(context.Background(), canonical(t, "[Cl-]"), nil)
	assert.ErrorIs(t, err, domain.ErrMissingGeometry)
}

func TestExternal_Cancelled(t *testing.T) {
	gen, err := NewExternal(shellTool(t, `exec sleep 10`, "a"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = gen.Compute(ctx, canonical(t, "[Cl-]"), chloride())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, domain.ErrExternalTool))
}

func TestNewExternal_Validation(t *testing.T) {
	tests := map[string]ExternalConfig{
		"no name":         {Command: []string{"x"}, Names: []string{"a"}},
		"no command":      {Name: "x", Names: []string{"a"}},
		"no names":        {Name: "x", Command: []string{"x"}},
		"duplicate names": {Name: "x", Command: []string{"x"}, Names: []string{"a", "a"}},
	}
	for name, cfg := range tests {
		_, err := NewExternal(cfg)
		assert.Error(t, err, name)
	}
}

func TestExternal_ConfigIgnoresTimeouts(t *testing.T) {
	a, err := NewExternal(ExternalConfig{Name: "x", Command: []string{"tool", "{input}"}, Names: []string{"b", "a"}, Timeout: time.Second})
	require.NoError(t, err)
	b, err := NewExternal(ExternalConfig{Name: "x", Command: []string{"tool", "{input}"}, Names: []string{"a", "b"}, Timeout: time.Minute, Retries: 3})
	require.NoError(t, err)
	assert.Equal(t, a.Config(), b.Config())
}
