package descriptor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
	"ilfeat/internal/logging"
	"ilfeat/internal/metrics"
	"ilfeat/internal/retry"
)

const (
	ExternalPrefix = "external:"

	DefaultToolTimeout = 60 * time.Second
	toolWaitDelay      = 2 * time.Second
	maxStderr          = 512
)

// ExternalConfig describes a command-line descriptor tool. Command arguments
// may contain the {input} and {output} placeholders, which are replaced with
// the paths of the SDF input and the CSV output.
type ExternalConfig struct {
	Name    string
	Version string
	Command []string
	Names   []string
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed run.
	Retries int
	Backoff time.Duration
}

// External runs an external program on a conformer and reads its CSV output.
type External struct {
	cfg     ExternalConfig
	names   []string
	metrics *metrics.Metrics
	logger  logging.Logger
}

type ExternalOption func(*External)

func WithToolMetrics(m *metrics.Metrics) ExternalOption {
	return func(e *External) { e.metrics = m }
}

func WithToolLogger(l logging.Logger) ExternalOption {
	return func(e *External) { e.logger = l }
}

func NewExternal(cfg ExternalConfig, opts ...ExternalOption) (*External, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("external tool needs a name")
	}
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("external tool %s has no command", cfg.Name)
	}
	if len(cfg.Names) == 0 {
		return nil, fmt.Errorf("external tool %s declares no descriptor names", cfg.Name)
	}
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	names := append([]string(nil), cfg.Names...)
	sort.Strings(names)
	for i := 1; i < len(names); i++ {
		if names[i] == names[i-1] {
			return nil, fmt.Errorf("external tool %s declares %q twice", cfg.Name, names[i])
		}
	}

	e := &External{cfg: cfg, names: names, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *External) ID() string              { return ExternalPrefix + e.cfg.Name }
func (e *External) Version() string         { return e.cfg.Version }
func (e *External) RequiresConformer() bool { return true }

func (e *External) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Config covers the inputs that change the output. Timeouts and retries do not.
func (e *External) Config() map[string]string {
	return map[string]string{
		"command": strings.Join(e.cfg.Command, "\x1f"),
		"names":   strings.Join(e.names, ","),
	}
}

func (e *External) Compute(ctx context.Context, identity domain.MoleculeIdentity, c *domain.Conformer) (domain.DescriptorVector, error) {
	if c == nil {
		return domain.DescriptorVector{}, &domain.MissingGeometryError{Generator: e.ID(), Identity: identity}
	}

	dir, err := os.MkdirTemp("", "ilfeat-tool-*")
	if err != nil {
		return domain.DescriptorVector{}, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.sdf")
	output := filepath.Join(dir, "output.csv")
	if err := writeSDF(input, c); err != nil {
		return domain.DescriptorVector{}, err
	}

	args := make([]string, len(e.cfg.Command))
	for i, a := range e.cfg.Command {
		a = strings.ReplaceAll(a, "{input}", input)
		args[i] = strings.ReplaceAll(a, "{output}", output)
	}

	retryable := func(err error) bool { return errors.Is(err, domain.ErrExternalTool) }
	values, err := retry.Blocking(ctx, 1+e.cfg.Retries, retry.StaticBackoff(e.cfg.Backoff), retryable,
		func() (map[string]domain.Value, error) {
			return e.run(ctx, identity, args, output)
		})
	if err != nil {
		return domain.DescriptorVector{}, err
	}
	return domain.NewDescriptorVector(e.ID(), e.cfg.Version, values), nil
}

func writeSDF(path string, c *domain.Conformer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tool input: %w", err)
	}
	if err := chem.MolfileFromConformer(c).WriteSDF(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write tool input: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write tool input: %w", err)
	}
	return nil
}

func (e *External) run(ctx context.Context, identity domain.MoleculeIdentity, args []string, output string) (map[string]domain.Value, error) {
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to clear tool output: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = toolWaitDelay
	isolateGroup(cmd)

	start := time.Now()
	runErr := cmd.Run()
	e.logger.Debug("external tool finished",
		logging.String("tool", e.cfg.Name),
		logging.String("identity", identity.Canonical),
		logging.Duration("elapsed", time.Since(start)),
		logging.Err(runErr))

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		toolErr := &domain.ExternalToolError{Tool: e.cfg.Name, Stderr: truncate(stderr.String()), Err: runErr}
		var exitErr *exec.ExitError
		switch {
		case runCtx.Err() != nil:
			toolErr.Err = fmt.Errorf("timed out after %s", e.cfg.Timeout)
			e.metrics.ExternalToolRun(e.cfg.Name, "timeout")
		case errors.As(runErr, &exitErr):
			toolErr.ExitCode = exitErr.ExitCode()
			e.metrics.ExternalToolRun(e.cfg.Name, "exit_error")
		default:
			e.metrics.ExternalToolRun(e.cfg.Name, "start_error")
		}
		return nil, toolErr
	}

	values, err := readToolOutput(output, e.names)
	if err != nil {
		e.metrics.ExternalToolRun(e.cfg.Name, "bad_output")
		return nil, &domain.ExternalToolError{Tool: e.cfg.Name, Stderr: truncate(stderr.String()), Err: err}
	}
	e.metrics.ExternalToolRun(e.cfg.Name, "success")
	return values, nil
}

// readToolOutput parses a header row and one value row. Declared names the
// tool did not report are missing; undeclared columns are ignored.
func readToolOutput(path string, names []string) (map[string]domain.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("tool wrote no output file")
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed output: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("output has %d rows, want a header and one value row", len(records))
	}

	header, row := records[0], records[1]
	cells := make(map[string]string, len(header))
	for i, h := range header {
		cells[strings.TrimSpace(h)] = strings.TrimSpace(row[i])
	}

	values := make(map[string]domain.Value, len(names))
	for _, name := range names {
		cell, ok := cells[name]
		if !ok || isMissingCell(cell) {
			values[name] = domain.Missing()
			continue
		}
		x, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: non-numeric value %q", name, cell)
		}
		values[name] = domain.Float(x)
	}
	return values, nil
}

func isMissingCell(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan":
		return true
	}
	return false
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
