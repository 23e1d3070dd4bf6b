package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidStructure     = errors.New("invalid structure")
	ErrInvalidCharge        = errors.New("invalid charge")
	ErrEmbeddingFailure     = errors.New("embedding failure")
	ErrExternalTool         = errors.New("external tool error")
	ErrMissingGeometry      = errors.New("missing geometry")
	ErrCacheCorruption      = errors.New("cache corruption")
	ErrIncompleteFeatureRow = errors.New("incomplete feature row")
)

// InvalidStructureError reports input that does not parse to a valid molecular graph.
type InvalidStructureError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *InvalidStructureError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("invalid structure %q at position %d: %s", e.Input, e.Pos, e.Reason)
	}
	return fmt.Sprintf("invalid structure %q: %s", e.Input, e.Reason)
}

func (e *InvalidStructureError) Is(target error) bool { return target == ErrInvalidStructure }

type InvalidChargeError struct {
	Input  string
	Ion    Ion
	Charge int
}

func (e *InvalidChargeError) Error() string {
	switch {
	case e.Charge == 0:
		return fmt.Sprintf("ion %q must have a non-zero charge", e.Input)
	case e.Ion == IonCation:
		return fmt.Sprintf("cations must have a positive charge, got %+d for %q", e.Charge, e.Input)
	default:
		return fmt.Sprintf("anions must have a negative charge, got %+d for %q", e.Charge, e.Input)
	}
}

func (e *InvalidChargeError) Is(target error) bool { return target == ErrInvalidCharge }

type EmbeddingFailure struct {
	Identity MoleculeIdentity
	Attempts int
	LastErr  error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("embedding %s failed after %d attempts: %v", e.Identity, e.Attempts, e.LastErr)
}

func (e *EmbeddingFailure) Is(target error) bool { return target == ErrEmbeddingFailure }
func (e *EmbeddingFailure) Unwrap() error        { return e.LastErr }

type ExternalToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("external tool %s failed", e.Tool)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExternalToolError) Is(target error) bool { return target == ErrExternalTool }
func (e *ExternalToolError) Unwrap() error        { return e.Err }

type MissingGeometryError struct {
	Generator string
	Identity  MoleculeIdentity
}

func (e *MissingGeometryError) Error() string {
	return fmt.Sprintf("generator %s requires a conformer for %s", e.Generator, e.Identity)
}

func (e *MissingGeometryError) Is(target error) bool { return target == ErrMissingGeometry }

type CacheCorruptionError struct {
	Key    string
	Reason string
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %s", e.Key, e.Reason)
}

func (e *CacheCorruptionError) Is(target error) bool { return target == ErrCacheCorruption }

type IncompleteFeatureRowError struct {
	Ion       Ion
	Generator string
	Cause     error
}

func (e *IncompleteFeatureRowError) Error() string {
	return fmt.Sprintf("required generator %s unavailable for %s: %v", e.Generator, e.Ion, e.Cause)
}

func (e *IncompleteFeatureRowError) Is(target error) bool { return target == ErrIncompleteFeatureRow }
func (e *IncompleteFeatureRowError) Unwrap() error        { return e.Cause }

// IsRecoverable reports whether err may be handled per molecule without aborting a run.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrEmbeddingFailure) ||
		errors.Is(err, ErrExternalTool) ||
		errors.Is(err, ErrCacheCorruption)
}

// ErrorTag maps an error to the stable tag reported for a failed batch row.
func ErrorTag(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIncompleteFeatureRow):
		return "incomplete_feature_row"
	case errors.Is(err, ErrInvalidStructure):
		return "invalid_structure"
	case errors.Is(err, ErrInvalidCharge):
		return "invalid_charge"
	case errors.Is(err, ErrMissingGeometry):
		return "missing_geometry"
	case errors.Is(err, ErrEmbeddingFailure):
		return "embedding_failure"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrCacheCorruption):
		return "cache_corruption"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
