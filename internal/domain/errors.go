package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph integrity. Inside scoring and parsing the core
// degrades silently per its failure policy; these surface only on the
// structurally fatal paths (empty identity keys, missing records on
// explicit lookups).
var (
	ErrNotFound    = errors.New("not found")
	ErrEmptyKey    = errors.New("key normalizes to empty")
	ErrInvalidKind = errors.New("invalid node kind")
	ErrInvalidType = errors.New("invalid concept type")
)

// KeyError reports which label produced an empty identity key.
type KeyError struct {
	Label string
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("label %q: %v", e.Label, ErrEmptyKey)
}

// Unwrap exposes the sentinel for errors.Is checks.
func (e *KeyError) Unwrap() error { return ErrEmptyKey }
