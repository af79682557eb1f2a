package descriptor

import (
	"fmt"
	"strings"
)

// EmptySelectionError is returned when a capture collapses to zero length.
type EmptySelectionError struct{}

func (e *EmptySelectionError) Error() string {
	return "anchor: selection is empty"
}

// OutOfScopeError is returned when a boundary lies outside the configured
// root.
type OutOfScopeError struct {
	Boundary string // "start" or "end"
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("anchor: %s boundary is outside the root scope", e.Boundary)
}

// UnresolvableSelectionError is returned when every locating layer failed.
type UnresolvableSelectionError struct {
	ID        string
	Attempted []string
}

func (e *UnresolvableSelectionError) Error() string {
	return fmt.Sprintf("anchor: selection %s unresolvable (tried %s)", e.ID, strings.Join(e.Attempted, ", "))
}

// EngineNotInitializedError is returned by operations called before setup or
// after teardown.
type EngineNotInitializedError struct {
	Op string
}

func (e *EngineNotInitializedError) Error() string {
	return fmt.Sprintf("anchor: %s: engine not initialized", e.Op)
}
