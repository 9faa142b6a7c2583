package sim

import (
	"errors"
	"fmt"
)

// Error taxonomy for the simulation core. Callers classify failures with
// errors.Is against these sentinels.
var (
	// ErrInputViolation marks input rejected at a component boundary
	// (negative quantities, non-positive prices, malformed history).
	// The controller skips the affected (store, product) for the day.
	ErrInputViolation = errors.New("input violation")

	// ErrContentionViolation marks an allocation pass that would grant more
	// than the available stock. It indicates a broken allocator and halts the run.
	ErrContentionViolation = errors.New("resource contention violation")

	// ErrCollaboratorUnavailable marks a failed sentiment or persistence call.
	// Always recovered locally with a default.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

func inputViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputViolation, fmt.Sprintf(format, args...))
}

func contentionViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContentionViolation, fmt.Sprintf(format, args...))
}

// CollaboratorError wraps err from the named external collaborator so that it
// matches ErrCollaboratorUnavailable while keeping the original cause.
func CollaboratorError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaboratorUnavailable, name, err)
}
