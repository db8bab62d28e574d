package domain

import "errors"

// Domain errors returned by the scheduling core and repository implementations.

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrDefinitionNotFound indicates the recurring project definition does not exist.
	ErrDefinitionNotFound = errors.New("recurring project definition not found")

	// ErrDefinitionInactive indicates the definition was deactivated and no longer schedules occurrences.
	ErrDefinitionInactive = errors.New("recurring project definition is inactive")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrConfiguration indicates a structurally invalid recurrence pattern.
	// Non-retryable: the pattern must be fixed before any occurrence can be computed.
	ErrConfiguration = errors.New("invalid recurrence configuration")

	// ErrAlreadyGenerated indicates a generated ledger record already exists
	// for the (definition, occurrence number) pair.
	ErrAlreadyGenerated = errors.New("occurrence already generated")

	// ErrVersionConflict indicates the definition was modified concurrently.
	ErrVersionConflict = errors.New("version conflict")

	// ErrProjectCreation indicates the external project-creation collaborator rejected the payload.
	ErrProjectCreation = errors.New("project creation failed")
)
