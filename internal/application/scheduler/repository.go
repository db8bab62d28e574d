package scheduler

import (
	"context"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// DefinitionRepository loads and stores recurring project definitions.
type DefinitionRepository interface {
	// FindByID returns the definition or domain.ErrDefinitionNotFound.
	FindByID(ctx context.Context, id string) (*domain.RecurringProjectDefinition, error)

	// Save persists def if its Version matches the stored one, then bumps
	// def.Version. A stale version fails with domain.ErrVersionConflict.
	Save(ctx context.Context, def *domain.RecurringProjectDefinition) error

	// ListActive returns every definition with IsActive set, ordered by ID.
	ListActive(ctx context.Context) ([]*domain.RecurringProjectDefinition, error)
}

// Ledger is the append-only generation history. It holds no business rules.
type Ledger interface {
	// Record appends rec. A second generated record for the same
	// (definition, occurrence number) fails with domain.ErrAlreadyGenerated.
	Record(ctx context.Context, rec *domain.GeneratedProjectRecord) error

	// Has reports whether a generated record exists for the occurrence.
	Has(ctx context.Context, definitionID string, occurrenceNumber int) (bool, error)

	// ListByDefinition returns records ascending by occurrence number, then by
	// generation date.
	ListByDefinition(ctx context.Context, definitionID string) ([]domain.GeneratedProjectRecord, error)
}

// ProjectCreator persists a materialized project outside the scheduling core.
type ProjectCreator interface {
	CreateProject(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error)
}

// Clock is the scheduler's time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// KeyedLocker serializes work per key. The returned function releases the lock.
type KeyedLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
