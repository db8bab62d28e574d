// Package memory provides an in-process store for definitions, the generation
// ledger and created projects. It backs tests and single-shot CLI runs.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/shopfloor/internal/domain"
)

// Store keeps everything in maps guarded by one mutex.
// Values are copied on the way in and out so callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	definitions map[string]domain.RecurringProjectDefinition
	records     map[string][]domain.GeneratedProjectRecord
	projects    map[string]domain.ProjectPayload
	now         func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		definitions: make(map[string]domain.RecurringProjectDefinition),
		records:     make(map[string][]domain.GeneratedProjectRecord),
		projects:    make(map[string]domain.ProjectPayload),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// FindByID returns a copy of the stored definition.
func (s *Store) FindByID(_ context.Context, id string) (*domain.RecurringProjectDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
	}
	return copyDefinition(def), nil
}

// Save stores def when its version matches and bumps the version.
// Unknown definitions are inserted when their version is zero.
func (s *Store) Save(_ context.Context, def *domain.RecurringProjectDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.definitions[def.ID]
	switch {
	case exists && current.Version != def.Version:
		return fmt.Errorf("%w: definition %s at version %d, got %d",
			domain.ErrVersionConflict, def.ID, current.Version, def.Version)
	case !exists && def.Version != 0:
		return fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, def.ID)
	}

	if !exists && def.CreatedAt.IsZero() {
		def.CreatedAt = s.now()
	}
	def.Version++
	s.definitions[def.ID] = *copyDefinition(*def)
	return nil
}

// ListActive returns active definitions ordered by ID.
func (s *Store) ListActive(_ context.Context) ([]*domain.RecurringProjectDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.RecurringProjectDefinition
	for _, def := range s.definitions {
		if def.IsActive {
			out = append(out, copyDefinition(def))
		}
	}
	slices.SortFunc(out, func(a, b *domain.RecurringProjectDefinition) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Record appends rec to the ledger.
func (s *Store) Record(_ context.Context, rec *domain.GeneratedProjectRecord) error {
	if err := rec.Status.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Status == domain.RecordStatusGenerated && s.hasGenerated(rec.RecurringProjectID, rec.OccurrenceNumber) {
		return fmt.Errorf("%w: definition %s occurrence %d",
			domain.ErrAlreadyGenerated, rec.RecurringProjectID, rec.OccurrenceNumber)
	}

	s.records[rec.RecurringProjectID] = append(s.records[rec.RecurringProjectID], *rec)
	return nil
}

// Has reports whether a generated record exists for the occurrence.
func (s *Store) Has(_ context.Context, definitionID string, occurrenceNumber int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasGenerated(definitionID, occurrenceNumber), nil
}

func (s *Store) hasGenerated(definitionID string, occurrenceNumber int) bool {
	for _, r := range s.records[definitionID] {
		if r.OccurrenceNumber == occurrenceNumber && r.Status == domain.RecordStatusGenerated {
			return true
		}
	}
	return false
}

// ListByDefinition returns the ledger for a definition ordered by occurrence
// number, then generation date.
func (s *Store) ListByDefinition(_ context.Context, definitionID string) ([]domain.GeneratedProjectRecord, error) {
	s.mu.RLock()
	out := slices.Clone(s.records[definitionID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, compareRecords)
	return out, nil
}

// CreateProject stores the payload under a new ID.
func (s *Store) CreateProject(_ context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project id: %w", err)
	}

	payload.Components = domain.CloneComponents(payload.Components)

	s.mu.Lock()
	s.projects[id.String()] = payload
	s.mu.Unlock()

	return &domain.PersistedProject{ID: id.String(), Name: payload.Name, CreatedAt: s.now()}, nil
}

// Project returns a stored project payload.
func (s *Store) Project(id string) (domain.ProjectPayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

// ProjectCount returns the number of created projects.
func (s *Store) ProjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects)
}

func compareRecords(a, b domain.GeneratedProjectRecord) int {
	if c := cmp.Compare(a.OccurrenceNumber, b.OccurrenceNumber); c != 0 {
		return c
	}
	return a.ActualGenerationDate.Compare(b.ActualGenerationDate)
}

func copyDefinition(def domain.RecurringProjectDefinition) *domain.RecurringProjectDefinition {
	out := def
	out.Components = domain.CloneComponents(def.Components)
	out.ClientID = copyPtr(def.ClientID)
	out.ProjectSuffix = copyPtr(def.ProjectSuffix)
	out.NextOccurrence = copyPtr(def.NextOccurrence)
	out.LastOccurrence = copyPtr(def.LastOccurrence)
	out.RemainingOccurrences = copyPtr(def.RemainingOccurrences)
	out.AttentionReason = copyPtr(def.AttentionReason)
	out.GeneratedProjects = slices.Clone(def.GeneratedProjects)
	out.Pattern.DaysOfWeek = slices.Clone(def.Pattern.DaysOfWeek)
	out.Pattern.CustomDates = slices.Clone(def.Pattern.CustomDates)
	out.Pattern.Holidays = slices.Clone(def.Pattern.Holidays)
	return &out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
