// Package document persists definitions, the ledger and projects as JSON
// documents in a storage.Bucket (local directory or GCS).
//
// Layout:
//
//	definitions/<id>.json
//	ledger/<id>/<occurrence>/<record id>.json   failed attempts
//	ledger/<id>/<occurrence>/generated          the generated record, one per occurrence
//	projects/<project id>.json
//
// Uniqueness of generated records relies on the bucket's exclusive Create.
// Definition saves are read-compare-write and rely on the scheduler's
// per-definition lock for atomicity.
package document

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/storage"
)

// maxConcurrentReads bounds parallel object reads when listing.
const maxConcurrentReads = 20

// generatedMarker is the key suffix holding an occurrence's generated record.
const generatedMarker = "generated"

// Store implements the scheduler ports over a bucket.
type Store struct {
	bucket storage.Bucket
	now    func() time.Time
}

var (
	_ scheduler.DefinitionRepository = (*Store)(nil)
	_ scheduler.Ledger               = (*Store)(nil)
	_ scheduler.ProjectCreator       = (*Store)(nil)
)

// NewStore creates a document store over bucket.
func NewStore(bucket storage.Bucket) *Store {
	return &Store{
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func definitionKey(id string) string {
	return "definitions/" + url.PathEscape(id) + ".json"
}

func ledgerPrefix(definitionID string) string {
	return "ledger/" + url.PathEscape(definitionID) + "/"
}

func occurrencePrefix(definitionID string, n int) string {
	return fmt.Sprintf("%s%08d/", ledgerPrefix(definitionID), n)
}

// FindByID reads the definition document.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.RecurringProjectDefinition, error) {
	data, err := s.bucket.Read(ctx, definitionKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return decodeDefinition(data)
}

// Save writes the definition when its version matches the stored document.
func (s *Store) Save(ctx context.Context, def *domain.RecurringProjectDefinition) error {
	current, err := s.FindByID(ctx, def.ID)
	switch {
	case errors.Is(err, domain.ErrDefinitionNotFound):
		if def.Version != 0 {
			return err
		}
	case err != nil:
		return err
	case current.Version != def.Version:
		return fmt.Errorf("%w: definition %s at version %d, got %d",
			domain.ErrVersionConflict, def.ID, current.Version, def.Version)
	}

	stored := *def
	stored.Version++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}

	data, err := json.Marshal(newDefinitionDocument(&stored))
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	if current == nil {
		err = s.bucket.Create(ctx, definitionKey(def.ID), data)
		if errors.Is(err, storage.ErrObjectExists) {
			return fmt.Errorf("%w: definition %s was created concurrently", domain.ErrVersionConflict, def.ID)
		}
	} else {
		err = s.bucket.Write(ctx, definitionKey(def.ID), data)
	}
	if err != nil {
		return fmt.Errorf("failed to write definition: %w", err)
	}

	def.Version = stored.Version
	def.CreatedAt = stored.CreatedAt
	return nil
}

// ListActive reads every definition document and keeps the active ones.
func (s *Store) ListActive(ctx context.Context) ([]*domain.RecurringProjectDefinition, error) {
	keys, err := s.bucket.List(ctx, "definitions/")
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	defs, err := readAll(ctx, s.bucket, keys, decodeDefinition)
	if err != nil {
		return nil, err
	}

	active := slices.DeleteFunc(defs, func(d *domain.RecurringProjectDefinition) bool { return !d.IsActive })
	slices.SortFunc(active, func(a, b *domain.RecurringProjectDefinition) int { return cmp.Compare(a.ID, b.ID) })
	return active, nil
}

// Record appends a ledger document. A generated record is stored as the
// occurrence's exclusive marker, so claiming the occurrence and writing the
// record are one object.
func (s *Store) Record(ctx context.Context, rec *domain.GeneratedProjectRecord) error {
	if err := rec.Status.Validate(); err != nil {
		return err
	}

	prefix := occurrencePrefix(rec.RecurringProjectID, rec.OccurrenceNumber)
	data, err := json.Marshal(newRecordDocument(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if rec.Status == domain.RecordStatusGenerated {
		err := s.bucket.Create(ctx, prefix+generatedMarker, data)
		if errors.Is(err, storage.ErrObjectExists) {
			return fmt.Errorf("%w: definition %s occurrence %d",
				domain.ErrAlreadyGenerated, rec.RecurringProjectID, rec.OccurrenceNumber)
		}
		if err != nil {
			return fmt.Errorf("failed to claim occurrence: %w", err)
		}
		return nil
	}

	if err := s.bucket.Create(ctx, prefix+url.PathEscape(rec.ID)+".json", data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Has checks for the occurrence's generated marker.
func (s *Store) Has(ctx context.Context, definitionID string, occurrenceNumber int) (bool, error) {
	_, err := s.bucket.Read(ctx, occurrencePrefix(definitionID, occurrenceNumber)+generatedMarker)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return true, nil
}

// ListByDefinition reads all ledger documents of a definition.
func (s *Store) ListByDefinition(ctx context.Context, definitionID string) ([]domain.GeneratedProjectRecord, error) {
	keys, err := s.bucket.List(ctx, ledgerPrefix(definitionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	keys = slices.DeleteFunc(keys, func(k string) bool {
		return !strings.HasSuffix(k, ".json") && !strings.HasSuffix(k, "/"+generatedMarker)
	})

	records, err := readAll(ctx, s.bucket, keys, decodeRecord)
	if err != nil {
		return nil, err
	}

	out := make([]domain.GeneratedProjectRecord, len(records))
	for i, r := range records {
		out[i] = *r
	}
	slices.SortStableFunc(out, func(a, b domain.GeneratedProjectRecord) int {
		if c := cmp.Compare(a.OccurrenceNumber, b.OccurrenceNumber); c != 0 {
			return c
		}
		return a.ActualGenerationDate.Compare(b.ActualGenerationDate)
	})
	return out, nil
}

// CreateProject stores the payload as a new project document.
func (s *Store) CreateProject(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project id: %w", err)
	}

	created := s.now()
	data, err := json.Marshal(newProjectDocument(id.String(), payload, created))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}

	if err := s.bucket.Create(ctx, "projects/"+id.String()+".json", data); err != nil {
		return nil, fmt.Errorf("failed to write project: %w", err)
	}

	return &domain.PersistedProject{ID: id.String(), Name: payload.Name, CreatedAt: created}, nil
}

// readAll reads and decodes keys in parallel, preserving key order.
func readAll[T any](ctx context.Context, bucket storage.Bucket, keys []string, decode func([]byte) (*T, error)) ([]*T, error) {
	out := make([]*T, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)

	for i, key := range keys {
		g.Go(func() error {
			data, err := bucket.Read(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", key, err)
			}
			v, err := decode(data)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
