package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rezkam/shopfloor/internal/domain"
)

// Record appends a ledger entry. The partial unique index
// generated_projects_generated_once rejects a second generated record for
// the same occurrence.
func (s *Store) Record(ctx context.Context, rec *domain.GeneratedProjectRecord) error {
	if err := rec.Status.Validate(); err != nil {
		return err
	}

	id, err := parseUUID(rec.ID)
	if err != nil {
		return err
	}
	projectID, err := parseUUIDPtr(rec.ProjectID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `INSERT INTO generated_projects (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, projectID, rec.RecurringProjectID, int32(rec.OccurrenceNumber),
		dateToPgtype(rec.ScheduledDate), timeToPgtype(rec.ActualGenerationDate),
		string(rec.Status), rec.Notes)

	switch {
	case isConstraintViolation(err, codeUniqueViolation, "generated_projects_generated_once"):
		return fmt.Errorf("%w: definition %s occurrence %d",
			domain.ErrAlreadyGenerated, rec.RecurringProjectID, rec.OccurrenceNumber)
	case isConstraintViolation(err, codeForeignKeyViolation, ""):
		return fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, rec.RecurringProjectID)
	case err != nil:
		return fmt.Errorf("failed to record occurrence: %w", err)
	}
	return nil
}

// Has reports whether a generated record exists for the occurrence.
func (s *Store) Has(ctx context.Context, definitionID string, occurrenceNumber int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM generated_projects
			WHERE recurring_project_id = $1 AND occurrence_number = $2 AND status = 'generated'
		)`, definitionID, int32(occurrenceNumber)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return exists, nil
}

// ListByDefinition returns all ledger entries of a definition in occurrence order.
func (s *Store) ListByDefinition(ctx context.Context, definitionID string) ([]domain.GeneratedProjectRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+`
		FROM generated_projects
		WHERE recurring_project_id = $1
		ORDER BY occurrence_number, actual_generation_date, id`, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return records, nil
}
