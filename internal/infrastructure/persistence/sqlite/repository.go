package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rezkam/shopfloor/internal/domain"
)

// FindByID retrieves a recurring project definition by its ID.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.RecurringProjectDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+definitionColumns+` FROM recurring_definitions WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, nil
}

// Save inserts a new definition (Version 0) or updates an existing one when
// its version matches. The stored version is bumped and written back to def.
func (s *Store) Save(ctx context.Context, def *domain.RecurringProjectDefinition) error {
	stored := *def
	stored.Version++
	if def.Version == 0 && stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	args, err := definitionArgs(&stored)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, "save_definition", func(tx *sql.Tx) error {
		if def.Version == 0 {
			_, err := tx.ExecContext(ctx, `INSERT INTO recurring_definitions (`+definitionColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
			if constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
				return fmt.Errorf("%w: definition %s already exists", domain.ErrVersionConflict, def.ID)
			}
			if err != nil {
				return fmt.Errorf("failed to insert definition: %w", err)
			}
			return nil
		}
		return updateDefinition(ctx, tx, def.ID, def.Version, args)
	})
	if err != nil {
		return err
	}

	def.Version = stored.Version
	def.CreatedAt = stored.CreatedAt
	return nil
}

func updateDefinition(ctx context.Context, tx *sql.Tx, id string, expected int, args []any) error {
	res, err := tx.ExecContext(ctx, `UPDATE recurring_definitions SET
			template_id = ?2, name = ?3, description = ?4, client_id = ?5, duration_days = ?6,
			components = ?7, pattern = ?8, is_active = ?9, auto_generate = ?10,
			advance_notice_days = ?11, project_suffix = ?12, next_occurrence = ?13,
			last_occurrence = ?14, total_occurrences = ?15, remaining_occurrences = ?16,
			consecutive_failures = ?17, needs_attention = ?18, attention_reason = ?19,
			created_at = ?20, updated_at = ?21, version = ?22
		WHERE id = ?1 AND version = ?23`,
		append(args, expected)...)
	if err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	} else if n == 1 {
		return nil
	}

	var current int
	err = tx.QueryRowContext(ctx, `SELECT version FROM recurring_definitions WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check definition version: %w", err)
	}
	return fmt.Errorf("%w: definition %s at version %d, got %d",
		domain.ErrVersionConflict, id, current, expected)
}

// ListActive returns all active definitions ordered by ID.
func (s *Store) ListActive(ctx context.Context) ([]*domain.RecurringProjectDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+definitionColumns+`
		FROM recurring_definitions WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active definitions: %w", err)
	}
	defer rows.Close()

	var defs []*domain.RecurringProjectDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read active definitions: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Record appends a ledger entry; the partial unique index rejects a second
// generated record for the same occurrence.
func (s *Store) Record(ctx context.Context, rec *domain.GeneratedProjectRecord) error {
	if err := rec.Status.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO generated_projects (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.ProjectID), rec.RecurringProjectID, rec.OccurrenceNumber,
		rec.ScheduledDate.Format(domain.DateLayout), formatTime(rec.ActualGenerationDate),
		string(rec.Status), rec.Notes)

	switch constraintCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: definition %s occurrence %d",
			domain.ErrAlreadyGenerated, rec.RecurringProjectID, rec.OccurrenceNumber)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, rec.RecurringProjectID)
	}
	if err != nil {
		return fmt.Errorf("failed to record occurrence: %w", err)
	}
	return nil
}

// Has reports whether a generated record exists for the occurrence.
func (s *Store) Has(ctx context.Context, definitionID string, occurrenceNumber int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM generated_projects
			WHERE recurring_project_id = ? AND occurrence_number = ? AND status = 'generated'
		)`, definitionID, occurrenceNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return exists, nil
}

// ListByDefinition returns all ledger entries of a definition in occurrence order.
func (s *Store) ListByDefinition(ctx context.Context, definitionID string) ([]domain.GeneratedProjectRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+`
		FROM generated_projects
		WHERE recurring_project_id = ?
		ORDER BY occurrence_number, actual_generation_date, id`, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	records := []domain.GeneratedProjectRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateProject inserts the materialized payload as a new project row.
func (s *Store) CreateProject(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project id: %w", err)
	}

	components := payload.Components
	if components == nil {
		components = []domain.Component{}
	}
	encoded, err := json.Marshal(components)
	if err != nil {
		return nil, fmt.Errorf("failed to encode components: %w", err)
	}

	var recurringID sql.NullString
	if payload.RecurringProjectID != "" {
		recurringID = sql.NullString{String: payload.RecurringProjectID, Valid: true}
	}
	var occurrence sql.NullInt64
	if payload.OccurrenceNumber > 0 {
		occurrence = sql.NullInt64{Int64: int64(payload.OccurrenceNumber), Valid: true}
	}

	created := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `INSERT INTO projects (
			id, name, description, client_id, template_id, start_date, due_date, status,
			components, recurring_project_id, occurrence_number, generated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), payload.Name, payload.Description, nullString(payload.ClientID), payload.TemplateID,
		payload.StartDate.Format(domain.DateLayout), payload.DueDate.Format(domain.DateLayout),
		string(payload.Status), string(encoded), recurringID, occurrence,
		formatTime(payload.GeneratedAt), formatTime(created))
	if constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, payload.RecurringProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return &domain.PersistedProject{ID: id.String(), Name: payload.Name, CreatedAt: created}, nil
}
