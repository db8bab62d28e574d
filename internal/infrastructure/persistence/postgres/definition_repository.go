package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rezkam/shopfloor/internal/domain"
)

// FindByID retrieves a recurring project definition by its ID.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.RecurringProjectDefinition, error) {
	row := s.db.QueryRow(ctx, `SELECT `+definitionColumns+` FROM recurring_definitions WHERE id = $1`, id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	if def.Version == 0 {
		_, err := s.db.Exec(ctx, `INSERT INTO recurring_definitions (`+definitionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
			args...)
		if isConstraintViolation(err, codeUniqueViolation, "recurring_definitions_pkey") {
			return fmt.Errorf("%w: definition %s already exists", domain.ErrVersionConflict, def.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert definition: %w", err)
		}
	} else {
		err := s.executeInTransaction(ctx, "save_definition", func(tx *Store) error {
			return tx.updateDefinition(ctx, def.Version, args)
		})
		if err != nil {
			return err
		}
	}

	def.Version = stored.Version
	def.CreatedAt = stored.CreatedAt
	return nil
}

// updateDefinition overwrites the row at expected version; args carry the new version.
func (s *Store) updateDefinition(ctx context.Context, expected int, args []any) error {
	tag, err := s.db.Exec(ctx, `UPDATE recurring_definitions SET
			template_id = $2, name = $3, description = $4, client_id = $5, duration_days = $6,
			components = $7, pattern = $8, is_active = $9, auto_generate = $10,
			advance_notice_days = $11, project_suffix = $12, next_occurrence = $13,
			last_occurrence = $14, total_occurrences = $15, remaining_occurrences = $16,
			consecutive_failures = $17, needs_attention = $18, attention_reason = $19,
			created_at = $20, updated_at = $21, version = $22
		WHERE id = $1 AND version = $23`,
		append(args, int32(expected))...)
	if err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	id := args[0].(string)
	var current int32
	err = s.db.QueryRow(ctx, `SELECT version FROM recurring_definitions WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.db.Query(ctx, `SELECT `+definitionColumns+`
		FROM recurring_definitions WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active definitions: %w", err)
	}

	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.RecurringProjectDefinition, error) {
		return scanDefinition(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read active definitions: %w", err)
	}
	return defs, nil
}
