package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/shopfloor/internal/domain"
)

// CreateProject inserts the materialized payload as a new project row.
func (s *Store) CreateProject(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project id: %w", err)
	}

	components, err := json.Marshal(componentsOrEmpty(payload.Components))
	if err != nil {
		return nil, fmt.Errorf("failed to encode components: %w", err)
	}

	var recurringID pgtype.Text
	if payload.RecurringProjectID != "" {
		recurringID = pgtype.Text{String: payload.RecurringProjectID, Valid: true}
	}
	var occurrence pgtype.Int4
	if payload.OccurrenceNumber > 0 {
		occurrence = pgtype.Int4{Int32: int32(payload.OccurrenceNumber), Valid: true}
	}

	var createdAt pgtype.Timestamptz
	err = s.db.QueryRow(ctx, `INSERT INTO projects (
			id, name, description, client_id, template_id, start_date, due_date, status,
			components, recurring_project_id, occurrence_number, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`,
		pgtype.UUID{Bytes: id, Valid: true}, payload.Name, payload.Description, payload.ClientID,
		payload.TemplateID, dateToPgtype(payload.StartDate), dateToPgtype(payload.DueDate),
		string(payload.Status), components, recurringID, occurrence, timeToPgtype(payload.GeneratedAt),
	).Scan(&createdAt)
	if isConstraintViolation(err, codeForeignKeyViolation, "") {
		return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, payload.RecurringProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return &domain.PersistedProject{
		ID:        id.String(),
		Name:      payload.Name,
		CreatedAt: pgtypeToTime(createdAt),
	}, nil
}
