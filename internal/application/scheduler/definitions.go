package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rezkam/shopfloor/internal/domain"
)

// RegisterDefinition validates and stores a new definition. Bookkeeping
// fields are reset; the pattern must yield a first occurrence.
func (s *Scheduler) RegisterDefinition(ctx context.Context, def *domain.RecurringProjectDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: definition id is required", domain.ErrInvalidID)
	}
	if err := def.Validate(); err != nil {
		return err
	}
	first, err := s.calculator.NextOccurrence(s.pattern(def), def.Pattern.StartDate)
	if err != nil {
		return err
	}
	if first == nil {
		return fmt.Errorf("%w: pattern has no occurrence after start date %s",
			domain.ErrConfiguration, def.Pattern.StartDate.Format(domain.DateLayout))
	}

	now := s.clock.Now()
	def.NextOccurrence = first
	def.LastOccurrence = nil
	def.TotalOccurrences = 0
	def.ConsecutiveFailures = 0
	def.NeedsAttention = false
	def.AttentionReason = nil
	def.GeneratedProjects = nil
	def.InitRemaining()
	def.CreatedAt = now
	def.UpdatedAt = now
	def.Version = 0

	if err := s.definitions.Save(ctx, def); err != nil {
		return err
	}

	slog.InfoContext(ctx, "registered recurring definition",
		"definition_id", def.ID,
		"frequency", def.Pattern.Frequency)
	return nil
}

// DeactivateDefinition stops scheduling a definition. Its ledger is kept.
func (s *Scheduler) DeactivateDefinition(ctx context.Context, definitionID string) (*domain.RecurringProjectDefinition, error) {
	unlock, err := s.locker.Lock(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock definition %s: %w", definitionID, err)
	}
	defer unlock()

	def, err := s.definitions.FindByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return def, nil
	}

	def.IsActive = false
	def.UpdatedAt = s.clock.Now()
	if err := s.definitions.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to deactivate definition %s: %w", definitionID, err)
	}

	slog.InfoContext(ctx, "deactivated recurring definition", "definition_id", definitionID)
	return def, nil
}
