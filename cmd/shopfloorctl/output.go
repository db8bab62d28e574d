package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/application/worker"
	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/http/handler"
)

// decodeDocument reads YAML (and therefore JSON) into a wire DTO by way of
// its JSON tags, so files and API bodies share one format.
func decodeDocument(data []byte, dst any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert document: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	return nil
}

func (c *cli) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) newTable(cmd *cobra.Command) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	return tw
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func (c *cli) printDefinition(cmd *cobra.Command, def *domain.RecurringProjectDefinition) error {
	dto := handler.MapDefinitionToDTO(def)
	if c.jsonOutput() {
		return c.printJSON(cmd, dto)
	}

	remaining := "unlimited"
	if dto.RemainingOccurrences != nil {
		remaining = fmt.Sprint(*dto.RemainingOccurrences)
	}

	tw := c.newTable(cmd)
	tw.AppendRows([]table.Row{
		{"ID", dto.ID},
		{"Name", dto.Name},
		{"Frequency", fmt.Sprintf("%s every %d", dto.Pattern.Frequency, dto.Pattern.Interval)},
		{"Start", dto.Pattern.StartDate},
		{"Active", dto.IsActive},
		{"Auto generate", dto.AutoGenerate},
		{"Advance notice", fmt.Sprintf("%d days", dto.AdvanceNoticeDays)},
		{"Last occurrence", orDash(dto.LastOccurrence)},
		{"Next occurrence", orDash(dto.NextOccurrence)},
		{"Generated", dto.TotalOccurrences},
		{"Remaining", remaining},
		{"Consecutive failures", dto.ConsecutiveFailures},
	})
	if dto.NeedsAttention {
		tw.AppendRow(table.Row{"Needs attention", orDash(dto.AttentionReason)})
	}
	tw.Render()
	return nil
}

func (c *cli) printDates(cmd *cobra.Command, dates []time.Time) error {
	if c.jsonOutput() {
		out := make([]string, len(dates))
		for i, d := range dates {
			out[i] = d.Format(domain.DateLayout)
		}
		return c.printJSON(cmd, handler.PreviewResponse{Occurrences: out})
	}

	tw := c.newTable(cmd)
	tw.AppendHeader(table.Row{"#", "Date", "Weekday"})
	for i, d := range dates {
		tw.AppendRow(table.Row{i + 1, d.Format(domain.DateLayout), d.Weekday()})
	}
	tw.Render()
	return nil
}

func (c *cli) printAction(cmd *cobra.Command, action scheduler.Action) error {
	if action.Kind == "" {
		return nil
	}
	dto := handler.MapActionToDTO(action)
	if c.jsonOutput() {
		return c.printJSON(cmd, dto)
	}

	tw := c.newTable(cmd)
	tw.AppendRow(table.Row{"Action", dto.Action})
	if dto.Candidate != nil {
		tw.AppendRow(table.Row{"Occurrence date", *dto.Candidate})
	}
	if dto.Reason != "" {
		tw.AppendRow(table.Row{"Reason", dto.Reason})
	}
	if dto.Record != nil {
		tw.AppendRow(table.Row{"Occurrence number", dto.Record.OccurrenceNumber})
	}
	if dto.Project != nil {
		tw.AppendRow(table.Row{"Project", fmt.Sprintf("%s (%s)", dto.Project.Name, dto.Project.ID)})
	}
	tw.Render()
	return nil
}

func (c *cli) printHistory(cmd *cobra.Command, records []domain.GeneratedProjectRecord) error {
	dtos := handler.MapRecordsToDTO(records)
	if c.jsonOutput() {
		return c.printJSON(cmd, handler.GeneratedProjectsResponse{GeneratedProjects: dtos})
	}

	tw := c.newTable(cmd)
	tw.AppendHeader(table.Row{"#", "Scheduled", "Status", "Project", "Generated at", "Notes"})
	for _, r := range dtos {
		tw.AppendRow(table.Row{
			r.OccurrenceNumber,
			r.ScheduledDate,
			r.Status,
			orDash(r.ProjectID),
			r.ActualGenerationDate.Format(time.RFC3339),
			r.Notes,
		})
	}
	tw.Render()
	return nil
}

func (c *cli) printSummary(cmd *cobra.Command, s worker.Summary) error {
	if c.jsonOutput() {
		return c.printJSON(cmd, map[string]int{
			"checked":   s.Checked,
			"generated": s.Generated,
			"failed":    s.Failed,
			"ended":     s.Ended,
			"noop":      s.Noop,
			"errors":    s.Errors,
			"panics":    s.Panics,
		})
	}

	tw := c.newTable(cmd)
	tw.AppendHeader(table.Row{"Checked", "Generated", "Failed", "Ended", "Noop", "Errors", "Panics"})
	tw.AppendRow(table.Row{s.Checked, s.Generated, s.Failed, s.Ended, s.Noop, s.Errors, s.Panics})
	tw.Render()
	return nil
}
