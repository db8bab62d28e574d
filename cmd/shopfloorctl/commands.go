package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezkam/shopfloor/internal/app"
	"github.com/rezkam/shopfloor/internal/application/worker"
	"github.com/rezkam/shopfloor/internal/config"
	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/http/handler"
)

func (c *cli) registerCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a recurring project definition from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinitionFile(file)
			if err != nil {
				return err
			}
			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				if err := rt.Scheduler.RegisterDefinition(cmd.Context(), def); err != nil {
					return err
				}
				return c.printDefinition(cmd, def)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "definition file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <definition-id>",
		Short: "Show a definition and its scheduling cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				def, err := rt.Scheduler.GetDefinition(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printDefinition(cmd, def)
			})
		},
	}
}

func (c *cli) deactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <definition-id>",
		Short: "Stop scheduling a definition; its history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				def, err := rt.Scheduler.DeactivateDefinition(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printDefinition(cmd, def)
			})
		},
	}
}

func (c *cli) previewCmd() *cobra.Command {
	var (
		file  string
		from  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "preview [definition-id]",
		Short: "List upcoming occurrences of a stored definition or a pattern file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (file != "") {
				return errors.New("pass either a definition id or --file")
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}

			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				pattern, start, err := previewPattern(cmd.Context(), rt, args, file)
				if err != nil {
					return err
				}
				if from != "" {
					if start, err = domain.ParseDate(from); err != nil {
						return fmt.Errorf("--from: %w", err)
					}
				}

				dates, err := rt.Scheduler.PreviewOccurrences(cmd.Context(), pattern, start, count)
				if err != nil {
					return err
				}
				return c.printDates(cmd, dates)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "pattern file (YAML or JSON)")
	cmd.Flags().StringVar(&from, "from", "", "list occurrences after this date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of occurrences")
	return cmd
}

// previewPattern resolves the pattern to preview and the date to start from:
// a stored definition continues from its cursor, a file from its start date.
func previewPattern(ctx context.Context, rt *app.Runtime, args []string, file string) (domain.RecurrencePattern, time.Time, error) {
	if file != "" {
		p, err := loadPatternFile(file)
		return p, p.StartDate, err
	}

	def, err := rt.Scheduler.GetDefinition(ctx, args[0])
	if err != nil {
		return domain.RecurrencePattern{}, time.Time{}, err
	}
	from := def.Pattern.StartDate
	if def.LastOccurrence != nil {
		from = *def.LastOccurrence
	}
	return def.Pattern, from, nil
}

func (c *cli) tickCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "tick [definition-id]",
		Short: "Evaluate one definition, or every active one with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either a definition id or --all")
			}

			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				if all {
					summary, err := worker.New(rt.Store, rt.Scheduler).RunOnce(cmd.Context())
					if err != nil {
						return err
					}
					return c.printSummary(cmd, summary)
				}

				action, err := rt.Scheduler.Tick(cmd.Context(), args[0])
				if printErr := c.printAction(cmd, action); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "tick every active definition")
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	var (
		date     string
		name     string
		duration int
	)
	cmd := &cobra.Command{
		Use:   "generate <definition-id>",
		Short: "Generate the next occurrence for a chosen date, bypassing the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduled, err := domain.ParseDate(date)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			var custom *domain.Customizations
			if cmd.Flags().Changed("name") || cmd.Flags().Changed("duration") {
				custom = &domain.Customizations{}
				if cmd.Flags().Changed("name") {
					custom.Name = &name
				}
				if cmd.Flags().Changed("duration") {
					custom.Duration = &duration
				}
			}

			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				action, err := rt.Scheduler.GenerateManualOccurrence(cmd.Context(), args[0], scheduled, custom)
				if printErr := c.printAction(cmd, action); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "scheduled date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&name, "name", "", "project name override")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration override in days")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <definition-id>",
		Short: "List the generation ledger of a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				records, err := rt.Scheduler.ListGeneratedProjects(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printHistory(cmd, records)
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured SQL backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCLIConfig()
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), cfg.Storage); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s storage\n", cfg.Storage.Backend)
			return nil
		},
	}
}

// loadDefinitionFile reads a definition in the API's wire format.
func loadDefinitionFile(path string) (*domain.RecurringProjectDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dto handler.DefinitionDTO
	if err := decodeDocument(data, &dto); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def, err := handler.MapDefinitionFromDTO(dto)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// loadPatternFile reads a bare recurrence pattern in the API's wire format.
func loadPatternFile(path string) (domain.RecurrencePattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RecurrencePattern{}, err
	}
	var dto handler.PatternDTO
	if err := decodeDocument(data, &dto); err != nil {
		return domain.RecurrencePattern{}, fmt.Errorf("%s: %w", path, err)
	}
	p, err := handler.MapPatternFromDTO(dto)
	if err != nil {
		return domain.RecurrencePattern{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
