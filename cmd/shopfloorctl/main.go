// Command shopfloorctl operates recurring project schedules directly against
// the configured store: register definitions, preview patterns, tick, generate
// occurrences by hand and inspect the generation history.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rezkam/shopfloor/internal/app"
	"github.com/rezkam/shopfloor/internal/config"
)

func main() {
	if err := newCLI().rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the flag state shared by every subcommand.
type cli struct {
	v *viper.Viper

	// openRuntime is replaced in tests.
	openRuntime func(ctx context.Context) (*app.Runtime, error)
}

func newCLI() *cli {
	c := &cli{v: viper.New()}
	c.openRuntime = c.loadRuntime
	return c
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shopfloorctl",
		Short:         "Operate recurring project schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile := c.v.GetString("env-file")
			if envFile == "" {
				// A missing .env file is fine; the environment may already be set.
				_ = godotenv.Load()
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			return nil
		},
	}

	c.v.SetEnvPrefix("SHOPFLOORCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("env-file", "", "load environment from this file instead of ./.env")
	_ = c.v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = c.v.BindPFlag("env-file", root.PersistentFlags().Lookup("env-file"))

	root.AddCommand(
		c.registerCmd(),
		c.showCmd(),
		c.deactivateCmd(),
		c.previewCmd(),
		c.tickCmd(),
		c.generateCmd(),
		c.historyCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) loadRuntime(ctx context.Context) (*app.Runtime, error) {
	cfg, err := config.LoadCLIConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg.Storage, cfg.Scheduler, cfg.Redis)
}

// withRuntime opens the store and scheduler for the duration of fn.
func (c *cli) withRuntime(ctx context.Context, fn func(rt *app.Runtime) error) error {
	rt, err := c.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func (c *cli) jsonOutput() bool {
	return c.v.GetBool("json")
}
