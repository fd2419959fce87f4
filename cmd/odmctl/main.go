// Command odmctl is a minimal operational CLI over the ODM facade: load a
// configuration document, register its databases, and run a one-shot
// health check or table operation against them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossdbodm/odm/internal/config"
	"github.com/crossdbodm/odm/odm"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "odmctl",
		Short: "Operate an ODM deployment from a configuration file",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "odm.toml", "path to the database configuration document")
	root.AddCommand(healthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Register every configured alias and report per-alias liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			file, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db := odm.New()
			for _, alias := range file.Databases {
				if err := db.AddDatabase(ctx, alias); err != nil {
					return fmt.Errorf("registering alias %q: %w", alias.Alias, err)
				}
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				db.Shutdown(shutdownCtx)
			}()

			results := db.HealthCheck(ctx)
			report := make(map[string]string, len(results))
			for alias, err := range results {
				if err != nil {
					report[alias] = err.Error()
				} else {
					report[alias] = "ok"
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
