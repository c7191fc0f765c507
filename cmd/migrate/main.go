package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skryldev/storefront/config"
	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
	"github.com/Skryldev/storefront/repo"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the storefront database schema and sample data",
		Long: `Manage the storefront database schema and sample data.

Environment:
  DATABASE_URL      Full database DSN (or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME).
  DATABASE_DRIVER   postgres, mysql or sqlite3 (default: postgres).
  ENV_FILE          dotenv file loaded first (default: .env).`,
		SilenceUsage: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(_ *cobra.Command, _ []string, m *db.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				slog.Info("migrations: up completed")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back N migrations (default: 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withMigrator(func(_ *cobra.Command, args []string, m *db.Migrator) error {
				steps := 1
				if len(args) > 0 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("down: invalid steps argument %q", args[0])
					}
					steps = n
				}
				if err := m.Down(steps); err != nil {
					return err
				}
				slog.Info("migrations: down completed", "steps", steps)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, _ []string, m *db.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d  dirty: %v\n", v, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force V",
			Short: "Force set the migration version (clears the dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(_ *cobra.Command, args []string, m *db.Migrator) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("force: invalid version %q", args[0])
				}
				if err := m.Force(v); err != nil {
					return err
				}
				slog.Info("migrations: forced", "version", v)
				return nil
			}),
		},
		newDropCmd(),
		newSeedCmd(),
	)
	return root
}

func newDropCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop all tables (dev only)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m *db.Migrator) error {
			if !yes {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: drop will destroy all tables. Type 'yes' to confirm:")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if strings.TrimSpace(line) != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}
			if err := m.Drop(); err != nil {
				return err
			}
			slog.Info("migrations: all tables dropped")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed [file.json|file.yaml]",
		Short: "Load products from a JSON or YAML file, or the sample catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := repo.DefaultCatalogue()
			if len(args) == 1 {
				var err error
				if items, err = readCatalogue(args[0]); err != nil {
					return err
				}
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			if !force {
				n, err := repo.NewProductRepo(database).Count(ctx)
				if err != nil {
					return fmt.Errorf("seed: count: %w", err)
				}
				if n > 0 {
					slog.Info("seed: products table not empty, skipping", "count", n)
					return nil
				}
			}

			created, err := repo.Seed(ctx, database, items)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			slog.Info("seed: inserted products", "count", len(created))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "insert even when products already exist")
	return cmd
}

func readCatalogue(path string) ([]models.CreateProductParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return repo.DecodeCatalogueYAML(f)
	default:
		return repo.DecodeCatalogue(f)
	}
}

// withMigrator opens the database from the environment, builds a Migrator
// and closes both once fn returns.
func withMigrator(fn func(*cobra.Command, []string, *db.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		database, err := openDB()
		if err != nil {
			return err
		}
		m, err := db.NewMigrator(database, slog.Default())
		if err != nil {
			_ = database.Close()
			return fmt.Errorf("migration init failed: %w", err)
		}
		defer func() {
			if cerr := m.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args, m)
	}
}

func openDB() (*db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.Open(cfg.DB())
}
