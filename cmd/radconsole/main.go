package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/radconsole/internal/config"
	"github.com/ehr/radconsole/internal/platform/db"
	"github.com/ehr/radconsole/internal/platform/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "radconsole",
		Short: "Radiology admin console",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the console web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored console sessions",
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres session table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := session.NewPGPersister(pool).Migrate(ctx); err != nil {
				return fmt.Errorf("migrate sessions: %w", err)
			}
			fmt.Println("Session table is up to date.")
			return nil
		},
	}
	cmd.AddCommand(migrateCmd)

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			persister, pool, err := openPersister(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			store, err := session.NewStore(ctx, nil, persister, session.WithLogger(newLogger(cfg)))
			if err != nil {
				return err
			}
			n, err := store.Purge(ctx)
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			fmt.Printf("Removed %d expired session(s).\n", n)
			return nil
		},
	}
	cmd.AddCommand(purgeCmd)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the console version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("radconsole", version)
		},
	}
}

// openPersister picks the session backend named by the config. The pool is
// nil for the file backend; callers close it otherwise.
func openPersister(ctx context.Context, cfg *config.Config) (session.Persister, *pgxpool.Pool, error) {
	if cfg.SessionBackend != "postgres" {
		return session.NewFilePersister(cfg.SessionFile), nil, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	p := session.NewPGPersister(pool)
	if err := p.Migrate(mctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return p, pool, nil
}
