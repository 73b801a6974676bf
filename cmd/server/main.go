// Package main implements the cadence API server: the HTTP surface over the
// card lifecycle engine plus operator commands for migrations, one-shot
// escalation runs and development tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/api"
	"github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/platform/postgres"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/spf13/cobra"
)

// migrateCommands lists the goose commands exposed by "migrate".
var migrateCommands = []string{"up", "down", "status", "version", "reset"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cadence-api",
		Short:         "Meeting card lifecycle and recurrence service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newEscalateCmd(), newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the escalation scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:       "migrate {up|down|status|version|reset}",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(os.Stdout, "info")

			dbCfg := config.DatabaseConfig{URL: databaseURL, MaxOpenConns: 1, MaxIdleConns: 1}
			if dbCfg.URL == "" {
				cfg, err := loadAppConfig()
				if err != nil {
					return err
				}
				dbCfg = cfg.Database
				log = logger.New(os.Stdout, cfg.Server.LogLevel)
			}

			db, err := setupAppDatabase(cmd.Context(), dbCfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, args[0], log)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv(config.EnvPrefix+"_DATABASE_URL"),
		"database URL; when empty the full configuration is loaded")
	return cmd
}

func newEscalateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Run one escalation pass and print its report",
		Long: "Runs the priority escalator once, for deployments that trigger it " +
			"from an external cron instead of the in-process scheduler.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			report := app.escalator.Run(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), api.NewEscalationResponse(report)); err != nil {
				return err
			}
			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("escalation finished with %d failed cards", failed)
			}
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user, for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			secret := os.Getenv(config.EnvPrefix + "_AUTH_JWT_SECRET")
			verifier, err := middleware.NewJWTVerifier(secret)
			if err != nil {
				return fmt.Errorf("%s_AUTH_JWT_SECRET: %w", config.EnvPrefix, err)
			}
			token, err := verifier.Sign(id, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user UUID placed in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// bootstrap loads configuration, sets up logging and the database, and
// builds the application.
func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}

	log, err := setupAppLogger(cfg)
	if err != nil {
		return nil, err
	}
	logConfig(cfg, log)

	db, err := setupAppDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database connection", redact.ErrorAttr(closeErr))
		}
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
