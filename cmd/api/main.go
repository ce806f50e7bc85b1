package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/live-voting-service/internal/config"
	"github.com/sandeepkv93/live-voting-service/internal/di"
	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/security"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	envFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Live voting coordination service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file; real environment wins")
	cmd.AddCommand(newServeCommand(opts), newMigrateCommand(opts), newSeedDemoCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and realtime server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, lp, err := observability.NewLogger(ctx, cfg, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			runtime, err := observability.InitRuntime(ctx, cfg, logger, lp)
			if err != nil {
				return err
			}

			if migrate {
				if err := runMigrations(cfg); err != nil {
					return err
				}
			}

			a, cleanup, err := di.InitializeApp(ctx, cfg, logger, runtime)
			if err != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownObservabilityTimeout)
				defer cancel()
				_ = runtime.Shutdown(shutdownCtx)
				return fmt.Errorf("initialize app: %w", err)
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			if err := runMigrations(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func runMigrations(cfg *config.Config) error {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return repository.Migrate(db)
}

// newSeedDemoCommand creates a shared-link session with one binary agenda so
// a fresh deployment can be exercised with votectl.
func newSeedDemoCommand(opts *rootOptions) *cobra.Command {
	var (
		name  string
		owner string
	)
	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Create a demo session and agenda",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			ctx := cmd.Context()

			session := &domain.Session{Name: name, Status: domain.SessionStatusActive, EntryMode: domain.EntryModeSharedLink}
			if owner == "" {
				owner = cfg.BootstrapAdminUsername
			}
			if owner != "" {
				user, err := repository.NewUserRepository(db).FindByUsername(ctx, owner)
				if err != nil {
					return fmt.Errorf("find owner %q: %w", owner, err)
				}
				session.OwnerID = &user.ID
			}
			sessions := repository.NewSessionRepository(db)
			if err := sessions.Create(ctx, session); err != nil {
				return err
			}
			code, err := security.GenerateAccessCode()
			if err != nil {
				return err
			}
			if err := sessions.SetAccessCode(ctx, session.ID, code, time.Now().Add(cfg.AccessCodeTTL)); err != nil {
				return err
			}
			agenda := &domain.Agenda{SessionID: session.ID, Title: "Demo motion", Type: domain.AgendaTypeBinary, Stage: domain.StageSubmitted}
			if err := repository.NewAgendaRepository(db).Create(ctx, agenda); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session=%s\nagenda=%s\naccess_code=%s\n", session.ID, agenda.ID, code)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Demo session", "session name")
	cmd.Flags().StringVar(&owner, "owner", "", "owning admin username (defaults to BOOTSTRAP_ADMIN_USERNAME)")
	return cmd
}
