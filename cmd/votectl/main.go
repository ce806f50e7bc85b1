package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/live-voting-service/internal/tools/common"
	"github.com/sandeepkv93/live-voting-service/internal/tools/loadgen"
	"github.com/sandeepkv93/live-voting-service/internal/tools/ui"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	envFile string
	baseURL string
	ci      bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "votectl",
		Short:         "Operator tooling for the live voting service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(opts.envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newSimulateCommand(opts))
	return cmd
}

func newSimulateCommand(opts *options) *cobra.Command {
	cfg := loadgen.Config{}
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Sign in shared-link voters, cast votes over the realtime channel and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.BaseURL = opts.baseURL
			if cfg.AdminUser == "" {
				cfg.AdminUser = os.Getenv("BOOTSTRAP_ADMIN_USERNAME")
			}
			if cfg.AdminPassword == "" {
				cfg.AdminPassword = os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
			}
			title := fmt.Sprintf("simulate %d voters", cfg.Participants)
			task := func(ctx context.Context, progress func(string)) ([]string, error) {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				res, err := loadgen.Run(ctx, cfg, progress)
				return res.Summary(), err
			}

			var (
				details []string
				err     error
			)
			if opts.ci {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				details, err = task(ctx, nil)
				common.PrintCIResult(err == nil, title, details, err)
			} else {
				details, err = ui.Run(title, task)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.SessionID, "session", "", "session id (shared-link entry mode)")
	f.StringVar(&cfg.AgendaID, "agenda", "", "agenda id to vote on")
	f.StringVar(&cfg.AccessCode, "access-code", "", "session access code, when one is set")
	f.IntVar(&cfg.Participants, "voters", 50, "number of simulated voters")
	f.IntVar(&cfg.Concurrency, "concurrency", 10, "voters signing in at once")
	f.Uint64Var(&cfg.Seed, "seed", 42, "seed for the choice distribution")
	f.DurationVar(&cfg.Linger, "linger", time.Second, "how long each voter listens for statistics after voting")
	f.BoolVar(&cfg.Drive, "drive", false, "open voting first, then end and publish the agenda")
	f.StringVar(&cfg.AdminUser, "admin-user", "", "admin username for --drive (default BOOTSTRAP_ADMIN_USERNAME)")
	f.StringVar(&cfg.AdminPassword, "admin-password", "", "admin password for --drive (default BOOTSTRAP_ADMIN_PASSWORD)")
	f.DurationVar(&timeout, "timeout", 3*time.Minute, "overall deadline")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("agenda")
	return cmd
}
