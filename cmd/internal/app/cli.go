package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"passage/cmd/internal/auth/credential"
	"passage/cmd/internal/auth/session"
)

// Execute runs the passage CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the passage command tree.
func NewRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "passage",
		Short:        "Cookie session authentication for a single local principal",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration (missing file is ignored)")

	root.AddCommand(newServeCommand(), newMigrateCommand(), newSweepCommand())
	return root
}

// loadEnvFile loads path without overriding variables already set.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := LoadConfig()
			log := NewLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := New(ctx, cfg, log)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the credential schema and seed the local principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := LoadConfig()
			log := NewLogger(cfg.LogLevel, cfg.LogFormat)

			st, err := credential.Open(cmd.Context(), cfg.CredentialConfig(), log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			log.Info("migrate.done")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return err
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := LoadConfig()
			log := NewLogger(cfg.LogLevel, cfg.LogFormat)

			sessCfg, err := session.LoadConfigFromEnv()
			if err != nil {
				return fmt.Errorf("session config: %w", err)
			}

			st, err := credential.Open(cmd.Context(), cfg.CredentialConfig(), log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			m, err := session.NewManager(sessCfg, st, session.WithLogger(log))
			if err != nil {
				return err
			}
			n, err := m.DeleteExpired(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired sessions\n", n)
			return err
		},
	}
}
