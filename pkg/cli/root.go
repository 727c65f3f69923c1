// Package cli implements the ekaya-ingest command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/auth"
	"github.com/ekaya-inc/ekaya-ingest/pkg/backend"
	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

// Version is set at build time via ldflags.
var Version = "dev"

// app carries the resolved configuration and session shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *services.Session
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		apiURL     string
		token      string
		output     string
		logLevel   string
	)

	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "ekaya-ingest",
		Short:         "Data ingestion session client",
		Long:          "Register data sources, discover schemas, preview records and review ingestion history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}

			var overrides []config.Override
			if cmd.Flags().Changed("api-url") {
				overrides = append(overrides, func(c *config.Config) { c.APIURL = apiURL })
			}
			if cmd.Flags().Changed("log-level") {
				overrides = append(overrides, func(c *config.Config) { c.Log.Level = logLevel })
			}

			cfg, err := config.Load(configPath, Version, overrides...)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}

			transport := backend.NewHTTPTransport(cfg.APIURL, cfg.HTTPTimeout, logger)
			client := backend.NewClient(transport, tokenProvider(cfg, token), logger)

			a.cfg = cfg
			a.logger = logger
			a.session = services.NewSession(client, services.SessionOptions{
				ReconcileWindow: cfg.Ledger.ReconcileWindow,
			}, logger)

			logger.Debug("Configuration loaded",
				zap.String("api_url", cfg.APIURL),
				zap.String("version", cfg.Version),
				zap.Duration("http_timeout", cfg.HTTPTimeout))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.session != nil {
				a.session.Close()
			}
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (overrides INGEST_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newEnginesCmd())
	rootCmd.AddCommand(newTestCmd(a))
	rootCmd.AddCommand(newSchemaCmd(a))
	rootCmd.AddCommand(newPreviewCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newShellCmd(a))

	return rootCmd
}

// tokenProvider resolves the bearer token: flag, then INGEST_TOKEN, then the
// token file. JWTs are checked for expiry unless disabled.
func tokenProvider(cfg *config.Config, flagToken string) auth.TokenProvider {
	var chain auth.Chain
	if flagToken != "" {
		chain = append(chain, auth.StaticToken(flagToken))
	}
	if cfg.Auth.Token != "" {
		chain = append(chain, auth.StaticToken(cfg.Auth.Token))
	}
	if cfg.Auth.TokenFile != "" {
		chain = append(chain, auth.FileToken(cfg.Auth.TokenFile))
	}

	if !cfg.Auth.CheckExpiry {
		return chain
	}
	return auth.ExpiryChecked{Provider: chain}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": Version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ekaya-ingest version %s\n", Version)
			return err
		},
	}
}
