// Package commands builds the gestor CLI. Every service role is its own
// subcommand so that one binary serves the whole deployment.
package commands

import (
	"fmt"

	"gestor-financiero/pkg/auth"
	"gestor-financiero/pkg/config"
	"gestor-financiero/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gestor",
		Short: "Financial document ingestion, OCR and ledger services",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newGatewayCommand(),
		newAuthCommand(),
		newDocumentsCommand(),
		newFinancialCommand(),
		newOCRCommand(),
		newMigrateCommand(),
	)

	return rootCmd
}

// bootstrap loads the configuration and the process logger for one service.
func bootstrap(service string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logger.Level, service); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.Get(), nil
}

// newJWTManager builds the token manager shared by every role and warns when
// the placeholder secret is in use.
func newJWTManager(cfg *config.JWTConfig, appLogger *zap.Logger) *auth.JWTManager {
	if cfg.UsesDefaultSecret() {
		appLogger.Warn("JWT_SECRET_KEY is not set, tokens are signed with the placeholder secret; set it before deploying")
	}
	return auth.NewJWTManager(cfg.SecretKey, cfg.Expiration)
}

// portFlag registers --port; an empty value keeps the configured port.
func portFlag(cmd *cobra.Command, port *string) {
	cmd.Flags().StringVar(port, "port", "", "listen port (overrides the environment)")
}

func pick(override, configured string) string {
	if override != "" {
		return override
	}
	return configured
}
