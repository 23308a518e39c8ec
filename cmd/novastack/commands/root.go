package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/novastack/service_layer/internal/config"
	"github.com/novastack/service_layer/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
	rootLog    *logger.Logger
)

// NewRootCommand builds the novastack command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "novastack",
		Short:        "NovaStack startup investment backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := os.Setenv(config.ConfigPathEnv, configPath); err != nil {
					return err
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			rootLog = logger.New(logger.LoggingConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cfg.Logging.Output,
			}).Named("novastack")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides "+config.ConfigPathEnv+")")

	root.AddCommand(serveCmd(), migrateCmd(), walletCmd(), tokenCmd())
	return root
}

func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
