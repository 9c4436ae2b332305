package main

import (
	"errors"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var (
	configFile string
	secretFlag string
)

// NewRootCmd creates the root command for the operator CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "AuthServer operator tools",
		Long:          `authctl hashes passwords, classifies stored hashes and mints or inspects session tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&secretFlag, "secret", "", "token secret (overrides auth.jwt_secret)")

	cmd.AddCommand(newHashPasswordCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newMintCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newTailEventsCmd())

	return cmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

// secret resolves the signing secret from --secret or the config file.
func secret() ([]byte, bool, error) {
	if secretFlag != "" {
		return []byte(secretFlag), true, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, false, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, false, errors.New("no secret configured")
	}
	return []byte(cfg.Auth.JWTSecret), cfg.Auth.RequireExp, nil
}
