package main

import (
	"fmt"

	authcore "github.com/NordCoder/AuthServer/internal/auth"
	"github.com/spf13/cobra"
)

type hashConfig struct {
	password string
	cost     int
}

func newHashPasswordCmd() *cobra.Command {
	cfg := &hashConfig{}

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHashPassword(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.password, "password", "", "password to hash")
	cmd.Flags().IntVar(&cfg.cost, "cost", 0, "bcrypt cost (0 uses the library default)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runHashPassword(cmd *cobra.Command, cfg *hashConfig) error {
	h, err := authcore.HashPassword(cfg.password, cfg.cost)
	if err != nil {
		return fmt.Errorf("hash-password: %w", err)
	}
	cmd.Println(h)
	return nil
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <stored-hash>",
		Short: "Print the password scheme of a stored hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(string(authcore.DetectScheme(args[0])))
			return nil
		},
	}
}
