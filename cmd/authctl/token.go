package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	authcore "github.com/NordCoder/AuthServer/internal/auth"
	"github.com/spf13/cobra"
)

type mintConfig struct {
	sub   int64
	login string
	ttl   time.Duration
}

func newMintCmd() *cobra.Command {
	cfg := &mintConfig{}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _, err := secret()
			if err != nil {
				return err
			}
			return runMint(cmd, cfg, key, time.Now().UTC())
		},
	}
	cmd.Flags().Int64Var(&cfg.sub, "sub", 0, "user id")
	cmd.Flags().StringVar(&cfg.login, "login", "", "login name")
	cmd.Flags().DurationVar(&cfg.ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	_ = cmd.MarkFlagRequired("login")

	return cmd
}

func runMint(cmd *cobra.Command, cfg *mintConfig, key []byte, now time.Time) error {
	if cfg.ttl <= 0 {
		return errors.New("mint: ttl must be positive")
	}
	tok, err := authcore.NewSessionClaims(cfg.sub, cfg.login, now.Add(cfg.ttl)).SignedString(key)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	cmd.Println(tok)
	return nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, requireExp, err := secret()
			if err != nil {
				return err
			}
			codec := authcore.NewCodec(authcore.CodecConfig{Secret: key, RequireExp: requireExp})
			return runInspect(cmd, codec, args[0])
		},
	}
}

func runInspect(cmd *cobra.Command, codec *authcore.Codec, token string) error {
	claims, err := codec.Verify(token)
	if err != nil {
		return fmt.Errorf("inspect: %s: %w", errorKind(err), err)
	}
	out, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, authcore.ErrMissingExp):
		return "missing_exp"
	case errors.Is(err, authcore.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, authcore.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, authcore.ErrExpired):
		return "expired"
	default:
		return "unknown"
	}
}
