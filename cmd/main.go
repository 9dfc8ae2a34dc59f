package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/Abraxas-365/chatkeep/pkg/iam/auth"
	"github.com/Abraxas-365/chatkeep/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatkeep",
		Short:         "Conversational API with per-user model handles and bounded history",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newServeCommand(), newTokenCommand(), newConfigCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func newTokenCommand() *cobra.Command {
	var (
		user  string
		ttl   time.Duration
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Auth.Enabled() {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}
			if strings.TrimSpace(user) == "" {
				return fmt.Errorf("--user is required")
			}

			tokens, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
			if err != nil {
				return err
			}

			var scopes []string
			if admin {
				scopes = []string{"admin:*"}
			}
			token, err := tokens.GenerateAccessToken(user, scopes, ttl)
			if err != nil {
				return err
			}

			authinfra.NewLogxAuditService().LogTokenIssued(cmd.Context(), user, scopes, time.Now().Add(ttl))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "subject (identity) of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant access to /api/v1/admin routes")
	return cmd
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			logx.Debug("configuration printed")
			return nil
		},
	}
}
