// Command admintoken mints admin bearer tokens and bcrypt hashes of the admin
// secret for auth.admin_secret_hash.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/david/casematch/internal/auth"
	"github.com/david/casematch/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "admintoken",
		Short:        "Issue admin credentials",
		SilenceUsage: true,
	}
	root.AddCommand(newTokenCommand(), newHashCommand())
	return root
}

func newTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the configured JWT secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), cfg.Auth.JWTSecret, subject, ttl)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", auth.AdminSubject, "Token subject (a user UUID for user tokens)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func newHashCommand() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the bcrypt hash of an admin secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("ADMIN_SECRET")
			}
			return printHash(cmd.OutOrStdout(), secret)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Admin secret (or use ADMIN_SECRET env)")
	return cmd
}

func printToken(out io.Writer, jwtSecret, subject string, ttl time.Duration) error {
	jwtSecret = strings.TrimSpace(jwtSecret)
	if jwtSecret == "" {
		return eris.New("admintoken: auth.jwt_secret is not configured, tokens would not verify")
	}
	if ttl <= 0 {
		return eris.New("admintoken: ttl must be positive")
	}
	token, err := auth.GenerateToken([]byte(jwtSecret), subject, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func printHash(out io.Writer, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return eris.New("admintoken: missing admin secret: use --secret or ADMIN_SECRET env")
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
