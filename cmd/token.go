/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/welisten/apiserver/config"
	"github.com/welisten/apiserver/internal/handlers"
)

var (
	tokenUserID int64
	tokenTTL    time.Duration
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user id",
	Long: `Signs a JWT with JWT_SECRET whose subject is the given user id. Accounts
are managed outside this service; the command exists for local testing. Usage:

	welisten token --user 1 --ttl 1h
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
		if tokenUserID <= 0 {
			return errors.New("--user must be a positive id")
		}

		token, err := handlers.IssueToken(tokenUserID, cfg.JWTSecret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "user id to place in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
