package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/auth"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/config"
)

// newTokenCmd creates the "bridge token" subcommand, which prints a signed
// token for an overlay or control client.
func newTokenCmd() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <client-id>",
		Short: "Issue a token for an overlay or control client",
		Long:  "Sign a JWT with AUTH_SECRET.\nOverlay tokens may subscribe to translations; control tokens may also\ntoggle translation, re-trigger and reset the connection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cfg.AuthEnabled() {
				return errors.New("token: AUTH_SECRET is not set")
			}

			issuer, err := auth.NewTokenIssuer(cfg.AuthSecret, ttl)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}

			var token string
			switch role {
			case auth.RoleOverlay:
				token, err = issuer.GenerateOverlayToken(args[0])
			case auth.RoleControl:
				token, err = issuer.GenerateControlToken(args[0])
			default:
				return fmt.Errorf("token: unknown role %q", role)
			}
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", auth.RoleOverlay, "token role: overlay or control")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
