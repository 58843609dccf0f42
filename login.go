package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vortamiko/internal/convert"
)

func newLoginCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with your browser using a device code.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if cfg.Auth0Domain == "" || cfg.Auth0ClientID == "" {
				return errors.New("login requires --auth0-domain and --auth0-client-id (or the VORTAMIKO_AUTH0_* environment variables)")
			}

			code, err := app.auth.StartDeviceLogin(cmd.Context())
			if err != nil {
				return fmt.Errorf("start device login: %w", err)
			}

			fmt.Printf("Open %s in a browser and enter this code:\n\n", code.VerificationURI)
			fmt.Printf("    %s\n\n", code.UserCode)
			if code.VerificationURIComplete != "" {
				fmt.Printf("Or open %s directly.\n\n", code.VerificationURIComplete)
			}
			fmt.Println("Waiting for approval...")

			if err := app.auth.WaitForDeviceLogin(cmd.Context(), code); err != nil {
				return fmt.Errorf("device login: %w", err)
			}
			fmt.Println("Signed in.")

			// Fold any anonymous games played before login into the account.
			convert.NewCoordinator(app.api, app.sessions, app.auth).OnAuthenticated(cmd.Context())
			return nil
		},
	}
}

func newLogoutCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard cached tokens.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if !app.auth.Authenticated() {
				fmt.Println("You are not signed in.")
				return nil
			}
			if err := app.auth.Logout(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}
