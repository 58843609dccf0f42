package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vortamiko/internal/scorekeeper"
)

func newProfileCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View or edit your player profile.",
	}
	cmd.AddCommand(newProfileGetCmd(cfg), newProfileSetCmd(cfg), newProfileAvatarCmd(cfg))
	return cmd
}

// requireLogin bootstraps the app and rejects anonymous callers with a
// friendly message instead of a 401 from the server.
func requireLogin(cmd *cobra.Command, cfg *Config) (*App, error) {
	app, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if !app.auth.Authenticated() {
		app.Close()
		return nil, errors.New(ErrorNotLoggedIn)
	}
	return app, nil
}

func newProfileGetCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show your profile.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireLogin(cmd, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			profile, err := app.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if profile == nil {
				fmt.Println(ErrorNoProfile)
				return nil
			}
			printProfile(profile)
			return nil
		},
	}
}

func newProfileSetCmd(cfg *Config) *cobra.Command {
	var username, displayName, avatarURL string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireLogin(cmd, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			current, err := app.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			profile := scorekeeper.Profile{}
			if current != nil {
				profile = *current
			}
			if cmd.Flags().Changed("username") {
				profile.Username = username
			}
			if cmd.Flags().Changed("display-name") {
				profile.DisplayName = displayName
			}
			if cmd.Flags().Changed("avatar-url") {
				profile.AvatarURL = avatarURL
			}

			if err := validate.Struct(profile); err != nil {
				return fmt.Errorf("invalid profile: %w", err)
			}

			updated, err := app.api.UpdateProfile(cmd.Context(), profile)
			if err != nil {
				return err
			}
			printProfile(updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "unique player handle")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown on leaderboards")
	cmd.Flags().StringVar(&avatarURL, "avatar-url", "", "URL of an externally hosted avatar")
	return cmd
}

func newProfileAvatarCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <file>",
		Short: "Upload an avatar image.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireLogin(cmd, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			profile, err := app.api.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Println("Avatar uploaded.")
			printProfile(profile)
			return nil
		},
	}
}

func printProfile(profile *scorekeeper.Profile) {
	fmt.Printf("Username:     %s\n", profile.Username)
	fmt.Printf("Display name: %s\n", profile.DisplayName)
	if profile.AvatarURL != "" {
		fmt.Printf("Avatar:       %s\n", profile.AvatarURL)
	}
}
