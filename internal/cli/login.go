package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/moodarc/internal/auth"
	"github.com/justestif/moodarc/internal/spotify"
)

func newLoginCmd(a *app) *cobra.Command {
	var redirectURI string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize moodarc with your Spotify account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			authenticator, err := a.authenticator(redirectURI)
			if err != nil {
				return err
			}
			authenticator.SetOutput(cmd.ErrOrStderr())

			api, err := authenticator.Login(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := spotify.New(api).Profile(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching profile: %w", err)
			}

			name := profile.DisplayName
			if name == "" {
				name = profile.ID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s. Token saved to %s\n", name, authenticator.TokenPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&redirectURI, "redirect-uri", auth.DefaultCLIRedirectURI, "OAuth redirect URI for the local login server")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached Spotify token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := auth.DefaultTokenCache()
			if err != nil {
				return err
			}
			if err := cache.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
