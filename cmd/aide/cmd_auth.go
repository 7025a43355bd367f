package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/aidekit/aide/internal/config"
	"github.com/aidekit/aide/internal/mailer"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with a Google account for Gmail sending",
		Long: `Run the interactive Google OAuth flow and save the token.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET in the environment
(or a .env file). The token is written to GOOGLE_TOKEN_FILE
(default token.json).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Gmail.ClientID == "" || cfg.Gmail.ClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			oauthCfg := cfg.Gmail.OAuthConfig()
			authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := oauthCfg.Exchange(cmd.Context(), authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			if err := mailer.SaveToken(cfg.Gmail.TokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Printf("Token saved to %s\n", cfg.Gmail.TokenFile)
			return nil
		},
	}
}
