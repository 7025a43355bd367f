package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender delivers mail through the Gmail API using an OAuth token
// previously saved by the auth flow.
type GmailSender struct {
	service *gmail.Service
	logger  *slog.Logger
}

// GmailConfig holds the OAuth client settings and the token file to
// load.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
}

// Configured reports whether the OAuth client settings are present.
func (c GmailConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TokenFile != ""
}

// NewGmailSender builds a Gmail API sender. Returns ErrNoCredentials
// when the OAuth client or token file is absent.
func NewGmailSender(ctx context.Context, cfg GmailConfig, logger *slog.Logger) (*GmailSender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Configured() {
		return nil, ErrNoCredentials
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load gmail token: %w", ErrNoCredentials)
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailSender{service: service, logger: logger}, nil
}

// Send delivers one message via the authenticated account.
func (g *GmailSender) Send(ctx context.Context, to, subject, body string) error {
	raw := base64.URLEncoding.EncodeToString(buildMessage("me", to, subject, body))
	_, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		g.logger.Error("gmail send failed", "to", to, "error", err)
		return fmt.Errorf("gmail send: %w", err)
	}
	g.logger.Info("gmail sent", "to", to)
	return nil
}

// OAuthConfig returns the config used by the interactive auth flow.
func (c GmailConfig) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
	}
}

// SaveToken writes an OAuth token to the given file.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile reads a previously saved OAuth token.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	return token, nil
}
