package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aidekit/aide/internal/audit"
	"github.com/aidekit/aide/internal/classify"
	"github.com/aidekit/aide/internal/config"
	"github.com/aidekit/aide/internal/engine"
	"github.com/aidekit/aide/internal/engine/scripted"
	"github.com/aidekit/aide/internal/events"
	"github.com/aidekit/aide/internal/httpapi"
	"github.com/aidekit/aide/internal/mailer"
	"github.com/aidekit/aide/internal/recorder"
	"github.com/aidekit/aide/internal/session"
	"github.com/aidekit/aide/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the aide HTTP API.

Configuration comes from the environment (optionally via a .env file):
SMTP_* and GOOGLE_* select email providers, AIDE_LISTEN_ADDR the bind
address, AIDE_DATA_DIR the state directory.

With --demo the server runs against a scripted agent engine that
replays a fixed conversation, useful for trying the API without a
planning engine attached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			demo, _ := cmd.Flags().GetBool("demo")
			addr, _ := cmd.Flags().GetString("addr")

			cfg := config.Load()
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger := newLogger(cfg.LogLevel)

			var eng engine.Engine
			if demo {
				eng = demoEngine()
				logger.Info("running with the scripted demo engine")
			} else {
				return fmt.Errorf("no agent engine configured; run with --demo or attach an engine build")
			}

			st, err := openStore(cfg.DataDir, logger)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			auditLog, err := audit.Open(filepath.Join(st.Dir(), store.AuditDBFile), logger)
			if err != nil {
				return fmt.Errorf("failed to open audit log: %w", err)
			}
			defer auditLog.Close()

			keywords, err := classify.LoadKeywords(cfg.KeywordsFile)
			if err != nil {
				return fmt.Errorf("failed to load keywords: %w", err)
			}
			cl := classify.New(keywords)

			sender := buildSenderChain(cmd.Context(), cfg, logger)
			rec := recorder.New(st, sender, logger)
			norm := events.New(eng, cl, logger)
			coord := session.New(norm, rec, st, cl, logger, session.WithAuditor(auditLog))

			srv := httpapi.New(coord, st, auditLog, logger)
			return srv.Run(cfg.ListenAddr)
		},
	}

	cmd.Flags().Bool("demo", false, "Use the scripted demo engine")
	cmd.Flags().String("addr", "", "Listen address (overrides AIDE_LISTEN_ADDR)")
	return cmd
}

// buildSenderChain assembles the provider fallback chain: Gmail first
// when configured, then SMTP. An empty chain reports missing
// credentials on use, which the recorder records as no_credentials.
func buildSenderChain(ctx context.Context, cfg config.Config, logger *slog.Logger) mailer.Sender {
	var chain mailer.Chain

	if cfg.Gmail.Configured() {
		gmail, err := mailer.NewGmailSender(ctx, cfg.Gmail, logger)
		if err != nil {
			logger.Warn("gmail sender unavailable", "error", err)
		} else {
			chain = append(chain, gmail)
		}
	}
	if cfg.SMTP.Configured() {
		chain = append(chain, mailer.NewSMTPSender(cfg.SMTP, logger))
	}
	if len(chain) == 0 {
		logger.Info("no email provider configured; sends will be recorded as no_credentials")
	}
	return chain
}

// demoEngine scripts a short scheduling conversation ending in an
// approval pause, so the full chat / approve / resume loop can be
// exercised without a real engine.
func demoEngine() engine.Engine {
	eng := scripted.New()
	eng.Enqueue(
		scripted.AssistantStep("I'll schedule that meeting now.", engine.ToolCall{
			ID:   "demo_call_1",
			Name: "create_calendar_event",
			Args: map[string]any{
				"title":        "Demo planning meeting",
				"start":        "2026-09-07T14:00",
				"end":          "2026-09-07T15:00",
				"participants": []any{"demo@example.com"},
			},
		}),
		scripted.ToolStep("create_calendar_event", "demo_call_1", "Success: event created"),
		scripted.InterruptStep("demo_interrupt_1",
			engine.ActionRequest{ToolName: "send_email", Args: map[string]any{
				"to":      "demo@example.com",
				"subject": "Meeting Invitation: Demo planning meeting",
				"body":    "You are invited to the demo planning meeting.",
			}},
		),
	)
	eng.OnResume("demo_interrupt_1",
		scripted.AssistantStep("All set. The meeting is scheduled and the invitation was handled."),
	)
	return eng
}
