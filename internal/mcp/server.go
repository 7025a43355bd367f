// Package mcp exposes aide's records over the Model Context Protocol
// so AI tools can inspect meetings, emails, and pending approvals. All
// tools are read-only; mutations go through the HTTP API or the chat
// loop.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/session"
	"github.com/aidekit/aide/internal/store"
)

// Config holds MCP server configuration.
type Config struct {
	// Name is the server name reported to MCP clients.
	Name string
	// Version is the server version reported to MCP clients.
	Version string
	// Root is the directory under which the data directory lives.
	Root string
}

// Server wraps the MCP SDK server plus the record store it serves.
type Server struct {
	server *mcp.Server
	store  *store.Store
	coord  *session.Coordinator
	root   string
	closed bool
}

// NewServer creates the MCP server and registers all tools. The data
// directory is created if missing. coord may be nil; the approvals
// tool then reports no session.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	dataDir, err := store.EnsureDataDir(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		store:  st,
		root:   cfg.Root,
	}
	s.registerTools()
	return s, nil
}

// AttachCoordinator wires a live session coordinator so the approvals
// tool can report pending actions.
func (s *Server) AttachCoordinator(coord *session.Coordinator) {
	s.coord = coord
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases resources. Safe to call more than once.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

type meetingsIn struct {
	Status string `json:"status,omitempty" jsonschema:"filter by status: Pending, Approved, or Rejected"`
}

type meetingsOut struct {
	Meetings []models.Meeting `json:"meetings"`
	Count    int              `json:"count"`
}

type emailsIn struct {
	Status string `json:"status,omitempty" jsonschema:"filter by delivery status: sent, rejected, failed, pending, no_credentials"`
}

type emailsOut struct {
	Emails []models.EmailRecord `json:"emails"`
	Count  int                  `json:"count"`
}

type statsOut struct {
	Meetings models.MeetingStats `json:"meetings"`
	Emails   models.EmailStats   `json:"emails"`
}

type approvalsOut struct {
	Paused      bool              `json:"paused"`
	InterruptID string            `json:"interrupt_id,omitempty"`
	Actions     []pendingAction   `json:"actions,omitempty"`
	Decisions   map[string]string `json:"decisions,omitempty"`
}

type pendingAction struct {
	Index    int            `json:"index"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "aide_meetings",
		Description: "List tracked meetings, optionally filtered by status (Pending, Approved, Rejected).",
	}, s.listMeetings)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "aide_emails",
		Description: "List recorded emails, optionally filtered by delivery status.",
	}, s.listEmails)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "aide_stats",
		Description: "Summarize meeting and email counts by status and source.",
	}, s.getStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "aide_approvals",
		Description: "Show actions currently paused for human approval, if any.",
	}, s.listApprovals)
}

func (s *Server) listMeetings(ctx context.Context, req *mcp.CallToolRequest, in meetingsIn) (*mcp.CallToolResult, meetingsOut, error) {
	meetings := s.store.Meetings()
	if in.Status != "" {
		want := models.MeetingStatus(in.Status)
		filtered := meetings[:0:0]
		for _, m := range meetings {
			if strings.EqualFold(string(m.Status), string(want)) {
				filtered = append(filtered, m)
			}
		}
		meetings = filtered
	}
	return nil, meetingsOut{Meetings: meetings, Count: len(meetings)}, nil
}

func (s *Server) listEmails(ctx context.Context, req *mcp.CallToolRequest, in emailsIn) (*mcp.CallToolResult, emailsOut, error) {
	emails := s.store.Emails()
	if in.Status != "" {
		filtered := emails[:0:0]
		for _, e := range emails {
			if strings.EqualFold(string(e.Status), in.Status) {
				filtered = append(filtered, e)
			}
		}
		emails = filtered
	}
	return nil, emailsOut{Emails: emails, Count: len(emails)}, nil
}

func (s *Server) getStats(ctx context.Context, req *mcp.CallToolRequest, in struct{}) (*mcp.CallToolResult, statsOut, error) {
	return nil, statsOut{
		Meetings: s.store.MeetingStats(),
		Emails:   s.store.EmailStats(),
	}, nil
}

func (s *Server) listApprovals(ctx context.Context, req *mcp.CallToolRequest, in struct{}) (*mcp.CallToolResult, approvalsOut, error) {
	if s.coord == nil {
		return nil, approvalsOut{Paused: false}, nil
	}
	interruptID, requests, decisions, ok := s.coord.Pending()
	if !ok {
		return nil, approvalsOut{Paused: false}, nil
	}
	out := approvalsOut{
		Paused:      true,
		InterruptID: interruptID,
		Decisions:   make(map[string]string, len(decisions)),
	}
	for i, r := range requests {
		out.Actions = append(out.Actions, pendingAction{Index: i, ToolName: r.ToolName, Args: r.Args})
	}
	for i, d := range decisions {
		out.Decisions[strconv.Itoa(i)] = string(d)
	}
	return nil, out, nil
}
