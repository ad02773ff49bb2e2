// Package mcp provides the MCP (Model Context Protocol) server implementation.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// Server implements the MCP server using mark3labs/mcp-go.
type Server struct {
	server   *server.MCPServer
	provider ports.TimelineProvider
	ctx      context.Context
	cancel   context.CancelFunc
}

// Ensure Server implements ports.MCPHandler.
var _ ports.MCPHandler = (*Server)(nil)

// NewServer creates a new MCP server instance.
func NewServer(provider ports.TimelineProvider, version string) *Server {
	s := &Server{
		provider: provider,
	}

	s.server = server.NewMCPServer(
		"timeline",
		version,
		server.WithLogging(),
	)

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	// Tool: list_owners
	s.server.AddTool(
		mcp.NewTool(
			"list_owners",
			mcp.WithDescription("List every configured timetable owner with its status and current lesson"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListOwners,
	)

	// Tool: get_timeline
	s.server.AddTool(
		mcp.NewTool(
			"get_timeline",
			mcp.WithDescription("Get one owner's loaded day: every lesson slot and the current lesson"),
			mcp.WithString(
				"owner",
				mcp.Required(),
				mcp.Description("Owner id, id prefix or label"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetTimeline,
	)

	// Tool: list_events
	s.server.AddTool(
		mcp.NewTool(
			"list_events",
			mcp.WithDescription("List the pending scheduled wake-ups of an owner"),
			mcp.WithString(
				"owner",
				mcp.Required(),
				mcp.Description("Owner id, id prefix or label"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListEvents,
	)

	// Tool: refresh_timeline
	s.server.AddTool(
		mcp.NewTool(
			"refresh_timeline",
			mcp.WithDescription("Fetch the next usable day from the timetable provider and reschedule the owner"),
			mcp.WithString(
				"owner",
				mcp.Required(),
				mcp.Description("Owner id, id prefix or label"),
			),
		),
		s.handleRefreshTimeline,
	)

	// Tool: select_lesson
	s.server.AddTool(
		mcp.NewTool(
			"select_lesson",
			mcp.WithDescription("Move an owner's current lesson to a position of the loaded day"),
			mcp.WithString(
				"owner",
				mcp.Required(),
				mcp.Description("Owner id, id prefix or label"),
			),
			mcp.WithNumber(
				"index",
				mcp.Required(),
				mcp.Min(0),
				mcp.Description("Position in the day's sequence (lesson period minus one)"),
			),
		),
		s.handleSelectLesson,
	)
}

// Start begins serving MCP requests over stdio.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	return server.ServeStdio(s.server)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// IsRunning returns true if the server is active.
func (s *Server) IsRunning() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() == nil
}

func (s *Server) handleListOwners(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	states, err := s.provider.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}

	owners := make([]map[string]interface{}, 0, len(states))
	for _, state := range states {
		owners = append(owners, ownerSummary(state))
	}

	return jsonResult(map[string]interface{}{
		"owners": owners,
		"count":  len(owners),
	})
}

func (s *Server) handleGetTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := s.resolve(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(timelineView(state))
}

func (s *Server) handleListEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := s.resolve(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	events, err := s.provider.PendingEvents(ctx, state.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	list := make([]map[string]interface{}, 0, len(events))
	for _, ev := range events {
		item := map[string]interface{}{
			"id":      ev.ID,
			"kind":    string(ev.Kind),
			"fire_at": ev.FireAt.Format(time.RFC3339),
		}
		if ev.Kind == domain.EventAdvanceIndex {
			item["target_index"] = ev.TargetIndex
		}
		list = append(list, item)
	}

	return jsonResult(map[string]interface{}{
		"owner_id": state.OwnerID,
		"events":   list,
		"count":    len(list),
	})
}

func (s *Server) handleRefreshTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := s.resolve(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	refreshed, err := s.provider.RefreshTimeline(ctx, state.OwnerID)
	if err != nil {
		return mcp.NewToolResultError("refresh failed: " + err.Error()), nil
	}
	return jsonResult(timelineView(refreshed))
}

func (s *Server) handleSelectLesson(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := s.resolve(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index is required: " + err.Error()), nil
	}

	updated, err := s.provider.SelectLesson(ctx, state.OwnerID, index)
	if err != nil {
		return mcp.NewToolResultError("failed to select lesson: " + err.Error()), nil
	}
	return jsonResult(timelineView(updated))
}

// resolve looks up the owner argument. Lookup failures the caller can fix
// are returned as tool errors.
func (s *Server) resolve(ctx context.Context, request mcp.CallToolRequest) (*domain.TimelineState, *mcp.CallToolResult) {
	query, err := request.RequireString("owner")
	if err != nil {
		return nil, mcp.NewToolResultError("owner is required: " + err.Error())
	}

	state, err := s.provider.GetTimeline(ctx, query)
	switch {
	case errors.Is(err, domain.ErrOwnerNotFound), errors.Is(err, domain.ErrAmbiguousOwner):
		return nil, mcp.NewToolResultError(err.Error())
	case err != nil:
		return nil, mcp.NewToolResultErrorf("failed to get timeline: %v", err)
	}
	return state, nil
}

func ownerSummary(state *domain.TimelineState) map[string]interface{} {
	summary := map[string]interface{}{
		"owner_id":       state.OwnerID,
		"label":          state.Label,
		"status":         string(state.Status),
		"current_lesson": nil,
	}
	if state.Credentials != nil {
		summary["account"] = state.Credentials.DisplayName()
	}
	if state.Status == domain.StatusReady {
		summary["day"] = state.Day.Format("2006-01-02")
		if l := state.CurrentLesson(); l != nil {
			summary["current_lesson"] = lessonView(state.CurrentIndex, l)
		}
	}
	if state.LastError != "" {
		summary["last_error"] = state.LastError
	}
	return summary
}

func timelineView(state *domain.TimelineState) map[string]interface{} {
	view := ownerSummary(state)
	view["current_index"] = state.CurrentIndex

	slots := make([]interface{}, len(state.Lessons))
	for i, l := range state.Lessons {
		if l == nil {
			slots[i] = nil
			continue
		}
		slots[i] = lessonView(i, l)
	}
	view["lessons"] = slots
	return view
}

func lessonView(index int, l *domain.Lesson) map[string]interface{} {
	return map[string]interface{}{
		"index":   index,
		"period":  l.Period,
		"subject": l.ShortName,
		"start":   l.Start.String(),
		"end":     l.End.String(),
		"room":    l.Room,
		"teacher": l.Teacher,
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
