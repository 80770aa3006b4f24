// Package mcp implements the Model Context Protocol server for clockify-mcp.
//
// Each Clockify operation is exposed as a tool. Handlers validate their
// arguments, call the gateway, and render the normalized payload as JSON
// text. Failures come back as "Error: <message>" tool results so the calling
// assistant always gets a response it can read.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanbuscaglia/clockify-mcp/internal/clockify"
	"github.com/alanbuscaglia/clockify-mcp/internal/telemetry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client is the subset of *clockify.Gateway the tools need.
type Client interface {
	CurrentUser(ctx context.Context) (clockify.User, error)
	Workspaces(ctx context.Context) ([]clockify.Workspace, error)
	Projects(ctx context.Context, workspaceID, name string) ([]clockify.Project, error)
	Tasks(ctx context.Context, workspaceID, projectID string) ([]clockify.Task, error)
	TimeEntries(ctx context.Context, q clockify.TimeEntryQuery) (json.RawMessage, error)
	CreateTimeEntry(ctx context.Context, workspaceID string, in clockify.TimeEntryInput) (clockify.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, workspaceID, entryID string, in clockify.TimeEntryInput) (clockify.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, workspaceID, entryID string) (string, error)
}

// Config carries the server identity and the ambient dependencies shared by
// every handler. Zero values are usable.
type Config struct {
	Name     string
	Version  string
	Logger   *slog.Logger
	Observer *telemetry.ToolObserver

	// Location is the zone start/end times without an offset are read in.
	Location *time.Location
}

const (
	defaultPage     = 1
	defaultPageSize = 100
	maxPageSize     = 5000
)

// Tool names, in registration order.
const (
	ToolGetUser         = "get-clockify-user"
	ToolListWorkspaces  = "list-clockify-workspaces"
	ToolListProjects    = "list-clockify-projects"
	ToolListTasks       = "list-clockify-tasks"
	ToolListTimeEntries = "list-clockify-time-entries"
	ToolCreateTimeEntry = "create-clockify-time-entry"
	ToolUpdateTimeEntry = "update-clockify-time-entry"
	ToolDeleteTimeEntry = "delete-clockify-time-entry"
)

// ToolNames lists every tool the server can register.
var ToolNames = []string{
	ToolGetUser,
	ToolListWorkspaces,
	ToolListProjects,
	ToolListTasks,
	ToolListTimeEntries,
	ToolCreateTimeEntry,
	ToolUpdateTimeEntry,
	ToolDeleteTimeEntry,
}

// ProfileRead and ProfileWrite are allowlist shorthands for tool groups.
var (
	ProfileRead = []string{
		ToolGetUser,
		ToolListWorkspaces,
		ToolListProjects,
		ToolListTasks,
		ToolListTimeEntries,
	}
	ProfileWrite = []string{
		ToolCreateTimeEntry,
		ToolUpdateTimeEntry,
		ToolDeleteTimeEntry,
	}
)

// ParseAllowlist turns tool names and profile names into a set. It returns
// nil, meaning every tool, when items is empty or contains "all". Unknown
// names are kept and simply never match.
func ParseAllowlist(items []string) map[string]bool {
	allow := make(map[string]bool)
	for _, item := range items {
		switch name := strings.ToLower(strings.TrimSpace(item)); name {
		case "":
		case "all":
			return nil
		case "read":
			for _, t := range ProfileRead {
				allow[t] = true
			}
		case "write":
			for _, t := range ProfileWrite {
				allow[t] = true
			}
		default:
			allow[name] = true
		}
	}
	if len(allow) == 0 {
		return nil
	}
	return allow
}

// SelectTools returns the names an allowlist admits, in registration order.
func SelectTools(allowlist map[string]bool) []string {
	var out []string
	for _, name := range ToolNames {
		if allowlist == nil || allowlist[name] {
			out = append(out, name)
		}
	}
	return out
}

// NewServer registers every tool.
func NewServer(c Client, cfg Config) *server.MCPServer {
	return NewServerWithTools(c, cfg, nil)
}

// NewServerWithTools registers only the tools in allowlist; nil registers all.
func NewServerWithTools(c Client, cfg Config, allowlist map[string]bool) *server.MCPServer {
	cfg = cfg.withDefaults()

	srv := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	registerTools(srv, c, cfg, allowlist)
	return srv
}

func (cfg Config) withDefaults() Config {
	if cfg.Name == "" {
		cfg.Name = "clockify-mcp"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return cfg
}

func registerTools(srv *server.MCPServer, c Client, cfg Config, allowlist map[string]bool) {
	add := func(tool mcp.Tool, h server.ToolHandlerFunc) {
		if allowlist != nil && !allowlist[tool.Name] {
			return
		}
		srv.AddTool(tool, wrap(tool.Name, cfg, h))
	}

	// ─── get-clockify-user ───────────────────────────────────────────
	add(
		mcp.NewTool(ToolGetUser,
			mcp.WithDescription("Get the Clockify user that owns the configured API key, including the active and default workspace IDs."),
		),
		handleGetUser(c),
	)

	// ─── list-clockify-workspaces ────────────────────────────────────
	add(
		mcp.NewTool(ToolListWorkspaces,
			mcp.WithDescription("List the Clockify workspaces the user belongs to."),
		),
		handleListWorkspaces(c),
	)

	// ─── list-clockify-projects ──────────────────────────────────────
	add(
		mcp.NewTool(ToolListProjects,
			mcp.WithDescription("List non-archived projects in a workspace, optionally filtered by name."),
			mcp.WithString("workspaceId",
				mcp.Required(),
				mcp.Description("Workspace ID"),
			),
			mcp.WithString("name",
				mcp.Description("Filter projects by name (default: all projects)"),
				mcp.DefaultString(""),
			),
		),
		handleListProjects(c),
	)

	// ─── list-clockify-tasks ─────────────────────────────────────────
	add(
		mcp.NewTool(ToolListTasks,
			mcp.WithDescription("List the tasks of a project."),
			mcp.WithString("workspaceId",
				mcp.Required(),
				mcp.Description("Workspace ID"),
			),
			mcp.WithString("projectId",
				mcp.Required(),
				mcp.Description("Project ID"),
			),
		),
		handleListTasks(c),
	)

	// ─── list-clockify-time-entries ──────────────────────────────────
	add(
		mcp.NewTool(ToolListTimeEntries,
			mcp.WithDescription("List a user's time entries between two instants. The raw Clockify payload is returned."),
			mcp.WithString("workspaceId",
				mcp.Required(),
				mcp.Description("Workspace ID"),
			),
			mcp.WithString("userId",
				mcp.Required(),
				mcp.Description("User ID (see get-clockify-user)"),
			),
			mcp.WithString("start",
				mcp.Required(),
				mcp.Description("Range start as an ISO 8601 instant, e.g. 2024-01-01T00:00:00Z"),
			),
			mcp.WithString("end",
				mcp.Required(),
				mcp.Description("Range end as an ISO 8601 instant, e.g. 2024-01-31T23:59:59Z"),
			),
			mcp.WithNumber("page",
				mcp.Description("Page number, starting at 1 (default: 1)"),
				mcp.DefaultNumber(defaultPage),
			),
			mcp.WithNumber("pageSize",
				mcp.Description("Entries per page, 1 to 5000 (default: 100)"),
				mcp.DefaultNumber(defaultPageSize),
			),
		),
		handleListTimeEntries(c),
	)

	// ─── create-clockify-time-entry ──────────────────────────────────
	add(
		mcp.NewTool(ToolCreateTimeEntry,
			mcp.WithDescription("Create a time entry. start and end are read in the server's local time zone unless they carry an offset."),
			mcp.WithString("workspaceId",
				mcp.Required(),
				mcp.Description("Workspace ID"),
			),
			mcp.WithString("description",
				mcp.Required(),
				mcp.Description("What was worked on"),
			),
			mcp.WithString("start",
				mcp.Required(),
				mcp.Description("Start time, e.g. 2024-01-01T09:00:00"),
			),
			mcp.WithString("end",
				mcp.Required(),
				mcp.Description("End time, e.g. 2024-01-01T17:00:00"),
			),
			mcp.WithString("projectId",
				mcp.Required(),
				mcp.Description("Project ID"),
			),
			mcp.WithString("taskId",
				mcp.Description("Task ID within the project (optional)"),
			),
			mcp.WithBoolean("billable",
				mcp.Description("Whether the entry is billable (default: true)"),
				mcp.DefaultBool(true),
			),
		),
		handleCreateTimeEntry(c, cfg.Location),
	)

	// ─── update-clockify-time-entry ──────────────────────────────────
	add(
		mcp.NewTool(ToolUpdateTimeEntry,
			mcp.WithDescription("Replace an existing time entry. All fields are sent; omitted optional fields take their defaults."),
			mcp.WithString("timeEntryId",
				mcp.Required(),
				mcp.Description("Time entry ID"),
			),
			mcp.WithString("workspaceId",
				mcp.Required(),
				mcp.Description("Workspace ID"),
			),
			mcp.WithString("description",
				mcp.Required(),
				mcp.Description("What was worked on"),
			),
			mcp.WithString("start",
				mcp.Required(),
				mcp.Description("Start time, e.g. 2024-01-01T09:00:00"),
			),
			mcp.WithString("end",
				mcp.Required(),
				mcp.Description("End time, e.g. 2024-01-01T17:00:00"),
			),
			mcp.WithString("projectId",
				mcp.Required(),
				mcp.Description("Project ID"),
			),
			mcp.WithString("taskId",
				mcp.Description("Task ID within the project (optional)"),
			),
			mcp.WithBoolean("billable",
				mcp.Description("Whether the entry is billable (default: true)"),
				mcp.DefaultBool(true),
			),
		),
		handleUpdateTimeEntry(c, cfg.Location),
	)

	// ─── delete-clockify-time-entry ──────────────────────────────────
	add(
		mcp.NewTool(ToolDeleteTimeEntry,
			mcp.WithDescription("Delete a time entry."),
			mcp.WithString("timeEntryId",
				mcp.Required(),
				mcp.Description("Time entry ID"),
			),
			mcp.WithString("workspaceId",
				mcp.Required(),
				mcp.Description("Workspace ID"),
			),
		),
		handleDeleteTimeEntry(c),
	)
}

// ─── Tool Handlers ───────────────────────────────────────────────────────────

func handleGetUser(c Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := c.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResult(user)
	}
}

func handleListWorkspaces(c Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspaces, err := c.Workspaces(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResult(workspaces)
	}
}

func handleListProjects(c Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspaceID, err := stringArg(req, "workspaceId")
		if err != nil {
			return nil, err
		}
		name, err := optionalStringArg(req, "name", "")
		if err != nil {
			return nil, err
		}

		projects, err := c.Projects(ctx, workspaceID, name)
		if err != nil {
			return nil, err
		}
		return jsonResult(projects)
	}
}

func handleListTasks(c Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspaceID, err := stringArg(req, "workspaceId")
		if err != nil {
			return nil, err
		}
		projectID, err := stringArg(req, "projectId")
		if err != nil {
			return nil, err
		}

		tasks, err := c.Tasks(ctx, workspaceID, projectID)
		if err != nil {
			return nil, err
		}
		return jsonResult(tasks)
	}
}

func handleListTimeEntries(c Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := clockify.TimeEntryQuery{}
		var err error
		if q.WorkspaceID, err = stringArg(req, "workspaceId"); err != nil {
			return nil, err
		}
		if q.UserID, err = stringArg(req, "userId"); err != nil {
			return nil, err
		}
		if q.Start, err = stringArg(req, "start"); err != nil {
			return nil, err
		}
		if q.End, err = stringArg(req, "end"); err != nil {
			return nil, err
		}
		if q.Page, err = intArg(req, "page", defaultPage, 1, math.MaxInt32); err != nil {
			return nil, err
		}
		if q.PageSize, err = intArg(req, "pageSize", defaultPageSize, 1, maxPageSize); err != nil {
			return nil, err
		}

		entries, err := c.TimeEntries(ctx, q)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(entries)), nil
	}
}

func handleCreateTimeEntry(c Client, loc *time.Location) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspaceID, err := stringArg(req, "workspaceId")
		if err != nil {
			return nil, err
		}
		in, err := timeEntryInput(req, loc)
		if err != nil {
			return nil, err
		}

		entry, err := c.CreateTimeEntry(ctx, workspaceID, in)
		if err != nil {
			return nil, err
		}
		return jsonResult(entry)
	}
}

func handleUpdateTimeEntry(c Client, loc *time.Location) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entryID, err := stringArg(req, "timeEntryId")
		if err != nil {
			return nil, err
		}
		workspaceID, err := stringArg(req, "workspaceId")
		if err != nil {
			return nil, err
		}
		in, err := timeEntryInput(req, loc)
		if err != nil {
			return nil, err
		}

		entry, err := c.UpdateTimeEntry(ctx, workspaceID, entryID, in)
		if err != nil {
			return nil, err
		}
		return jsonResult(entry)
	}
}

func handleDeleteTimeEntry(c Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entryID, err := stringArg(req, "timeEntryId")
		if err != nil {
			return nil, err
		}
		workspaceID, err := stringArg(req, "workspaceId")
		if err != nil {
			return nil, err
		}

		msg, err := c.DeleteTimeEntry(ctx, workspaceID, entryID)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(msg), nil
	}
}

// timeEntryInput reads the fields shared by create and update. All string
// arguments are checked before any date is parsed.
func timeEntryInput(req mcp.CallToolRequest, loc *time.Location) (clockify.TimeEntryInput, error) {
	var in clockify.TimeEntryInput

	description, err := stringArg(req, "description")
	if err != nil {
		return in, err
	}
	start, err := stringArg(req, "start")
	if err != nil {
		return in, err
	}
	end, err := stringArg(req, "end")
	if err != nil {
		return in, err
	}
	projectID, err := stringArg(req, "projectId")
	if err != nil {
		return in, err
	}
	taskID, err := optionalStringArg(req, "taskId", "")
	if err != nil {
		return in, err
	}
	billable, err := boolArg(req, "billable", true)
	if err != nil {
		return in, err
	}

	startAt, err := clockify.ParseLocalTime("start", start, loc)
	if err != nil {
		return in, err
	}
	endAt, err := clockify.ParseLocalTime("end", end, loc)
	if err != nil {
		return in, err
	}

	return clockify.TimeEntryInput{
		Description: description,
		Start:       startAt,
		End:         endAt,
		ProjectID:   projectID,
		TaskID:      strings.TrimSpace(taskID),
		Billable:    billable,
	}, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// stringArg returns a required, non-blank string argument.
func stringArg(req mcp.CallToolRequest, key string) (string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return "", clockify.NewValidationError(key, "is required")
	}
	s, ok := raw.(string)
	if !ok {
		return "", clockify.NewValidationError(key, "must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return "", clockify.NewValidationError(key, "must not be empty")
	}
	return s, nil
}

func optionalStringArg(req mcp.CallToolRequest, key, defaultVal string) (string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", clockify.NewValidationError(key, "must be a string")
	}
	return s, nil
}

// intArg reads an optional whole number in [min, max]. JSON numbers arrive
// as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal, min, max int) (int, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal, nil
	}

	var n int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, clockify.NewValidationError(key, "must be an integer")
		}
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	default:
		return 0, clockify.NewValidationError(key, "must be an integer")
	}

	if n < min || n > max {
		return 0, clockify.NewValidationError(key, rangeReason(min, max))
	}
	return n, nil
}

func rangeReason(min, max int) string {
	if max == math.MaxInt32 {
		return "must be at least " + strconv.Itoa(min)
	}
	return "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) (bool, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, clockify.NewValidationError(key, "must be a boolean")
	}
	return b, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
