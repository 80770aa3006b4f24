package clockify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// projectPageSize is large enough that one page covers any real workspace.
const projectPageSize = 5000

// TimeEntryQuery selects a page of a user's entries. Start and End are
// forwarded exactly as given.
type TimeEntryQuery struct {
	WorkspaceID string
	UserID      string
	Start       string
	End         string
	Page        int
	PageSize    int
}

// TimeEntryInput is the body of a create or update call.
type TimeEntryInput struct {
	Description string
	Start       time.Time
	End         time.Time
	ProjectID   string
	TaskID      string
	Billable    bool
}

type timeEntryBody struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Billable    bool   `json:"billable"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	TaskID      string `json:"taskId,omitempty"`
}

func (in TimeEntryInput) body() timeEntryBody {
	return timeEntryBody{
		Start:       FormatInstant(in.Start),
		End:         FormatInstant(in.End),
		Billable:    in.Billable,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
	}
}

func (g *Gateway) CurrentUser(ctx context.Context) (User, error) {
	raw, err := g.Do(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return User{}, err
	}
	return NormalizeUser(raw)
}

func (g *Gateway) Workspaces(ctx context.Context) ([]Workspace, error) {
	raw, err := g.Do(ctx, http.MethodGet, "/workspaces", nil)
	if err != nil {
		return nil, err
	}
	return NormalizeWorkspaces(raw)
}

// Projects lists non-archived projects whose name matches name; an empty
// name matches every project.
func (g *Gateway) Projects(ctx context.Context, workspaceID, name string) ([]Project, error) {
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/projects" + query(
		"archived", "false",
		"page", "1",
		"page-size", strconv.Itoa(projectPageSize),
		"name", name,
	)
	raw, err := g.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return NormalizeProjects(raw)
}

func (g *Gateway) Tasks(ctx context.Context, workspaceID, projectID string) ([]Task, error) {
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/projects/" + url.PathEscape(projectID) + "/tasks"
	raw, err := g.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return NormalizeTasks(raw)
}

func (g *Gateway) TimeEntries(ctx context.Context, q TimeEntryQuery) (json.RawMessage, error) {
	path := "/workspaces/" + url.PathEscape(q.WorkspaceID) + "/user/" + url.PathEscape(q.UserID) + "/time-entries" + query(
		"start", q.Start,
		"end", q.End,
		"page", strconv.Itoa(q.Page),
		"page-size", strconv.Itoa(q.PageSize),
	)
	raw, err := g.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return NormalizeTimeEntries(raw)
}

func (g *Gateway) CreateTimeEntry(ctx context.Context, workspaceID string, in TimeEntryInput) (TimeEntry, error) {
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/time-entries"
	raw, err := g.Do(ctx, http.MethodPost, path, in.body())
	if err != nil {
		return TimeEntry{}, err
	}
	return NormalizeTimeEntry(raw)
}

func (g *Gateway) UpdateTimeEntry(ctx context.Context, workspaceID, entryID string, in TimeEntryInput) (TimeEntry, error) {
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/time-entries/" + url.PathEscape(entryID)
	raw, err := g.Do(ctx, http.MethodPut, path, in.body())
	if err != nil {
		return TimeEntry{}, err
	}
	return NormalizeTimeEntry(raw)
}

// DeleteTimeEntry returns DeleteAcknowledgement on success.
func (g *Gateway) DeleteTimeEntry(ctx context.Context, workspaceID, entryID string) (string, error) {
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/time-entries/" + url.PathEscape(entryID)
	if _, err := g.Do(ctx, http.MethodDelete, path, nil); err != nil {
		return "", err
	}
	return DeleteAcknowledgement, nil
}

// query builds "?k1=v1&k2=v2" keeping the given key order, which
// url.Values.Encode would sort.
func query(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pairs[i]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pairs[i+1]))
	}
	return b.String()
}
