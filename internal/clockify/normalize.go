package clockify

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DeleteAcknowledgement is returned for every successful delete; the
// upstream body is never inspected.
const DeleteAcknowledgement = "Time entry deleted successfully"

// ─── Normalized shapes ──────────────────────────────────────────────────────

type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	ActiveWorkspace  string `json:"activeWorkspace"`
	DefaultWorkspace string `json:"defaultWorkspace"`
}

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
	Billable    bool   `json:"billable"`
}

type Task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
}

// TimeEntry is the reduced view of a created or updated entry. End is nil
// for a running timer.
type TimeEntry struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Start       string  `json:"start"`
	End         *string `json:"end"`
	ProjectID   string  `json:"projectId"`
}

// rawTimeEntry mirrors the parts of the upstream entry we read; start/end
// live under timeInterval.
type rawTimeEntry struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	ProjectID    string `json:"projectId"`
	TimeInterval struct {
		Start string  `json:"start"`
		End   *string `json:"end"`
	} `json:"timeInterval"`
}

// ─── Normalizers ────────────────────────────────────────────────────────────

func NormalizeUser(raw json.RawMessage) (User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func NormalizeWorkspaces(raw json.RawMessage) ([]Workspace, error) {
	return decodeList[Workspace](raw, "workspaces")
}

func NormalizeProjects(raw json.RawMessage) ([]Project, error) {
	return decodeList[Project](raw, "projects")
}

func NormalizeTasks(raw json.RawMessage) ([]Task, error) {
	return decodeList[Task](raw, "tasks")
}

// NormalizeTimeEntries passes the upstream list through untouched. It only
// checks that the payload is an array; a no-content reply stays `{}`.
func NormalizeTimeEntries(raw json.RawMessage) (json.RawMessage, error) {
	if noContent(raw) {
		return raw, nil
	}
	var probe []json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode time entries: %w", err)
	}
	return raw, nil
}

func NormalizeTimeEntry(raw json.RawMessage) (TimeEntry, error) {
	var e rawTimeEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return TimeEntry{}, fmt.Errorf("decode time entry: %w", err)
	}
	return TimeEntry{
		ID:          e.ID,
		Description: e.Description,
		Start:       e.TimeInterval.Start,
		End:         e.TimeInterval.End,
		ProjectID:   e.ProjectID,
	}, nil
}

// decodeList decodes an upstream array. No content and a JSON null both
// become an empty list so tools render [] rather than an error or null.
func decodeList[T any](raw json.RawMessage, what string) ([]T, error) {
	if noContent(raw) {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func noContent(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == emptyObject
}
