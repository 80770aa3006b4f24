// Package setup registers clockify-mcp with MCP-capable agents.
//
//   - Claude Desktop, Gemini CLI, Cursor: merge an mcpServers entry into the
//     agent's JSON config, keeping every other key
//   - Claude Code: runs `claude mcp add`
package setup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ServerName is the key clockify-mcp is registered under.
const ServerName = "clockify"

// Agent represents a supported MCP client.
type Agent struct {
	Name        string
	Description string
	ConfigPath  string // resolved at runtime (display only for claude-code)
}

// Options describe the server entry written for the agent.
type Options struct {
	// Command is the clockify-mcp binary. Empty means the running executable.
	Command string
	// APIKey, when set, is written into the entry's environment.
	APIKey string
	// Tools is passed through as --tools.
	Tools string
}

// Result holds the outcome of an installation.
type Result struct {
	Agent       string
	Destination string
	Changed     bool
}

type serverEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

var (
	runtimeGOOS    = runtime.GOOS
	userHomeDir    = os.UserHomeDir
	getenv         = os.Getenv
	executablePath = os.Executable
	lookPathFn     = exec.LookPath
	runCommand     = func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).CombinedOutput()
	}
	readFileFn          = os.ReadFile
	writeFileFn         = os.WriteFile
	jsonMarshalIndentFn = json.MarshalIndent
)

// SupportedAgents returns the agents Install knows how to configure.
func SupportedAgents() []Agent {
	return []Agent{
		{
			Name:        "claude-desktop",
			Description: "Claude Desktop: mcpServers entry in claude_desktop_config.json",
			ConfigPath:  claudeDesktopConfigPath(),
		},
		{
			Name:        "claude-code",
			Description: "Claude Code: registered through `claude mcp add`",
			ConfigPath:  "managed by the claude CLI",
		},
		{
			Name:        "gemini-cli",
			Description: "Gemini CLI: mcpServers entry in settings.json",
			ConfigPath:  geminiConfigPath(),
		},
		{
			Name:        "cursor",
			Description: "Cursor: mcpServers entry in the global mcp.json",
			ConfigPath:  cursorConfigPath(),
		},
	}
}

// Install registers clockify-mcp with the given agent.
func Install(agentName string, opts Options) (*Result, error) {
	entry, err := buildEntry(opts)
	if err != nil {
		return nil, err
	}

	switch agentName {
	case "claude-desktop":
		return installJSON(agentName, claudeDesktopConfigPath(), entry)
	case "gemini-cli":
		return installJSON(agentName, geminiConfigPath(), entry)
	case "cursor":
		return installJSON(agentName, cursorConfigPath(), entry)
	case "claude-code":
		return installClaudeCode(entry)
	default:
		return nil, fmt.Errorf("unknown agent: %q (supported: claude-desktop, claude-code, gemini-cli, cursor)", agentName)
	}
}

func buildEntry(opts Options) (serverEntry, error) {
	command := strings.TrimSpace(opts.Command)
	if command == "" {
		exe, err := executablePath()
		if err != nil {
			return serverEntry{}, fmt.Errorf("resolve clockify-mcp binary: %w", err)
		}
		command = exe
	}

	entry := serverEntry{Command: command, Args: []string{"mcp"}}
	if tools := strings.TrimSpace(opts.Tools); tools != "" {
		entry.Args = append(entry.Args, "--tools", tools)
	}
	if key := strings.TrimSpace(opts.APIKey); key != "" {
		entry.Env = map[string]string{"CLOCKIFY_API_KEY": key}
	}
	return entry, nil
}

// ─── JSON config agents ──────────────────────────────────────────────────────

func installJSON(agent, path string, entry serverEntry) (*Result, error) {
	changed, err := injectMCPServer(path, entry)
	if err != nil {
		return nil, err
	}
	return &Result{Agent: agent, Destination: path, Changed: changed}, nil
}

// injectMCPServer sets mcpServers.clockify in the JSON file at path. A
// missing file is created. It reports false when the entry was already
// up to date.
func injectMCPServer(path string, entry serverEntry) (bool, error) {
	root := map[string]json.RawMessage{}

	data, err := readFileFn(path)
	switch {
	case err == nil:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &root); err != nil {
				return false, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := root["mcpServers"]; ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return false, fmt.Errorf("parse mcpServers in %s: %w", path, err)
		}
	}

	want, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode server entry: %w", err)
	}
	if existing, ok := servers[ServerName]; ok {
		var compact bytes.Buffer
		if json.Compact(&compact, existing) == nil && bytes.Equal(compact.Bytes(), want) {
			return false, nil
		}
	}

	servers[ServerName] = want
	encodedServers, err := json.Marshal(servers)
	if err != nil {
		return false, fmt.Errorf("encode mcpServers: %w", err)
	}
	root["mcpServers"] = encodedServers

	out, err := jsonMarshalIndentFn(root, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := writeFileFn(path, append(out, '\n'), 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// ─── Claude Code ─────────────────────────────────────────────────────────────

func installClaudeCode(entry serverEntry) (*Result, error) {
	claudeBin, err := lookPathFn("claude")
	if err != nil {
		return nil, fmt.Errorf("claude CLI not found in PATH: install Claude Code first")
	}

	args := []string{"mcp", "add", "--scope", "user"}
	for k, v := range entry.Env {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, ServerName, "--", entry.Command)
	args = append(args, entry.Args...)

	out, err := runCommand(claudeBin, args...)
	output := strings.TrimSpace(string(out))
	if err != nil && strings.Contains(output, "already exists") {
		// claude mcp add never overwrites, so replace the stale registration.
		out, err = runCommand(claudeBin, "mcp", "remove", "--scope", "user", ServerName)
		if err != nil {
			return nil, fmt.Errorf("claude mcp remove failed: %s", strings.TrimSpace(string(out)))
		}
		out, err = runCommand(claudeBin, args...)
		output = strings.TrimSpace(string(out))
	}
	if err != nil {
		return nil, fmt.Errorf("claude mcp add failed: %s", output)
	}

	return &Result{Agent: "claude-code", Destination: "claude mcp (user scope)", Changed: true}, nil
}

// ─── Platform paths ──────────────────────────────────────────────────────────

func claudeDesktopConfigPath() string {
	home, _ := userHomeDir()

	switch runtimeGOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		if appData := getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Claude", "claude_desktop_config.json")
		}
		return filepath.Join(home, "AppData", "Roaming", "Claude", "claude_desktop_config.json")
	default:
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json")
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func geminiConfigPath() string {
	home, _ := userHomeDir()
	return filepath.Join(home, ".gemini", "settings.json")
}

func cursorConfigPath() string {
	home, _ := userHomeDir()
	return filepath.Join(home, ".cursor", "mcp.json")
}
