// Command clockify-mcp serves the Clockify time-tracking API as MCP tools.
//
//	clockify-mcp                 stdio transport (same as `clockify-mcp mcp`)
//	clockify-mcp serve           streamable HTTP transport on /mcp
//	clockify-mcp tools           print the tools that would be registered
//	clockify-mcp setup [agent]   register the server with an MCP client
//	clockify-mcp version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alanbuscaglia/clockify-mcp/internal/clockify"
	"github.com/alanbuscaglia/clockify-mcp/internal/config"
	"github.com/alanbuscaglia/clockify-mcp/internal/mcp"
	"github.com/alanbuscaglia/clockify-mcp/internal/server"
	"github.com/alanbuscaglia/clockify-mcp/internal/setup"
	"github.com/alanbuscaglia/clockify-mcp/internal/telemetry"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var version = "dev"

// Seams swapped out by tests.
var (
	exitFunc = os.Exit

	loadConfig     = config.Load
	setupTelemetry = telemetry.Setup
	newGateway     = clockify.NewGateway

	newMCPServerWithTools = func(c mcp.Client, cfg mcp.Config, allowlist map[string]bool) *mcpserver.MCPServer {
		return mcp.NewServerWithTools(c, cfg, allowlist)
	}
	serveMCP = mcpserver.ServeStdio

	newHTTPServer = server.New
	startHTTP     = func(s *server.Server) error { return s.Start() }

	setupInstall         = setup.Install
	setupSupportedAgents = setup.SupportedAgents
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		fatal(err)
	}
}

func execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type rootFlags struct {
	configPath string
	tools      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "clockify-mcp",
		Short: "Clockify time tracking as MCP tools",
		Long: "clockify-mcp exposes Clockify users, workspaces, projects, tasks and time entries\n" +
			"as Model Context Protocol tools. With no subcommand it serves over stdio.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.tools, "tools", "", "comma separated tools or profiles (read, write, all) to register")

	root.AddCommand(
		newMCPCmd(flags),
		newServeCmd(flags),
		newToolsCmd(flags),
		newSetupCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, flags)
		},
	}
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			if cmd.Flags().Changed("host") {
				rt.cfg.HTTP.Host = host
			}
			if cmd.Flags().Changed("port") {
				rt.cfg.HTTP.Port = port
			}

			srv := newHTTPServer(rt.mcp, server.Options{
				Host:    rt.cfg.HTTP.Host,
				Port:    rt.cfg.HTTP.Port,
				Version: version,
				Tools:   mcp.SelectTools(rt.allowlist),
				Logger:  rt.logger,
			})
			return startHTTP(srv)
		},
	}
	cmd.Flags().StringVar(&host, "host", server.DefaultHost, "address to bind")
	cmd.Flags().IntVar(&port, "port", config.DefaultHTTPPort, "port to listen on")
	return cmd
}

func newToolsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server would register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			for _, name := range mcp.SelectTools(mcp.ParseAllowlist(toolList(flags, cfg))) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newSetupCmd(flags *rootFlags) *cobra.Command {
	var (
		apiKey  string
		command string
	)
	cmd := &cobra.Command{
		Use:   "setup [agent]",
		Short: "Register clockify-mcp with an MCP client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(out, "Supported agents:")
				for _, agent := range setupSupportedAgents() {
					fmt.Fprintf(out, "  %-15s %s\n", agent.Name, agent.Description)
					fmt.Fprintf(out, "  %-15s %s\n", "", agent.ConfigPath)
				}
				fmt.Fprintln(out, "\nRun: clockify-mcp setup <agent>")
				return nil
			}

			result, err := setupInstall(args[0], setup.Options{
				Command: command,
				APIKey:  apiKey,
				Tools:   flags.tools,
			})
			if err != nil {
				return err
			}
			if !result.Changed {
				fmt.Fprintf(out, "%s already configured (%s)\n", result.Agent, result.Destination)
				return nil
			}
			fmt.Fprintf(out, "Installed clockify-mcp for %s\n", result.Agent)
			fmt.Fprintf(out, "  → %s\n", result.Destination)
			if apiKey == "" {
				fmt.Fprintln(out, "\nSet CLOCKIFY_API_KEY in the agent's environment or a config file before calling tools.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "write CLOCKIFY_API_KEY into the agent config")
	cmd.Flags().StringVar(&command, "command", "", "clockify-mcp binary to launch (default: this executable)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clockify-mcp %s\n", version)
		},
	}
}

// ─── Wiring ──────────────────────────────────────────────────────────────────

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	allowlist map[string]bool
	mcp       *mcpserver.MCPServer
	telemetry *telemetry.Providers
}

func (rt *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		rt.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func bootstrap(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, path, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	// stdout belongs to the stdio transport.
	logger := cfg.Logger(os.Stderr)
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	providers, err := setupTelemetry(ctx, telemetry.Options{
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		logger.Warn("CLOCKIFY_API_KEY is not set; tool calls will fail until it is configured")
	}

	gw := newGateway(clockify.Options{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		UserAgent: "clockify-mcp/" + version,
		Timeout:   cfg.HTTPTimeout,
		Logger:    logger,
		Tracer:    providers.Tracer,
	})

	allowlist := mcp.ParseAllowlist(toolList(flags, cfg))
	srv := newMCPServerWithTools(gw, mcp.Config{
		Name:     "clockify-mcp",
		Version:  version,
		Logger:   logger,
		Observer: providers.Observer,
		Location: loc,
	}, allowlist)

	return &app{
		cfg:       cfg,
		logger:    logger,
		allowlist: allowlist,
		mcp:       srv,
		telemetry: providers,
	}, nil
}

func runMCP(cmd *cobra.Command, flags *rootFlags) error {
	rt, err := bootstrap(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	rt.logger.Info("serving MCP over stdio", "tools", len(mcp.SelectTools(rt.allowlist)))
	errLog := slog.NewLogLogger(rt.logger.Handler(), slog.LevelError)
	if err := serveMCP(rt.mcp, mcpserver.WithErrorLogger(errLog)); err != nil {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// toolList prefers --tools over the config file and environment.
func toolList(flags *rootFlags, cfg config.Config) []string {
	if flags.tools != "" {
		return config.SplitList(flags.tools)
	}
	return cfg.Tools
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "clockify-mcp: %s\n", err)
	exitFunc(1)
}
