// Werkstatt is a conversational agent with tool calling.
//
// It runs an interactive REPL backed by the Anthropic Messages API and
// a registry of local tools (web search, file writing, planning, and
// sub-task delegation). Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]); API
// credentials come from the environment.
//
// Usage:
//
//	werkstatt chat               Start the interactive REPL (default)
//	werkstatt ask <question>     Ask a single question and exit
//	werkstatt version            Print version and build information
//	werkstatt -o json version    Output version information as JSON
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/agentwerkstatt/werkstatt/internal/agent"
	"github.com/agentwerkstatt/werkstatt/internal/buildinfo"
	"github.com/agentwerkstatt/werkstatt/internal/config"
	"github.com/agentwerkstatt/werkstatt/internal/delegate"
	"github.com/agentwerkstatt/werkstatt/internal/llm"
	"github.com/agentwerkstatt/werkstatt/internal/memory"
	"github.com/agentwerkstatt/werkstatt/internal/tools"
	"github.com/agentwerkstatt/werkstatt/internal/trace"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main constructs the OS-level environment and delegates to [run] so
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand; the flag
// package relies on package-level globals that interfere with calling
// run() concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "chat", "":
		return runChat(ctx, stdin, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: werkstatt ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runChat starts the interactive REPL.
func runChat(ctx context.Context, stdin io.Reader, stdout io.Writer, configPath string) error {
	app, err := buildApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Fprintln(stdout, buildinfo.String())
	if app.personaName != "" {
		fmt.Fprintf(stdout, "Persona: %s\n", app.personaName)
	}
	fmt.Fprintln(stdout, "Type a message, or 'quit', 'clear', 'status'.")
	fmt.Fprintln(stdout)

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			fmt.Fprintln(stdout, "Goodbye.")
			return nil
		case "clear":
			app.agent.ClearHistory()
			fmt.Fprintln(stdout, "Conversation history cleared.")
			continue
		case "status":
			app.printStatus(stdout)
			continue
		}

		response := app.agent.ProcessRequest(ctx, line)
		fmt.Fprintln(stdout, response)
		fmt.Fprintln(stdout)
	}
}

// runAsk processes a single question and exits. History and the REPL
// commands are irrelevant for one-shots.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	app, err := buildApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.close()

	question := strings.Join(args, " ")
	fmt.Fprintln(stdout, app.agent.ProcessRequest(ctx, question))
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Werkstatt - Conversational Agent with Tool Calling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: werkstatt [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  chat         Start the interactive REPL (default)")
	fmt.Fprintln(w, "  ask          Ask a single question and exit")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  ANTHROPIC_API_KEY     required")
	fmt.Fprintln(w, "  TAVILY_API_KEY        enables the web_search tool")
	fmt.Fprintln(w, "  LANGFUSE_PUBLIC_KEY,")
	fmt.Fprintln(w, "  LANGFUSE_SECRET_KEY   enable trace export")
	return nil
}

// app holds the wired agent and the resources that need closing.
type app struct {
	agent       *agent.Agent
	archive     *memory.ArchiveStore
	personaName string
	logger      *slog.Logger
}

// buildApp loads config and wires the full agent: LLM client, tool
// registry, memory service, tracer, and archive. Optional services
// degrade to no-ops when unconfigured.
func buildApp(logOut io.Writer, configPath string) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		// Already validated by config.Validate().
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger := newLogger(logOut, level)
	if cfgPath != "" {
		logger.Info("config loaded", "path", cfgPath)
	} else {
		logger.Info("no config file found, using defaults")
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	client := llm.NewAnthropicClient(apiKey, logger)

	var tracer trace.Service = trace.NewNoop()
	if cfg.Langfuse.Enabled {
		pub := os.Getenv("LANGFUSE_PUBLIC_KEY")
		sec := os.Getenv("LANGFUSE_SECRET_KEY")
		if pub != "" && sec != "" {
			tracer = trace.NewLangfuse(cfg.Langfuse.Host, pub, sec, logger)
			logger.Info("trace export enabled", "host", cfg.Langfuse.Host)
		} else {
			logger.Warn("langfuse enabled but LANGFUSE_PUBLIC_KEY/LANGFUSE_SECRET_KEY not set")
		}
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewFileWriterTool(cfg.Workspace.Path))
	registry.Register(tools.NewPlannerTool(client, registry, cfg.Model, logger))
	if cfg.Search.Enabled {
		tavilyKey := os.Getenv("TAVILY_API_KEY")
		if tavilyKey == "" {
			logger.Warn("search enabled but TAVILY_API_KEY not set, web_search unavailable")
		} else {
			registry.Register(tools.NewWebSearchTool(tavilyKey, cfg.Search.BaseURL, logger))
		}
	}

	var mem memory.Service = memory.NewNoop()
	if cfg.Memory.Enabled {
		mem = memory.NewHTTPService(cfg.Memory.ServerURL, logger)
		logger.Info("memory service enabled", "url", cfg.Memory.ServerURL)
	}

	ag := agent.NewAgent(logger, client, cfg.Model, registry, mem, tracer)
	ag.SetUserID(cfg.Memory.UserID)

	// The delegate executor gets its own registry copy; registering the
	// tool afterward keeps workers from seeing it.
	exec := delegate.NewExecutor(logger, client, cfg.Model, registry, tracer)
	registry.Register(delegate.NewTool(exec))

	a := &app{agent: ag, logger: logger}

	if p := cfg.Persona(cfg.DefaultPersona); p != nil {
		ag.SetPersona(p.Name, p.File)
		a.personaName = p.Name
	}

	if cfg.Archive.Enabled {
		store, err := memory.NewArchiveStore(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		ag.SetArchive(store)
		a.archive = store
		logger.Info("archive enabled", "path", cfg.Archive.Path)
	}

	return a, nil
}

func (a *app) close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("archive close failed", "error", err)
		}
	}
}

// printStatus reports session state for the "status" REPL command.
func (a *app) printStatus(w io.Writer) {
	fmt.Fprintln(w, buildinfo.String())
	fmt.Fprintf(w, "  uptime:        %s\n", buildinfo.Uptime())
	fmt.Fprintf(w, "  history turns: %d\n", a.agent.History().Len())
	if a.personaName != "" {
		fmt.Fprintf(w, "  persona:       %s\n", a.personaName)
	}
	if a.archive != nil {
		stats, err := a.archive.Stats()
		if err != nil {
			fmt.Fprintf(w, "  archive:       error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "  archive:       %d exchanges, %d tool calls (%d errors)\n",
			stats["exchanges"], stats["tool_calls"], stats["tool_errors"])
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML config. A missing config file
// is not an error for this tool; defaults apply and the returned path
// is empty.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
