package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/logging"
	"github.com/NERVsystems/mapagent/pkg/metrics"
	"github.com/NERVsystems/mapagent/pkg/monitor"
	"github.com/NERVsystems/mapagent/pkg/nominatim"
	"github.com/NERVsystems/mapagent/pkg/ors"
	"github.com/NERVsystems/mapagent/pkg/server"
	"github.com/NERVsystems/mapagent/pkg/telemetry"
	"github.com/NERVsystems/mapagent/pkg/tools"
	"github.com/NERVsystems/mapagent/pkg/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

var (
	showVersionFlag bool
	debug           bool
	generateConfig  string
	configFile      string
	serverGroup     string
	transport       string
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&generateConfig, "generate-config", "", "Generate an MCP client config file at the specified path")
	flag.StringVar(&configFile, "config", "", "Path to a config file (default: ./mapagent.{yaml,json,toml} if present)")
	flag.StringVar(&serverGroup, "server", "all", "Tool group to serve: geocoder, routing or all")
	flag.StringVar(&transport, "transport", "stdio", "MCP transport: stdio or sse")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		showVersion()
		return
	}

	if generateConfig != "" {
		if err := generateClientConfig(generateConfig); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "generated MCP client config at %s\n", generateConfig)
		return
	}

	groups, err := parseGroups(serverGroup)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(os.Stderr, "unknown transport %q: want stdio or sse\n", transport)
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log, debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, groups); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, groups []tools.Group) error {
	logger.Info("starting mapagent",
		"version", version.BuildVersion,
		"server", serverGroup,
		"transport", transport)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	if cfg.ORS.APIKey == "" && hasGroup(groups, tools.GroupRouting) {
		logger.Warn("ORS_API_KEY is not set, routing tools will return configuration errors")
	}

	geocoder := nominatim.New(cfg.Nominatim, nominatim.WithLogger(logger), nominatim.WithMetrics(m))
	router := ors.New(cfg.ORS, ors.WithLogger(logger), ors.WithMetrics(m))

	registry, err := tools.NewRegistry(geocoder, router, tools.WithLogger(logger), tools.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	srv, err := server.New(cfg.Server, registry, logger, groups...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Monitor.Addr != "" {
		mon := monitor.New(cfg.Monitor.Addr, registry, reg, logger, groups...)
		g.Go(func() error { return mon.Run(gctx) })
	}
	g.Go(func() error {
		// stdio ends when stdin closes; take the monitor down with it.
		defer cancel()
		if transport == "sse" {
			return srv.RunSSE(gctx)
		}
		logger.Info("server initialized, waiting for requests", "name", srv.Name())
		return srv.Run(gctx)
	})

	return g.Wait()
}

func hasGroup(groups []tools.Group, want tools.Group) bool {
	for _, g := range groups {
		if g == want {
			return true
		}
	}
	return false
}

// parseGroups maps the -server flag to the tool groups to expose.
func parseGroups(name string) ([]tools.Group, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "geocoder", "geocoding", "nominatim":
		return []tools.Group{tools.GroupGeocoder}, nil
	case "routing", "router", "ors":
		return []tools.Group{tools.GroupRouting}, nil
	case "", "all":
		return []tools.Group{tools.GroupGeocoder, tools.GroupRouting}, nil
	default:
		return nil, fmt.Errorf("unknown server %q: want geocoder, routing or all", name)
	}
}

// generateClientConfig creates or updates an MCP client config file with one
// entry per tool group. Unrelated entries in an existing file are kept.
func generateClientConfig(outputPath string) error {
	if outputPath == "" {
		return errors.New("output path is required")
	}
	if filepath.Ext(outputPath) != ".json" {
		return fmt.Errorf("config path %q must have a .json extension", outputPath)
	}

	execPath, err := os.Executable()
	if err != nil {
		execPath = os.Args[0]
	}
	absExecPath, err := filepath.Abs(execPath)
	if err != nil {
		absExecPath = execPath
	}

	config := make(map[string]any)
	if data, err := os.ReadFile(outputPath); err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("existing config %s is not valid JSON: %w", outputPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read existing config: %w", err)
	}

	mcpServers, ok := config["mcpServers"].(map[string]any)
	if !ok {
		mcpServers = make(map[string]any)
		config["mcpServers"] = mcpServers
	}

	mcpServers[server.GeocoderName] = map[string]any{
		"command": absExecPath,
		"args":    []string{"-server", "geocoder"},
	}
	mcpServers[server.RoutingName] = map[string]any{
		"command": absExecPath,
		"args":    []string{"-server", "routing"},
		"env":     map[string]string{"ORS_API_KEY": os.Getenv("ORS_API_KEY")},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	// The file may carry an API key.
	if err := os.WriteFile(outputPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func showVersion() {
	fmt.Println(version.String())
}
