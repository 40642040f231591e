// Command toolcall runs a single mapping tool once and prints its result.
//
//	toolcall -tool search_place -args '{"query":"Eiffel Tower","limit":1}'
//	toolcall -list
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/logging"
	"github.com/NERVsystems/mapagent/pkg/nominatim"
	"github.com/NERVsystems/mapagent/pkg/ors"
	"github.com/NERVsystems/mapagent/pkg/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 on success, 1 when the tool failed
// and 2 on usage errors.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("toolcall", flag.ContinueOnError)
	fs.SetOutput(stderr)
	toolName := fs.String("tool", "", "Name of the tool to call")
	rawArgs := fs.String("args", "{}", "Tool arguments as a JSON object")
	configFile := fs.String("config", "", "Path to a config file")
	list := fs.Bool("list", false, "List the available tools and exit")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	logger := logging.New(io.Discard, cfg.Log.SlogLevel(), cfg.Log.Format)
	if *debug {
		logger = logging.New(stderr, slog.LevelDebug, cfg.Log.Format)
	}

	registry, err := tools.NewRegistry(
		nominatim.New(cfg.Nominatim, nominatim.WithLogger(logger)),
		ors.New(cfg.ORS, ors.WithLogger(logger)),
		tools.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build registry: %v\n", err)
		return 1
	}

	if *list {
		for _, def := range registry.Definitions() {
			params := make([]string, 0, len(def.Params))
			for _, p := range def.Params {
				name := p.Name
				if !p.Required {
					name += "?"
				}
				params = append(params, name)
			}
			fmt.Fprintf(stdout, "%-16s %-9s %s\n", def.Name, def.Group, strings.Join(params, ", "))
		}
		return 0
	}

	if *toolName == "" {
		fmt.Fprintln(stderr, "-tool is required")
		fs.Usage()
		return 2
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(*rawArgs), &args); err != nil {
		fmt.Fprintf(stderr, "-args must be a JSON object: %v\n", err)
		return 2
	}

	result, err := registry.Call(ctx, *toolName, args)
	if err != nil {
		fmt.Fprintln(stderr, tools.FormatError(err))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(stderr, "failed to encode result: %v\n", err)
		return 1
	}
	return 0
}
