package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/NERVsystems/mapagent/pkg/metrics"
	"github.com/NERVsystems/mapagent/pkg/upstream"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/NERVsystems/mapagent/pkg/tools"

// ToolAdder is the part of the MCP server the registry registers tools with.
type ToolAdder interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Registry is the static table of mapping tools. It is built once at
// startup and is safe for concurrent use.
type Registry struct {
	defs    []ToolDefinition
	index   map[string]int
	schemas map[string]*gojsonschema.Schema

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics records tool calls in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) { r.tracer = tp.Tracer(tracerName) }
}

// NewRegistry declares every tool backed by geocoder and router.
func NewRegistry(geocoder Geocoder, router Router, opts ...Option) (*Registry, error) {
	r := &Registry{
		index:   map[string]int{},
		schemas: map[string]*gojsonschema.Schema{},
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}

	defs := append(geocoderTools(geocoder), routingTools(router)...)
	for i := range defs {
		d := &defs[i]
		if _, dup := r.index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		schema, err := compileSchema(*d)
		if err != nil {
			return nil, err
		}
		d.Tool = mcpTool(*d)
		r.index[d.Name] = i
		r.schemas[d.Name] = schema
	}
	r.defs = defs

	return r, nil
}

// Definitions returns the tools of the given groups, or all tools when no
// group is named, in declaration order.
func (r *Registry) Definitions(groups ...Group) []ToolDefinition {
	if len(groups) == 0 {
		out := make([]ToolDefinition, len(r.defs))
		copy(out, r.defs)
		return out
	}

	var out []ToolDefinition
	for _, d := range r.defs {
		for _, g := range groups {
			if d.Group == g {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	i, ok := r.index[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return r.defs[i], true
}

// Call validates args against the named tool's parameters, applies defaults
// and invokes it. The returned value is JSON-serializable.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, upstream.InvalidArgument("mapagent", fmt.Sprintf("unknown tool %q", name), nil)
	}

	callID := uuid.NewString()
	logger := r.logger.With("tool", name, "call_id", callID)

	ctx, span := r.tracer.Start(ctx, "tool "+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mcp.tool.name", name),
			attribute.String("mcp.tool.call_id", callID),
			attribute.String("mcp.tool.group", string(def.Group)),
		))
	defer span.End()

	start := time.Now()
	result, err := r.invoke(ctx, def, args)
	elapsed := time.Since(start)

	outcome := upstream.KindName(err)
	r.metrics.ObserveTool(name, outcome, elapsed)
	span.SetAttributes(attribute.String("mcp.tool.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Warn("tool call failed", "outcome", outcome, "error", err, "elapsed", elapsed)
		return nil, err
	}

	logger.Info("tool call completed", "elapsed", elapsed)
	return result, nil
}

func (r *Registry) invoke(ctx context.Context, def ToolDefinition, raw map[string]any) (any, error) {
	args := prepare(def, raw)
	if err := validate(r.schemas[def.Name], args); err != nil {
		return nil, upstream.InvalidArgument(def.Name, "invalid arguments", err)
	}
	return def.Invoke(ctx, args)
}

// RegisterTools adds the tools of the given groups to the MCP server.
func (r *Registry) RegisterTools(srv ToolAdder, groups ...Group) {
	for _, def := range r.Definitions(groups...) {
		r.logger.Info("registering tool", "name", def.Name, "group", def.Group)
		srv.AddTool(def.Tool, r.Handler(def.Name))
	}
}

// Handler returns the MCP handler for the named tool. Failures are reported
// as error results, never as protocol errors.
func (r *Registry) Handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := r.Call(ctx, name, req.GetArguments())
		if err != nil {
			return ErrorWithGuidance(err), nil
		}

		resultBytes, err := json.Marshal(result)
		if err != nil {
			r.logger.Error("failed to marshal result", "tool", name, "error", err)
			return ErrorResponse("Failed to generate result"), nil
		}
		return mcp.NewToolResultText(string(resultBytes)), nil
	}
}
