// Package tools declares the mapping tools exposed over MCP and the registry
// that validates and dispatches calls to them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NERVsystems/mapagent/pkg/geo"
	"github.com/NERVsystems/mapagent/pkg/nominatim"
	"github.com/NERVsystems/mapagent/pkg/ors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// Group selects which tool server a tool belongs to.
type Group string

const (
	GroupGeocoder Group = "geocoder"
	GroupRouting  Group = "routing"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
)

// Param declares one named tool parameter.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
}

// Invoker runs a tool with validated, defaulted arguments.
type Invoker func(ctx context.Context, args Args) (any, error)

// ToolDefinition is one entry of the static tool table.
type ToolDefinition struct {
	Name        string  `json:"name"`
	Group       Group   `json:"group"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Result      string  `json:"result"`
	AliasOf     string  `json:"alias_of,omitempty"`

	Tool   mcp.Tool `json:"-"`
	Invoke Invoker  `json:"-"`
}

// Geocoder is the geocoding adapter as seen by the registry.
type Geocoder interface {
	SearchPlace(ctx context.Context, query string, limit int) ([]nominatim.Place, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (nominatim.Place, error)
	LookupPlace(ctx context.Context, osmType string, osmID int64) (nominatim.LookupResult, error)
}

// Router is the routing adapter as seen by the registry.
type Router interface {
	RouteGeometry(ctx context.Context, r ors.RouteRequest) (json.RawMessage, error)
	RouteDistance(ctx context.Context, r ors.RouteRequest) (ors.Distance, error)
	RouteSummary(ctx context.Context, r ors.RouteRequest) ([]ors.Step, error)
}

// Args holds the arguments of one call after defaults and coercion.
type Args map[string]any

// String returns the named argument as a string.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Float returns the named argument as a float64.
func (a Args) Float(name string) (float64, error) {
	f, err := cast.ToFloat64E(a[name])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// Int returns the named argument as an int.
func (a Args) Int(name string) (int, error) {
	i, err := cast.ToIntE(a[name])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return i, nil
}

// Int64 returns the named argument as an int64.
func (a Args) Int64(name string) (int64, error) {
	i, err := cast.ToInt64E(a[name])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return i, nil
}

// Coordinate reads a latitude/longitude argument pair. Range checks are left
// to the adapters.
func (a Args) Coordinate(latName, lonName string) (geo.Coordinate, error) {
	lat, err := a.Float(latName)
	if err != nil {
		return geo.Coordinate{}, err
	}
	lon, err := a.Float(lonName)
	if err != nil {
		return geo.Coordinate{}, err
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, nil
}
