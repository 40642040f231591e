// Package ors implements the routing adapter over the OpenRouteService
// directions API.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/geo"
	"github.com/NERVsystems/mapagent/pkg/metrics"
	"github.com/NERVsystems/mapagent/pkg/upstream"
)

const service = "ors"

// DefaultProfile is used when a request names no profile.
const DefaultProfile = "driving-car"

// profiles maps every accepted profile name to the ORS profile.
var profiles = map[string]string{
	"driving-car":      "driving-car",
	"driving-hgv":      "driving-hgv",
	"cycling-regular":  "cycling-regular",
	"cycling-road":     "cycling-road",
	"cycling-mountain": "cycling-mountain",
	"cycling-electric": "cycling-electric",
	"foot-walking":     "foot-walking",
	"foot-hiking":      "foot-hiking",
	"wheelchair":       "wheelchair",

	"driving": "driving-car",
	"cycling": "cycling-regular",
	"walking": "foot-walking",
	"hiking":  "foot-hiking",
}

// ProfileNames lists the ORS profile names, without aliases, in a stable order.
func ProfileNames() []string {
	return []string{
		"driving-car", "driving-hgv",
		"cycling-regular", "cycling-road", "cycling-mountain", "cycling-electric",
		"foot-walking", "foot-hiking", "wheelchair",
	}
}

// ResolveProfile maps a profile name or alias to the ORS profile. An empty
// name resolves to DefaultProfile.
func ResolveProfile(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultProfile, nil
	}
	p, ok := profiles[name]
	if !ok {
		return "", fmt.Errorf("unknown profile %q, expected one of %s", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// RouteRequest describes a two-point route. Coordinates are given in
// latitude, longitude order.
type RouteRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Profile     string
}

// Distance is the aggregate length of a route.
type Distance struct {
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
}

// Step is one maneuver of a route.
type Step struct {
	DistanceM   float64 `json:"distance_m"`
	DurationS   float64 `json:"duration_s"`
	Instruction *string `json:"instruction"`
}

// Client is the routing adapter. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	caller  *upstream.Caller
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the HTTP client.
func WithDoer(d upstream.Doer) Option {
	return func(c *Client) { c.caller.Client = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
		c.caller.Logger = l
	}
}

// WithMetrics records upstream requests in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.caller.Metrics = m }
}

// New creates a routing adapter from cfg. A missing API key is not an error
// here; every operation reports it before touching the network.
func New(cfg config.ORS, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultORSTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultORSBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		logger:  slog.Default(),
		caller: &upstream.Caller{
			Service: service,
			Client:  upstream.NewHTTPClient(timeout),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RouteGeometry returns the directions response as received, a GeoJSON
// FeatureCollection.
func (c *Client) RouteGeometry(ctx context.Context, r RouteRequest) (json.RawMessage, error) {
	body, err := c.directions(ctx, r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, upstream.Malformed(service, "directions response is not valid JSON", nil)
	}
	return json.RawMessage(body), nil
}

// RouteDistance returns the distance and duration of the first segment of
// the first route.
func (c *Client) RouteDistance(ctx context.Context, r RouteRequest) (Distance, error) {
	seg, err := c.firstSegment(ctx, r)
	if err != nil {
		return Distance{}, err
	}
	if seg.Distance == nil || seg.Duration == nil {
		return Distance{}, upstream.Malformed(service, "segment has no distance or duration", nil)
	}
	return Distance{DistanceM: *seg.Distance, DurationS: *seg.Duration}, nil
}

// RouteSummary returns the steps of the first segment of the first route.
func (c *Client) RouteSummary(ctx context.Context, r RouteRequest) ([]Step, error) {
	seg, err := c.firstSegment(ctx, r)
	if err != nil {
		return nil, err
	}
	if seg.Steps == nil {
		return nil, upstream.Malformed(service, "segment has no steps", nil)
	}

	steps := make([]Step, 0, len(*seg.Steps))
	for i, s := range *seg.Steps {
		if s.Distance == nil || s.Duration == nil {
			return nil, upstream.Malformed(service, fmt.Sprintf("step %d has no distance or duration", i), nil)
		}
		steps = append(steps, Step{
			DistanceM:   *s.Distance,
			DurationS:   *s.Duration,
			Instruction: s.Instruction,
		})
	}
	return steps, nil
}

type segment struct {
	Distance *float64 `json:"distance"`
	Duration *float64 `json:"duration"`
	Steps    *[]struct {
		Distance    *float64 `json:"distance"`
		Duration    *float64 `json:"duration"`
		Instruction *string  `json:"instruction"`
	} `json:"steps"`
}

func (c *Client) firstSegment(ctx context.Context, r RouteRequest) (segment, error) {
	body, err := c.directions(ctx, r)
	if err != nil {
		return segment{}, err
	}

	var fc struct {
		Features []struct {
			Properties struct {
				Segments []segment `json:"segments"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		return segment{}, upstream.Malformed(service, "directions response is not a feature collection", err)
	}
	if len(fc.Features) == 0 {
		return segment{}, upstream.Malformed(service, "response has no features", nil)
	}
	segments := fc.Features[0].Properties.Segments
	if len(segments) == 0 {
		return segment{}, upstream.Malformed(service, "route has no segments", nil)
	}
	return segments[0], nil
}

// directions checks preconditions, then issues exactly one POST to the
// directions endpoint.
func (c *Client) directions(ctx context.Context, r RouteRequest) ([]byte, error) {
	if c.apiKey == "" {
		return nil, upstream.ConfigurationError(service, "missing API key", upstream.GuidanceORSMissingKey)
	}
	if err := r.Origin.Validate(); err != nil {
		return nil, upstream.InvalidArgument(service, "invalid origin", err)
	}
	if err := r.Destination.Validate(); err != nil {
		return nil, upstream.InvalidArgument(service, "invalid destination", err)
	}
	profile, err := ResolveProfile(r.Profile)
	if err != nil {
		return nil, upstream.InvalidArgument(service, "invalid profile", err)
	}

	// ORS expects [lon, lat]
	payload, err := json.Marshal(struct {
		Coordinates [][2]float64 `json:"coordinates"`
	}{
		Coordinates: [][2]float64{r.Origin.LonLat(), r.Destination.LonLat()},
	})
	if err != nil {
		return nil, fmt.Errorf("encode directions request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug("requesting directions",
		"profile", profile,
		"origin", r.Origin.String(),
		"destination", r.Destination.String())

	body, err := c.caller.Do(req)
	if err != nil {
		var ue *upstream.Error
		if errors.As(err, &ue) {
			switch ue.StatusCode {
			case http.StatusNotFound:
				ue.Guidance = upstream.GuidanceORSNoRoute
			case http.StatusTooManyRequests:
				ue.Guidance = upstream.GuidanceORSRateLimit
			}
		}
		return nil, err
	}
	return body, nil
}
