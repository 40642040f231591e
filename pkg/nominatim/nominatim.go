// Package nominatim implements the geocoding adapter over the OpenStreetMap
// Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/geo"
	"github.com/NERVsystems/mapagent/pkg/metrics"
	"github.com/NERVsystems/mapagent/pkg/upstream"
	"github.com/spf13/cast"
)

const (
	service = "nominatim"

	// DefaultLimit is the number of matches returned when no limit is given.
	DefaultLimit = 5
	// MaxLimit is the largest limit Nominatim honours.
	MaxLimit = 40
)

// Place is a normalized Nominatim match.
type Place struct {
	DisplayName *string           `json:"display_name"`
	Lat         float64           `json:"lat"`
	Lon         float64           `json:"lon"`
	OSMType     string            `json:"osm_type,omitempty"`
	OSMID       int64             `json:"osm_id,omitempty"`
	Address     map[string]string `json:"address"`
}

// LookupResult is the outcome of LookupPlace: either a place or the
// NotFoundLookup marker.
type LookupResult struct {
	*Place
	Error string `json:"error,omitempty"`
}

// Found reports whether the lookup matched an object.
func (r LookupResult) Found() bool { return r.Place != nil }

// NotFoundLookup is returned, with a nil error, when a lookup matches nothing.
var NotFoundLookup = LookupResult{Error: "No object found"}

// Client is the geocoding adapter. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	caller    *upstream.Caller
	logger    *slog.Logger
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

// New creates a geocoding adapter from cfg.
func New(cfg config.Nominatim, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultNominatimTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultNominatimBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		logger:    slog.Default(),
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

// rawPlace mirrors the subset of a Nominatim result that is normalized.
// Coordinates arrive as strings.
type rawPlace struct {
	DisplayName *string           `json:"display_name"`
	Lat         any               `json:"lat"`
	Lon         any               `json:"lon"`
	OSMType     string            `json:"osm_type"`
	OSMID       int64             `json:"osm_id"`
	Address     map[string]string `json:"address"`
}

func (r rawPlace) normalize() (Place, error) {
	if r.Lat == nil || r.Lon == nil {
		return Place{}, errors.New("missing coordinates")
	}
	lat, err := cast.ToFloat64E(r.Lat)
	if err != nil {
		return Place{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := cast.ToFloat64E(r.Lon)
	if err != nil {
		return Place{}, fmt.Errorf("lon: %w", err)
	}
	address := r.Address
	if address == nil {
		address = map[string]string{}
	}
	return Place{
		DisplayName: r.DisplayName,
		Lat:         lat,
		Lon:         lon,
		OSMType:     r.OSMType,
		OSMID:       r.OSMID,
		Address:     address,
	}, nil
}

// SearchPlace resolves free text to at most limit places. No match yields an
// empty, non-nil slice.
func (c *Client) SearchPlace(ctx context.Context, query string, limit int) ([]Place, error) {
	if strings.TrimSpace(query) == "" {
		return nil, upstream.InvalidArgument(service, "query must not be empty", nil)
	}
	if limit <= 0 {
		return nil, upstream.InvalidArgument(service, fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var raw []rawPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, upstream.Malformed(service, "search response is not a JSON array", err)
	}

	places := make([]Place, 0, len(raw))
	for i, r := range raw {
		p, err := r.normalize()
		if err != nil {
			return nil, upstream.Malformed(service, fmt.Sprintf("search match %d", i), err)
		}
		places = append(places, p)
	}

	c.logger.Debug("search completed", "query", query, "limit", limit, "matches", len(places))
	return places, nil
}

// ReverseGeocode resolves a coordinate to the nearest addressable place.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error) {
	coord, err := geo.NewCoordinate(lat, lon)
	if err != nil {
		return Place{}, upstream.InvalidArgument(service, "invalid coordinate", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	body, err := c.get(ctx, "/reverse", params)
	if err != nil {
		return Place{}, err
	}

	var raw struct {
		rawPlace
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Place{}, upstream.Malformed(service, "reverse response is not a JSON object", err)
	}
	if len(raw.Error) > 0 && string(raw.Error) != "null" {
		return Place{}, upstream.NotFound(service,
			fmt.Sprintf("no address at %s: %s", coord, upstream.ErrorMessage(body)),
			upstream.GuidanceNominatimNoAddress)
	}

	// The reverse payload carries the matched object's coordinates; fall back
	// to the queried point when they are absent.
	if raw.Lat == nil || raw.Lon == nil {
		raw.Lat, raw.Lon = coord.Lat, coord.Lon
	}
	place, err := raw.normalize()
	if err != nil {
		return Place{}, upstream.Malformed(service, "reverse result", err)
	}
	return place, nil
}

// LookupPlace fetches one OSM object by type and id. osmType is node, way or
// relation, or the one-letter code N, W or R, in any case. An empty answer
// returns NotFoundLookup and a nil error.
func (c *Client) LookupPlace(ctx context.Context, osmType string, osmID int64) (LookupResult, error) {
	code, err := typeCode(osmType)
	if err != nil {
		return LookupResult{}, err
	}
	if osmID <= 0 {
		return LookupResult{}, upstream.InvalidArgument(service, fmt.Sprintf("osm_id must be positive, got %d", osmID), nil)
	}

	params := url.Values{}
	params.Set("osm_ids", fmt.Sprintf("%s%d", code, osmID))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	body, err := c.get(ctx, "/lookup", params)
	if err != nil {
		return LookupResult{}, err
	}

	var raw []rawPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return LookupResult{}, upstream.Malformed(service, "lookup response is not a JSON array", err)
	}
	if len(raw) == 0 {
		return NotFoundLookup, nil
	}

	place, err := raw[0].normalize()
	if err != nil {
		return LookupResult{}, upstream.Malformed(service, "lookup result", err)
	}
	return LookupResult{Place: &place}, nil
}

func typeCode(osmType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(osmType)) {
	case "node", "n":
		return "N", nil
	case "way", "w":
		return "W", nil
	case "relation", "r":
		return "R", nil
	default:
		return "", upstream.InvalidArgument(service,
			fmt.Sprintf("osm_type must be node, way or relation, got %q", osmType), nil)
	}
}

// get issues exactly one GET against path with params.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Required by the Nominatim usage policy
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	body, err := c.caller.Do(req)
	if err != nil {
		var ue *upstream.Error
		if errors.As(err, &ue) && ue.StatusCode == http.StatusTooManyRequests {
			ue.Guidance = upstream.GuidanceNominatimRateLimit
		}
		return nil, err
	}
	return body, nil
}
