package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/nominatim"
	"github.com/NERVsystems/mapagent/pkg/ors"
	"github.com/NERVsystems/mapagent/pkg/testutil"
	"github.com/NERVsystems/mapagent/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, orsKey string) *tools.Registry {
	t.Helper()
	logger := testutil.DiscardLogger()
	geocoder := nominatim.New(config.Default().Nominatim,
		nominatim.WithDoer(testutil.StaticDoer(http.StatusOK, `[]`)),
		nominatim.WithLogger(logger))
	orsCfg := config.Default().ORS
	orsCfg.APIKey = orsKey
	router := ors.New(orsCfg,
		ors.WithDoer(testutil.StaticDoer(http.StatusOK, `{"features":[]}`)),
		ors.WithLogger(logger))

	reg, err := tools.NewRegistry(geocoder, router, tools.WithLogger(logger))
	require.NoError(t, err)
	return reg
}

func rpc(t *testing.T, s *Server, msg string) map[string]any {
	t.Helper()
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(msg))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func toolNames(t *testing.T, s *Server) []string {
	t.Helper()
	resp := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "unexpected response: %v", resp)
	var names []string
	for _, tool := range result["tools"].([]any) {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	return names
}

func TestName(t *testing.T) {
	tests := []struct {
		groups []tools.Group
		want   string
	}{
		{[]tools.Group{tools.GroupGeocoder}, "OSMGeocoder"},
		{[]tools.Group{tools.GroupRouting}, "RoutingServer"},
		{[]tools.Group{tools.GroupGeocoder, tools.GroupRouting}, "mapagent"},
		{nil, "mapagent"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.groups...), "%v", tt.groups)
	}
}

func TestNew(t *testing.T) {
	reg := newRegistry(t, "key")
	logger := testutil.DiscardLogger()

	geo, err := New(config.Default().Server, reg, logger, tools.GroupGeocoder)
	require.NoError(t, err)
	assert.Equal(t, "OSMGeocoder", geo.Name())
	assert.ElementsMatch(t, []string{"search_place", "reverse_geocode", "lookup_place"}, toolNames(t, geo))

	routing, err := New(config.Default().Server, reg, logger, tools.GroupRouting)
	require.NoError(t, err)
	assert.Equal(t, "RoutingServer", routing.Name())
	assert.ElementsMatch(t, []string{"route_geometry", "route_coords", "route_distance", "route_summary"}, toolNames(t, routing))

	all, err := New(config.Default().Server, reg, logger)
	require.NoError(t, err)
	assert.Len(t, toolNames(t, all), 7)

	_, err = New(config.Default().Server, nil, logger)
	assert.Error(t, err)
}

func TestFailedToolCallIsAResult(t *testing.T) {
	s, err := New(config.Default().Server, newRegistry(t, ""), testutil.DiscardLogger(), tools.GroupRouting)
	require.NoError(t, err)

	call := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"route_distance","arguments":{"start_lat":48.8584,"start_lon":2.2945,"end_lat":48.8606,"end_lon":2.3376}}}`
	resp := rpc(t, s, call)
	assert.Nil(t, resp["error"])
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "unexpected response: %v", resp)
	assert.Equal(t, true, result["isError"])

	// The server keeps answering.
	assert.Len(t, toolNames(t, s), 4)
}

func TestLimitRequests(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	h := limitRequests(0.001, 2, ok)
	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	unlimited := limitRequests(0, 0, ok)
	for range 10 {
		rec := httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRunSSEShutdown(t *testing.T) {
	cfg := config.Default().Server
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second

	s, err := New(cfg, newRegistry(t, "key"), testutil.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunSSE(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunSSE did not return after cancellation")
	}
}
