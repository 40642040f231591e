package nominatim_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/nominatim"
	"github.com/NERVsystems/mapagent/pkg/testutil"
	"github.com/NERVsystems/mapagent/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eiffelSearch = `[{
	"place_id": 88066702,
	"osm_type": "way",
	"osm_id": 5013364,
	"lat": "48.8582599",
	"lon": "2.2945006",
	"display_name": "Tour Eiffel, 5, Avenue Anatole France, Paris, France",
	"address": {"tourism": "Tour Eiffel", "city": "Paris", "country": "France", "country_code": "fr"}
}]`

func newClient(d upstream.Doer) *nominatim.Client {
	return nominatim.New(config.Default().Nominatim,
		nominatim.WithDoer(d),
		nominatim.WithLogger(testutil.DiscardLogger()),
	)
}

func TestSearchPlace(t *testing.T) {
	ctx := context.Background()

	t.Run("eiffel tower", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, eiffelSearch)
		places, err := newClient(doer).SearchPlace(ctx, "Eiffel Tower", nominatim.DefaultLimit)
		require.NoError(t, err)
		require.Len(t, places, 1)

		p := places[0]
		require.NotNil(t, p.DisplayName)
		assert.Equal(t, "Tour Eiffel, 5, Avenue Anatole France, Paris, France", *p.DisplayName)
		assert.Equal(t, 48.8582599, p.Lat)
		assert.Equal(t, 2.2945006, p.Lon)
		assert.Equal(t, "way", p.OSMType)
		assert.Equal(t, int64(5013364), p.OSMID)
		assert.Equal(t, "Paris", p.Address["city"])

		require.Equal(t, 1, doer.Calls())
		req, _ := doer.Request(0)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/search", req.URL.Path)
		assert.Equal(t, "Eiffel Tower", req.URL.Query().Get("q"))
		assert.Equal(t, "json", req.URL.Query().Get("format"))
		assert.Equal(t, "5", req.URL.Query().Get("limit"))
		assert.Equal(t, "1", req.URL.Query().Get("addressdetails"))
		assert.Equal(t, config.DefaultUserAgent, req.Header.Get("User-Agent"))
	})

	t.Run("no matches", func(t *testing.T) {
		places, err := newClient(testutil.StaticDoer(http.StatusOK, `[]`)).SearchPlace(ctx, "xyzzy", 5)
		require.NoError(t, err)
		assert.NotNil(t, places)
		assert.Empty(t, places)
	})

	t.Run("limit is capped", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `[]`)
		_, err := newClient(doer).SearchPlace(ctx, "cafe", 500)
		require.NoError(t, err)
		req, _ := doer.Request(0)
		assert.Equal(t, "40", req.URL.Query().Get("limit"))
	})

	t.Run("invalid arguments never reach upstream", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `[]`)
		c := newClient(doer)

		_, err := c.SearchPlace(ctx, "   ", 5)
		assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
		_, err = c.SearchPlace(ctx, "Paris", 0)
		assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
		assert.Zero(t, doer.Calls())
	})

	t.Run("unparseable latitude", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `[{"lat":"north","lon":"2.29"}]`)
		_, err := newClient(doer).SearchPlace(ctx, "Paris", 5)
		assert.ErrorIs(t, err, upstream.ErrMalformedResponse)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `[{"display_name":"Nowhere"}]`)
		_, err := newClient(doer).SearchPlace(ctx, "Nowhere", 5)
		assert.ErrorIs(t, err, upstream.ErrMalformedResponse)
	})

	t.Run("not json", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `<html></html>`)
		_, err := newClient(doer).SearchPlace(ctx, "Paris", 5)
		assert.ErrorIs(t, err, upstream.ErrMalformedResponse)
	})

	t.Run("rate limited", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusTooManyRequests, `{"error":"Rate limit exceeded"}`)
		_, err := newClient(doer).SearchPlace(ctx, "Paris", 5)
		require.ErrorIs(t, err, upstream.ErrUpstream)
		assert.Equal(t, upstream.GuidanceNominatimRateLimit, upstream.Guidance(err))
		assert.Contains(t, err.Error(), "Rate limit exceeded")
	})

	t.Run("transport failure", func(t *testing.T) {
		doer := &testutil.RecordingDoer{Respond: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: connection refused")
		}}
		_, err := newClient(doer).SearchPlace(ctx, "Paris", 5)
		assert.ErrorIs(t, err, upstream.ErrUpstream)
	})
}

func TestReverseGeocode(t *testing.T) {
	ctx := context.Background()

	t.Run("full result", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `{
			"osm_type": "way", "osm_id": 5013364,
			"lat": "48.8582599", "lon": "2.2945006",
			"display_name": "Tour Eiffel, Paris, France",
			"address": {"road": "Avenue Anatole France", "city": "Paris"}
		}`)
		p, err := newClient(doer).ReverseGeocode(ctx, 48.8584, 2.2945)
		require.NoError(t, err)
		require.NotNil(t, p.DisplayName)
		assert.Equal(t, "Tour Eiffel, Paris, France", *p.DisplayName)
		assert.Equal(t, "Avenue Anatole France", p.Address["road"])
		assert.Equal(t, int64(5013364), p.OSMID)

		req, _ := doer.Request(0)
		assert.Equal(t, "/reverse", req.URL.Path)
		assert.Equal(t, "48.8584", req.URL.Query().Get("lat"))
		assert.Equal(t, "2.2945", req.URL.Query().Get("lon"))
		assert.Equal(t, "1", req.URL.Query().Get("addressdetails"))
	})

	t.Run("missing display name is not an error", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `{"address": {"country": "France"}}`)
		p, err := newClient(doer).ReverseGeocode(ctx, 48.8584, 2.2945)
		require.NoError(t, err)
		assert.Nil(t, p.DisplayName)
		assert.Equal(t, 48.8584, p.Lat)
		assert.Equal(t, 2.2945, p.Lon)

		out, err := json.Marshal(p)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"display_name":null`)
	})

	t.Run("unable to geocode", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `{"error":"Unable to geocode"}`)
		_, err := newClient(doer).ReverseGeocode(ctx, 0, -160)
		require.ErrorIs(t, err, upstream.ErrNotFound)
		assert.Contains(t, err.Error(), "Unable to geocode")
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `{}`)
		_, err := newClient(doer).ReverseGeocode(ctx, 95, 0)
		assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
		assert.Zero(t, doer.Calls())
	})

	t.Run("server error", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusServiceUnavailable, ``)
		_, err := newClient(doer).ReverseGeocode(ctx, 48.8584, 2.2945)
		assert.ErrorIs(t, err, upstream.ErrUpstream)
	})
}

func TestLookupPlace(t *testing.T) {
	ctx := context.Background()

	t.Run("empty result returns sentinel", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `[]`)
		res, err := newClient(doer).LookupPlace(ctx, "way", 5013364)
		require.NoError(t, err)
		assert.False(t, res.Found())
		assert.Equal(t, nominatim.NotFoundLookup, res)

		out, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":"No object found"}`, string(out))

		req, _ := doer.Request(0)
		assert.Equal(t, "/lookup", req.URL.Path)
		assert.Equal(t, "W5013364", req.URL.Query().Get("osm_ids"))
	})

	t.Run("found", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, eiffelSearch)
		res, err := newClient(doer).LookupPlace(ctx, "way", 5013364)
		require.NoError(t, err)
		require.True(t, res.Found())
		assert.Equal(t, 48.8582599, res.Lat)

		out, err := json.Marshal(res)
		require.NoError(t, err)
		assert.NotContains(t, string(out), `"error"`)
		assert.Contains(t, string(out), `"display_name":"Tour Eiffel`)
	})

	t.Run("type codes", func(t *testing.T) {
		tests := []struct {
			osmType string
			want    string
		}{
			{"node", "N1"},
			{"N", "N1"},
			{"Way", "W1"},
			{"r", "R1"},
			{"RELATION", "R1"},
		}
		for _, tt := range tests {
			doer := testutil.StaticDoer(http.StatusOK, `[]`)
			_, err := newClient(doer).LookupPlace(ctx, tt.osmType, 1)
			require.NoError(t, err, tt.osmType)
			req, _ := doer.Request(0)
			assert.Equal(t, tt.want, req.URL.Query().Get("osm_ids"), tt.osmType)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		doer := testutil.StaticDoer(http.StatusOK, `[]`)
		c := newClient(doer)
		_, err := c.LookupPlace(ctx, "area", 1)
		assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
		_, err = c.LookupPlace(ctx, "node", 0)
		assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
		assert.Zero(t, doer.Calls())
	})
}

func TestIdempotence(t *testing.T) {
	ctx := context.Background()
	c := newClient(testutil.StaticDoer(http.StatusOK, eiffelSearch))

	first, err := c.SearchPlace(ctx, "Eiffel Tower", 5)
	require.NoError(t, err)
	second, err := c.SearchPlace(ctx, "Eiffel Tower", 5)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAgainstHTTPServer(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eiffelSearch))
	}))
	defer srv.Close()

	c := nominatim.New(config.Nominatim{BaseURL: srv.URL + "/", UserAgent: "mapagent-test/1.0"},
		nominatim.WithLogger(testutil.DiscardLogger()))

	places, err := c.SearchPlace(context.Background(), "Eiffel Tower", 1)
	require.NoError(t, err)
	assert.Len(t, places, 1)
	assert.Equal(t, "mapagent-test/1.0", gotAgent)
}
