package tools

import (
	"context"

	"github.com/NERVsystems/mapagent/pkg/nominatim"
	"github.com/NERVsystems/mapagent/pkg/upstream"
)

func latitudeParam(name, desc string) Param {
	return Param{Name: name, Type: TypeNumber, Description: desc, Required: true, Minimum: bound(-90), Maximum: bound(90)}
}

func longitudeParam(name, desc string) Param {
	return Param{Name: name, Type: TypeNumber, Description: desc, Required: true, Minimum: bound(-180), Maximum: bound(180)}
}

func geocoderTools(g Geocoder) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "search_place",
			Group:       GroupGeocoder,
			Description: "Search OpenStreetMap (Nominatim) for places matching a name or address. Include city and country for best results.",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Place name or address, e.g. \"Eiffel Tower, Paris, France\"", Required: true},
				{Name: "limit", Type: TypeInteger, Description: "Maximum number of matches (capped at 40)", Default: nominatim.DefaultLimit, Minimum: bound(1)},
			},
			Result: "array of places: display_name, lat, lon, osm_type, osm_id, address",
			Invoke: func(ctx context.Context, args Args) (any, error) {
				query, err := args.String("query")
				if err != nil {
					return nil, upstream.InvalidArgument("search_place", "query", err)
				}
				limit, err := args.Int("limit")
				if err != nil {
					return nil, upstream.InvalidArgument("search_place", "limit", err)
				}
				return g.SearchPlace(ctx, query, limit)
			},
		},
		{
			Name:        "reverse_geocode",
			Group:       GroupGeocoder,
			Description: "Find the address of a coordinate using OpenStreetMap (Nominatim).",
			Params: []Param{
				latitudeParam("lat", "Latitude in decimal degrees"),
				longitudeParam("lon", "Longitude in decimal degrees"),
			},
			Result: "place: display_name (null when unknown), lat, lon, osm_type, osm_id, address components",
			Invoke: func(ctx context.Context, args Args) (any, error) {
				c, err := args.Coordinate("lat", "lon")
				if err != nil {
					return nil, upstream.InvalidArgument("reverse_geocode", "coordinate", err)
				}
				return g.ReverseGeocode(ctx, c.Lat, c.Lon)
			},
		},
		{
			Name:        "lookup_place",
			Group:       GroupGeocoder,
			Description: "Look up an OpenStreetMap object by type and id. Returns {\"error\": \"No object found\"} when it does not exist.",
			Params: []Param{
				{Name: "osm_type", Type: TypeString, Description: "Object type", Required: true, Enum: []string{"node", "way", "relation", "n", "w", "r"}},
				{Name: "osm_id", Type: TypeInteger, Description: "Object id", Required: true, Minimum: bound(1)},
			},
			Result: "place: display_name, lat, lon, address; or {\"error\": \"No object found\"}",
			Invoke: func(ctx context.Context, args Args) (any, error) {
				osmType, err := args.String("osm_type")
				if err != nil {
					return nil, upstream.InvalidArgument("lookup_place", "osm_type", err)
				}
				osmID, err := args.Int64("osm_id")
				if err != nil {
					return nil, upstream.InvalidArgument("lookup_place", "osm_id", err)
				}
				return g.LookupPlace(ctx, osmType, osmID)
			},
		},
	}
}
