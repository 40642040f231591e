package tools

import (
	"context"

	"github.com/NERVsystems/mapagent/pkg/ors"
	"github.com/NERVsystems/mapagent/pkg/upstream"
)

func profileEnum() []string {
	return append(ors.ProfileNames(), "driving", "cycling", "walking", "hiking")
}

func routeParams() []Param {
	return []Param{
		latitudeParam("start_lat", "Latitude of the starting point"),
		longitudeParam("start_lon", "Longitude of the starting point"),
		latitudeParam("end_lat", "Latitude of the destination"),
		longitudeParam("end_lon", "Longitude of the destination"),
		{
			Name:        "profile",
			Type:        TypeString,
			Description: "Travel profile, e.g. driving-car, cycling-regular, foot-walking",
			Default:     ors.DefaultProfile,
			Enum:        profileEnum(),
		},
	}
}

func routeRequest(tool string, args Args) (ors.RouteRequest, error) {
	origin, err := args.Coordinate("start_lat", "start_lon")
	if err != nil {
		return ors.RouteRequest{}, upstream.InvalidArgument(tool, "start", err)
	}
	dest, err := args.Coordinate("end_lat", "end_lon")
	if err != nil {
		return ors.RouteRequest{}, upstream.InvalidArgument(tool, "end", err)
	}
	profile, err := args.String("profile")
	if err != nil {
		return ors.RouteRequest{}, upstream.InvalidArgument(tool, "profile", err)
	}
	return ors.RouteRequest{Origin: origin, Destination: dest, Profile: profile}, nil
}

func routingTools(rt Router) []ToolDefinition {
	geometry := func(ctx context.Context, args Args) (any, error) {
		req, err := routeRequest("route_geometry", args)
		if err != nil {
			return nil, err
		}
		return rt.RouteGeometry(ctx, req)
	}

	return []ToolDefinition{
		{
			Name:        "route_geometry",
			Group:       GroupRouting,
			Description: "Get a full route between two coordinates as a GeoJSON FeatureCollection from OpenRouteService.",
			Params:      routeParams(),
			Result:      "GeoJSON FeatureCollection as returned by OpenRouteService",
			Invoke:      geometry,
		},
		{
			Name:        "route_coords",
			Group:       GroupRouting,
			Description: "Alias of route_geometry.",
			Params:      routeParams(),
			Result:      "GeoJSON FeatureCollection as returned by OpenRouteService",
			AliasOf:     "route_geometry",
			Invoke:      geometry,
		},
		{
			Name:        "route_distance",
			Group:       GroupRouting,
			Description: "Return only the distance (meters) and duration (seconds) of a route between two coordinates.",
			Params:      routeParams(),
			Result:      "object: distance_m, duration_s",
			Invoke: func(ctx context.Context, args Args) (any, error) {
				req, err := routeRequest("route_distance", args)
				if err != nil {
					return nil, err
				}
				return rt.RouteDistance(ctx, req)
			},
		},
		{
			Name:        "route_summary",
			Group:       GroupRouting,
			Description: "Return the turn-by-turn steps of a route between two coordinates, for composing directions.",
			Params:      routeParams(),
			Result:      "array of steps: distance_m, duration_s, instruction (may be null)",
			Invoke: func(ctx context.Context, args Args) (any, error) {
				req, err := routeRequest("route_summary", args)
				if err != nil {
					return nil, err
				}
				return rt.RouteSummary(ctx, req)
			},
		},
	}
}
