// Package prompts provides prompt templates for use with the MCP server.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PromptAdder is the part of the MCP server prompts are registered with.
type PromptAdder interface {
	AddPrompt(prompt mcp.Prompt, handler server.PromptHandlerFunc)
}

// Register adds the mapping assistant prompts. geocoder and routing select
// the tool-specific example prompts.
func Register(s PromptAdder, geocoder, routing bool) {
	s.AddPrompt(mcp.NewPrompt("mapping_assistant",
		mcp.WithPromptDescription("Instructions for an assistant that answers mapping questions with these tools"),
	), MappingAssistantHandler)

	if geocoder {
		s.AddPrompt(mcp.NewPrompt("search_place_examples",
			mcp.WithPromptDescription("Examples of well-formed place searches and reverse lookups"),
		), SearchPlaceExamplesHandler)
	}
	if routing {
		s.AddPrompt(mcp.NewPrompt("route_examples",
			mcp.WithPromptDescription("Examples of chaining geocoding and routing to answer directions questions"),
		), RouteExamplesHandler)
	}
}

// MappingAssistantHandler returns the system instructions for the assistant.
func MappingAssistantHandler(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	systemPrompt := `You are a mapping assistant. Use the MCP tools to geocode places and compute routes. Prefer tools from OSMGeocoder for search/reverse geocode, and RoutingServer for distances and directions.

When using these tools:

1. Resolve place names to coordinates with search_place before routing. Routing tools only accept coordinates.
2. Routing tools take latitude and longitude separately (start_lat, start_lon, end_lat, end_lon). Never swap them.
3. Choose the profile from the user's travel mode: driving-car, cycling-regular, foot-walking, foot-hiking, wheelchair.
4. Use route_distance for "how far" or "how long" questions, route_summary for directions, route_geometry only when the route shape is needed.
5. Convert meters to kilometers and seconds to minutes or hours in your answer.

ERROR HANDLING GUIDELINES:
When a tool returns an error, read its Guidance line, explain the problem to the user in plain words and, where it makes sense, retry with corrected parameters. A failed tool call never ends the conversation.
lookup_place answers {"error": "No object found"} when the object does not exist; tell the user instead of retrying.`

	return mcp.NewGetPromptResult(
		"Mapping Assistant Instructions",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(
				mcp.RoleAssistant,
				mcp.NewTextContent(systemPrompt),
			),
		},
	), nil
}

// SearchPlaceExamplesHandler returns examples for the geocoding tools
func SearchPlaceExamplesHandler(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	examplesPrompt := `EXAMPLES OF EFFECTIVE GEOCODING USAGE:

User: "Where is the Eiffel Tower?"
AI: *uses search_place with query: "Eiffel Tower, Paris, France", limit: 1*

User: "Find cafes called Einstein in Berlin"
AI: *uses search_place with query: "Café Einstein, Berlin, Germany", limit: 5*

User: "What's at 48.8584, 2.2945?"
AI: *uses reverse_geocode with lat: 48.8584, lon: 2.2945*

User: "Tell me about OSM way 5013364"
AI: *uses lookup_place with osm_type: "way", osm_id: 5013364*

ERROR CORRECTION PATTERN:
1. If search_place returns an empty list, add the city and country and retry once
2. If reverse_geocode reports no address, the point is likely at sea or in a remote area; say so
3. Coordinates must be decimal degrees; convert DMS notation first`

	return mcp.NewGetPromptResult(
		"Geocoding Examples",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(
				mcp.RoleAssistant,
				mcp.NewTextContent(examplesPrompt),
			),
		},
	), nil
}

// RouteExamplesHandler returns examples for the routing tools
func RouteExamplesHandler(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	examplesPrompt := `EXAMPLES OF EFFECTIVE ROUTING USAGE:

User: "How long does it take to drive from the Brandenburg Gate to Alexanderplatz?"
AI: *uses search_place for both places, then route_distance with start_lat: 52.5163, start_lon: 13.3777, end_lat: 52.5219, end_lon: 13.4132, profile: "driving-car"*

User: "Give me walking directions from the Louvre to Notre-Dame"
AI: *uses search_place for both places, then route_summary with profile: "foot-walking" and turns the steps into numbered directions*

User: "Show me the cycling route shape between two points"
AI: *uses route_geometry with profile: "cycling-regular"*

ERROR CORRECTION PATTERN:
1. "Could not find routable point" means a coordinate is far from any road; pick a nearby address and retry
2. A missing API key cannot be fixed by retrying; tell the user routing is not configured`

	return mcp.NewGetPromptResult(
		"Routing Examples",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(
				mcp.RoleAssistant,
				mcp.NewTextContent(examplesPrompt),
			),
		},
	), nil
}
