package tools

import (
	"errors"
	"fmt"

	"github.com/NERVsystems/mapagent/pkg/upstream"
	"github.com/mark3labs/mcp-go/mcp"
)

// FormatError renders err with a recovery hint for the orchestrator.
func FormatError(err error) string {
	message := err.Error()
	var ue *upstream.Error
	if errors.As(err, &ue) {
		message = ue.Message
		if ue.Err != nil {
			message += ": " + ue.Err.Error()
		}
		if ue.StatusCode != 0 {
			message = fmt.Sprintf("%s returned %d: %s", ue.Service, ue.StatusCode, message)
		}
	}
	return fmt.Sprintf("Error: %s\n\nGuidance: %s", message, upstream.Guidance(err))
}

// ErrorWithGuidance turns err into an MCP error result. The session stays
// usable.
func ErrorWithGuidance(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(FormatError(err))
}

// ErrorResponse is used for consistent error reporting
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}
