package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse creates a standardized error response for MCP tools.
// Tool errors are reported in the result with IsError set, not as protocol
// errors, so the calling agent sees them and can correct itself.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if hint := errorHint(err); hint != "" {
		errorData["hint"] = hint
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

func errorHint(err error) string {
	var le *lwerrors.LaunchError
	switch {
	case errors.As(err, &le):
		return le.Hint()
	case errors.Is(err, lwerrors.ErrScanTimeout):
		return "The analyzer did not finish in time; raise scan.timeout_ms or lint a smaller scope"
	case errors.Is(err, errNotEligible):
		return "Only files matching lint.file_pattern are linted, minus the ignore file and always_ignore patterns"
	default:
		return ""
	}
}
