package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerDeviceTools registers device discovery tools.
func (s *MCPServer) registerDeviceTools() {
	s.server.AddTool(
		mcp.NewTool("device_list",
			mcp.WithDescription("List connected Android devices"),
		),
		s.handleDeviceList,
	)
}

// registerAutomationTools registers scripted automation tools.
func (s *MCPServer) registerAutomationTools() {
	s.server.AddTool(
		mcp.NewTool("script_run",
			mcp.WithDescription("Run scripted automation steps on a device. The script is a JSON array of steps (or an object with a \"steps\" array). Each step has an \"action\" (tap/long_press/swipe/scroll/type/press/open/wait/wait_for/assert_exists/assert_not_exists/screenshot) and targets elements by text/id/desc with fuzzy matching, or by x/y coordinates."),
			mcp.WithString("script",
				mcp.Required(),
				mcp.Description("JSON step script"),
			),
			mcp.WithString("device_id",
				mcp.Description("Target device ID (defaults to the only connected device)"),
			),
		),
		s.handleScriptRun,
	)

	s.server.AddTool(
		mcp.NewTool("run_history",
			mcp.WithDescription("Show recent replay and script runs with their per-step results"),
			mcp.WithString("device_id",
				mcp.Description("Filter by device ID"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum runs to return (default 20)"),
			),
		),
		s.handleRunHistory,
	)
}

func (s *MCPServer) handleDeviceList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.app.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		return textResult("No devices connected"), nil
	}

	result := fmt.Sprintf("Found %d device(s):\n\n", len(devices))
	for _, d := range devices {
		result += fmt.Sprintf("- %s (%s)", d.ID, d.State)
		if d.Model != "" {
			result += " " + d.Model
		}
		result += "\n"
	}
	return textResult(result), nil
}

func (s *MCPServer) handleScriptRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	script, ok := args["script"].(string)
	if !ok || script == "" {
		return nil, fmt.Errorf("script is required")
	}
	deviceID, _ := args["device_id"].(string)

	result, err := s.app.RunSteps(deviceID, []byte(script))
	if err != nil {
		return nil, fmt.Errorf("script run failed: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

func (s *MCPServer) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, _ := args["device_id"].(string)

	limit := 20
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	out, err := s.app.RunHistoryJSON(deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	return textResult(out), nil
}
