package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerWorkflowTools registers workflow library tools.
func (s *MCPServer) registerWorkflowTools() {
	s.server.AddTool(
		mcp.NewTool("workflow_list",
			mcp.WithDescription("List all recorded workflows"),
		),
		s.handleWorkflowList,
	)

	s.server.AddTool(
		mcp.NewTool("workflow_get",
			mcp.WithDescription("Get a workflow including all recorded steps, as JSON"),
			mcp.WithString("workflow_id",
				mcp.Required(),
				mcp.Description("Workflow ID"),
			),
		),
		s.handleWorkflowGet,
	)

	s.server.AddTool(
		mcp.NewTool("workflow_delete",
			mcp.WithDescription("Delete a recorded workflow"),
			mcp.WithString("workflow_id",
				mcp.Required(),
				mcp.Description("Workflow ID to delete"),
			),
		),
		s.handleWorkflowDelete,
	)

	s.server.AddTool(
		mcp.NewTool("workflow_replay",
			mcp.WithDescription("Replay a recorded workflow on a device. Elements are re-located via the recorded locator chain; gestures fall back to recorded coordinates when an element cannot be found."),
			mcp.WithString("workflow_id",
				mcp.Required(),
				mcp.Description("Workflow ID to replay"),
			),
			mcp.WithString("device_id",
				mcp.Description("Target device ID (defaults to the only connected device)"),
			),
		),
		s.handleWorkflowReplay,
	)
}

func (s *MCPServer) handleWorkflowList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflows, err := s.app.ListWorkflows()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	if len(workflows) == 0 {
		return textResult("No workflows found"), nil
	}

	result := fmt.Sprintf("Found %d workflow(s):\n\n", len(workflows))
	for i, wf := range workflows {
		name := wf.Name
		if name == "" {
			name = "(unnamed)"
		}
		result += fmt.Sprintf("%d. %s (ID: %s)\n", i+1, name, wf.ID)
		result += fmt.Sprintf("   Steps: %d\n", len(wf.Steps))
		if wf.DeviceID != "" {
			result += fmt.Sprintf("   Device: %s (%s)\n", wf.DeviceID, wf.Resolution)
		}
		if wf.CreatedAt != "" {
			result += fmt.Sprintf("   Created: %s\n", wf.CreatedAt)
		}
	}
	return textResult(result), nil
}

func (s *MCPServer) handleWorkflowGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return nil, fmt.Errorf("workflow_id is required")
	}

	workflow, err := s.app.GetWorkflow(workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow not found: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

func (s *MCPServer) handleWorkflowDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return nil, fmt.Errorf("workflow_id is required")
	}

	workflow, err := s.app.GetWorkflow(workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow not found: %w", err)
	}

	if err := s.app.DeleteWorkflow(workflowID); err != nil {
		return nil, fmt.Errorf("failed to delete workflow: %w", err)
	}
	return textResult(fmt.Sprintf("Deleted workflow '%s' (ID: %s)", workflow.Name, workflowID)), nil
}

func (s *MCPServer) handleWorkflowReplay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return nil, fmt.Errorf("workflow_id is required")
	}
	deviceID, _ := args["device_id"].(string)

	result, err := s.app.ReplayStored(deviceID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("replay failed: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
