// Package mcp exposes workflow recording, replay, and scripted automation
// as MCP (Model Context Protocol) tools over stdio, so AI clients can drive
// Android devices.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"Ditto/pkg/types"

	"github.com/mark3labs/mcp-go/server"
)

// Type aliases from the shared types package.
type (
	Device   = types.Device
	Workflow = types.Workflow
)

// DittoApp is the surface the MCP server needs from the main application.
type DittoApp interface {
	Devices() ([]types.Device, error)

	ListWorkflows() ([]types.Workflow, error)
	GetWorkflow(id string) (types.Workflow, error)
	DeleteWorkflow(id string) error

	// ReplayStored replays a stored workflow with default replay settings.
	ReplayStored(deviceID, workflowID string) (types.AutomationResult, error)
	// RunSteps executes a scripted step JSON document.
	RunSteps(deviceID string, script []byte) (types.AutomationResult, error)
	// RunHistoryJSON returns recent runs rendered as JSON.
	RunHistoryJSON(deviceID string, limit int) (string, error)
}

// MCPServer wraps the mcp-go server with the tool registrations.
type MCPServer struct {
	app    DittoApp
	server *server.MCPServer
	stdio  *server.StdioServer

	mu        sync.Mutex
	isRunning bool
}

// NewMCPServer creates the server and registers all tools.
func NewMCPServer(app DittoApp) *MCPServer {
	mcpServer := server.NewMCPServer(
		"ditto-android-automation",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	s := &MCPServer{
		app:    app,
		server: mcpServer,
	}

	s.registerDeviceTools()
	s.registerWorkflowTools()
	s.registerAutomationTools()

	return s
}

// Start serves on stdio until the client disconnects or an interrupt
// arrives.
func (s *MCPServer) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	return s.run()
}

func (s *MCPServer) run() error {
	s.stdio = server.NewStdioServer(s.server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "[MCP] Ditto MCP server started")
	err := s.stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	return err
}

// IsRunning reports whether the server is serving.
func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Serve runs an MCP server for the app on stdio.
func Serve(app DittoApp) error {
	return NewMCPServer(app).Start()
}
