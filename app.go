package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Ditto/pkg/cache"
	"Ditto/pkg/types"
)

// ========================================
// App - application facade
// ========================================
// Owns the shared services (adb, workflow store, run history) and exposes
// the operations the CLI and the MCP server drive.

// AppConfig configures the application.
type AppConfig struct {
	// AdbPath overrides adb auto-detection.
	AdbPath string
	// DataDir is the config/data directory. Empty uses the platform
	// default.
	DataDir string
}

// App wires the services together.
type App struct {
	adb       *Adb
	store     *WorkflowStore
	history   *HistoryStore
	settings  *cache.Service
	watcher   *WorkflowWatcher
	dataDir   string
	recording *RecordingSession
	replaying *ReplaySession
	running   *Runner
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "ditto")
	}
	return ".ditto"
}

// NewApp initializes the services.
func NewApp(cfg AppConfig) (*App, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	adb, err := NewAdb(cfg.AdbPath)
	if err != nil {
		return nil, err
	}

	store, err := NewWorkflowStore(dataDir)
	if err != nil {
		return nil, err
	}

	history, err := OpenHistoryStore(filepath.Join(dataDir, "history.db"))
	if err != nil {
		return nil, err
	}

	settings, err := cache.New(cache.Config{
		ConfigDir: dataDir,
		LogFunc: func(format string, args ...interface{}) {
			LogWarn("settings").Msgf(format, args...)
		},
	})
	if err != nil {
		return nil, err
	}

	return &App{
		adb:      adb,
		store:    store,
		history:  history,
		settings: settings,
		dataDir:  dataDir,
	}, nil
}

// Close releases resources.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.settings != nil {
		a.settings.Close()
	}
}

// WatchWorkflows starts the store watcher with the given callback.
func (a *App) WatchWorkflows(onChange WorkflowChangeFunc) error {
	a.watcher = NewWorkflowWatcher(a.store, onChange)
	return a.watcher.Start()
}

// ========================================
// Devices
// ========================================

// Devices lists connected devices.
func (a *App) Devices() ([]types.Device, error) {
	return a.adb.Devices()
}

// resolveDevice validates an explicit device id, or picks the single
// connected device when none is given. With multiple devices connected the
// pinned device is used if it is among them.
func (a *App) resolveDevice(deviceID string) (string, error) {
	if deviceID != "" {
		if err := ValidateDeviceID(deviceID); err != nil {
			return "", err
		}
		return deviceID, nil
	}

	devices, err := a.adb.Devices()
	if err != nil {
		return "", err
	}
	var ready []types.Device
	for _, d := range devices {
		if d.Ready() {
			ready = append(ready, d)
		}
	}
	switch len(ready) {
	case 0:
		return "", fmt.Errorf("no device connected")
	case 1:
		return ready[0].ID, nil
	default:
		if pinned := a.settings.GetPinnedSerial(); pinned != "" {
			for _, d := range ready {
				if d.ID == pinned {
					return pinned, nil
				}
			}
		}
		return "", fmt.Errorf("%d devices connected, specify one with --device", len(ready))
	}
}

// markActive records that a device was just used.
func (a *App) markActive(deviceID string) {
	a.settings.SetLastActive(deviceID, time.Now().Unix())
}

// PinDevice makes a device the default target when several are connected.
func (a *App) PinDevice(deviceID string) error {
	if err := ValidateDeviceID(deviceID); err != nil {
		return err
	}
	a.settings.SetPinnedSerial(deviceID)
	return a.settings.SaveSettings()
}

// UnpinDevice clears the pinned device.
func (a *App) UnpinDevice() error {
	a.settings.SetPinnedSerial("")
	return a.settings.SaveSettings()
}

// PinnedDevice returns the currently pinned device serial.
func (a *App) PinnedDevice() string {
	return a.settings.GetPinnedSerial()
}

// controllerFor builds the input controller for a device. The screen size
// is cached across invocations.
func (a *App) controllerFor(deviceID string) (*AdbController, error) {
	if size, ok := a.settings.ScreenSize(deviceID); ok {
		return NewAdbController(a.adb, deviceID, size.Width, size.Height), nil
	}
	w, h, err := a.adb.ScreenSize(deviceID)
	if err != nil {
		return nil, err
	}
	a.settings.SetScreenSize(deviceID, cache.ScreenSize{Width: w, Height: h})
	return NewAdbController(a.adb, deviceID, w, h), nil
}

// ========================================
// Workflow library
// ========================================

// ListWorkflows returns the stored workflows, newest first.
func (a *App) ListWorkflows() ([]Workflow, error) {
	return a.store.List()
}

// GetWorkflow loads one stored workflow.
func (a *App) GetWorkflow(id string) (Workflow, error) {
	return a.store.Get(id)
}

// SaveWorkflow persists a workflow into the store.
func (a *App) SaveWorkflow(w Workflow) error {
	return a.store.Save(w)
}

// DeleteWorkflow removes a workflow from the store.
func (a *App) DeleteWorkflow(id string) error {
	return a.store.Delete(id)
}

// ========================================
// Recording
// ========================================

// StartRecording begins a recording session on the device. Stop it with
// StopRecording.
func (a *App) StartRecording(ctx context.Context, deviceID string, cfg RecorderConfig) error {
	if a.recording != nil {
		return fmt.Errorf("a recording is already in progress")
	}

	deviceID, err := a.resolveDevice(deviceID)
	if err != nil {
		return err
	}

	w, h, err := a.adb.ScreenSize(deviceID)
	if err != nil {
		return err
	}

	cfg.DeviceID = deviceID
	cfg.Resolution = fmt.Sprintf("%dx%d", w, h)
	a.markActive(deviceID)

	source := NewGeteventSource(a.adb, deviceID)
	snapshots := NewDeviceSnapshotProvider(a.adb, deviceID)

	session := NewRecordingSession(source, snapshots, cfg)
	if err := session.Start(ctx); err != nil {
		return err
	}
	a.recording = session
	return nil
}

// StopRecording ends the active recording, saves the workflow into the
// store, and returns it.
func (a *App) StopRecording() (Workflow, error) {
	if a.recording == nil {
		return Workflow{}, fmt.Errorf("no recording in progress")
	}
	session := a.recording
	a.recording = nil

	w, err := session.Stop()
	if err != nil {
		return w, err
	}
	if len(w.Steps) > 0 {
		if err := a.store.Save(w); err != nil {
			return w, err
		}
	}
	return w, nil
}

// ========================================
// Replay
// ========================================

// ReplayWorkflow replays a stored workflow on a device and records the run
// in history.
func (a *App) ReplayWorkflow(deviceID, workflowID string, cfg ReplayConfig) (AutomationResult, error) {
	w, err := a.store.Get(workflowID)
	if err != nil {
		return AutomationResult{}, err
	}
	return a.replay(deviceID, w, cfg)
}

// ReplayWorkflowFile replays a workflow from an arbitrary file path.
func (a *App) ReplayWorkflowFile(deviceID, path string, cfg ReplayConfig) (AutomationResult, error) {
	w, err := LoadWorkflowFile(path)
	if err != nil {
		return AutomationResult{}, err
	}
	return a.replay(deviceID, w, cfg)
}

func (a *App) replay(deviceID string, w Workflow, cfg ReplayConfig) (AutomationResult, error) {
	deviceID, err := a.resolveDevice(deviceID)
	if err != nil {
		return AutomationResult{}, err
	}

	controller, err := a.controllerFor(deviceID)
	if err != nil {
		return AutomationResult{}, err
	}
	snapshots := NewDeviceSnapshotProvider(a.adb, deviceID)
	a.markActive(deviceID)

	timer := StartOperation("replayer", "replay_workflow").
		AddDetail("workflow_id", w.ID).
		AddDetail("steps", len(w.Steps))

	session := NewReplaySession(w, snapshots, controller, cfg)
	a.replaying = session
	result := session.Run()
	a.replaying = nil

	if result.Success {
		timer.End()
	} else {
		timer.EndWithError(fmt.Errorf("%s", result.Error))
	}

	if _, err := a.history.SaveRun(deviceID, RunKindReplay, w.ID, result); err != nil {
		LogWarn("app").Err(err).Msg("Failed to persist run history")
	}
	return result, nil
}

// StopReplay halts an in-progress replay.
func (a *App) StopReplay() {
	if a.replaying != nil {
		a.replaying.Stop()
	}
}

// ========================================
// Scripted automation
// ========================================

// RunScript parses and executes scripted steps on a device, recording the
// run in history.
func (a *App) RunScript(deviceID string, script []byte, cfg RunnerConfig) (AutomationResult, error) {
	steps, err := ParseSteps(script)
	if err != nil {
		return AutomationResult{}, err
	}

	deviceID, err = a.resolveDevice(deviceID)
	if err != nil {
		return AutomationResult{}, err
	}

	controller, err := a.controllerFor(deviceID)
	if err != nil {
		return AutomationResult{}, err
	}
	snapshots := NewDeviceSnapshotProvider(a.adb, deviceID)
	a.markActive(deviceID)

	timer := StartOperation("automation", "run_script").AddDetail("steps", len(steps))

	runner := NewRunner(controller, snapshots, cfg)
	a.running = runner
	result := runner.Run(steps)
	a.running = nil

	if result.Success {
		timer.End()
	} else {
		timer.EndWithError(fmt.Errorf("%s", result.Error))
	}

	if _, err := a.history.SaveRun(deviceID, RunKindScript, "", result); err != nil {
		LogWarn("app").Err(err).Msg("Failed to persist run history")
	}
	return result, nil
}

// RunScriptFile executes a script file.
func (a *App) RunScriptFile(deviceID, path string, cfg RunnerConfig) (AutomationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AutomationResult{}, fmt.Errorf("failed to read script: %w", err)
	}
	return a.RunScript(deviceID, data, cfg)
}

// StopScript halts an in-progress script run.
func (a *App) StopScript() {
	if a.running != nil {
		a.running.Stop()
	}
}

// ========================================
// MCP surface
// ========================================
// Thin wrappers with default configs, matching the mcp.DittoApp interface.

// ReplayStored replays a stored workflow with default replay settings.
func (a *App) ReplayStored(deviceID, workflowID string) (AutomationResult, error) {
	return a.ReplayWorkflow(deviceID, workflowID, DefaultReplayConfig())
}

// RunSteps executes a scripted step document with default runner settings.
func (a *App) RunSteps(deviceID string, script []byte) (AutomationResult, error) {
	return a.RunScript(deviceID, script, DefaultRunnerConfig())
}

// RunHistoryJSON returns recent runs rendered as JSON.
func (a *App) RunHistoryJSON(deviceID string, limit int) (string, error) {
	records, err := a.history.ListRuns(deviceID, limit)
	if err != nil {
		return "", err
	}
	return MarshalRuns(records)
}

// ========================================
// Run history
// ========================================

// RunHistory lists recent runs.
func (a *App) RunHistory(deviceID string, limit int) ([]RunRecord, error) {
	return a.history.ListRuns(deviceID, limit)
}

// GetRun returns one run with step results.
func (a *App) GetRun(id string) (RunRecord, error) {
	return a.history.GetRun(id)
}
