package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"Ditto/pkg/types"
)

// ========================================
// ADB Wrapper
// ========================================
// Foundation for all device interactions: command execution, device and
// screen discovery, touch input device calibration, and UI snapshots.

const adbCommandTimeout = 30 * time.Second

// Adb executes adb commands against a fixed binary path.
type Adb struct {
	path string
}

// NewAdb returns a wrapper for the given adb binary. An empty path
// auto-detects from ANDROID_HOME, ANDROID_SDK_ROOT, or PATH.
func NewAdb(path string) (*Adb, error) {
	if path == "" {
		detected, err := detectAdbPath()
		if err != nil {
			return nil, err
		}
		path = detected
	}
	return &Adb{path: path}, nil
}

func detectAdbPath() (string, error) {
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if home := os.Getenv(env); home != "" {
			candidate := filepath.Join(home, "platform-tools", "adb")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	if found, err := exec.LookPath("adb"); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("adb not found: set ANDROID_HOME or add adb to PATH")
}

// Run executes an adb command against the given device and returns stdout.
// An empty deviceID targets the default device.
func (a *Adb) Run(deviceID string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), adbCommandTimeout)
	defer cancel()
	return a.RunContext(ctx, deviceID, args...)
}

// RunContext is Run with a caller-controlled context.
func (a *Adb) RunContext(ctx context.Context, deviceID string, args ...string) (string, error) {
	if deviceID != "" {
		if err := ValidateDeviceID(deviceID); err != nil {
			return "", err
		}
		args = append([]string{"-s", deviceID}, args...)
	}

	cmd := exec.CommandContext(ctx, a.path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("adb %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Command returns an exec.Cmd for a long-running adb invocation (streaming
// shell commands). The caller owns the process lifecycle.
func (a *Adb) Command(ctx context.Context, deviceID string, args ...string) *exec.Cmd {
	if deviceID != "" {
		args = append([]string{"-s", deviceID}, args...)
	}
	return exec.CommandContext(ctx, a.path, args...)
}

// Devices lists connected devices.
func (a *Adb) Devices() ([]types.Device, error) {
	out, err := a.Run("", "devices", "-l")
	if err != nil {
		return nil, err
	}

	var devices []types.Device
	for _, line := range strings.Split(out, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := types.Device{ID: fields[0], State: fields[1]}
		for _, f := range fields[2:] {
			if v, ok := strings.CutPrefix(f, "model:"); ok {
				d.Model = v
			}
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// ScreenSize returns the device screen size in pixels. It tries `wm size`
// first and falls back to SurfaceFlinger and display dumps for devices
// where wm is unavailable.
func (a *Adb) ScreenSize(deviceID string) (int, int, error) {
	sizePattern := regexp.MustCompile(`(\d+)x(\d+)`)

	if out, err := a.Run(deviceID, "shell", "wm", "size"); err == nil {
		if m := sizePattern.FindStringSubmatch(out); m != nil {
			return atoi(m[1]), atoi(m[2]), nil
		}
	}

	if out, err := a.Run(deviceID, "shell", "dumpsys", "SurfaceFlinger"); err == nil {
		if m := regexp.MustCompile(`size=\[(\d+)\s+(\d+)\]`).FindStringSubmatch(out); m != nil {
			return atoi(m[1]), atoi(m[2]), nil
		}
		if m := regexp.MustCompile(`w/h:(\d+)x(\d+)`).FindStringSubmatch(out); m != nil {
			return atoi(m[1]), atoi(m[2]), nil
		}
	}

	if out, err := a.Run(deviceID, "shell", "dumpsys", "display"); err == nil {
		if m := sizePattern.FindStringSubmatch(out); m != nil {
			return atoi(m[1]), atoi(m[2]), nil
		}
	}

	return 0, 0, fmt.Errorf("could not detect screen size for %s", deviceID)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ========================================
// Touch input device discovery
// ========================================

// TouchDevice describes the kernel input device carrying touch events,
// including the axis ranges needed to scale raw coordinates to pixels.
type TouchDevice struct {
	Path string
	Name string
	MaxX int
	MaxY int
}

var eventNumPattern = regexp.MustCompile(`event(\d+)`)

// FindTouchDevice locates the primary touchscreen via `getevent -pl`.
// Devices whose name suggests a touchscreen win; lower event numbers are
// preferred as they are usually the built-in panel.
func (a *Adb) FindTouchDevice(deviceID string) (TouchDevice, error) {
	out, err := a.Run(deviceID, "shell", "getevent", "-pl")
	if err != nil {
		return TouchDevice{}, fmt.Errorf("failed to enumerate input devices: %w", err)
	}

	devices := parseInputDevices(out)
	if len(devices) == 0 {
		return TouchDevice{}, fmt.Errorf("no input devices found on %s", deviceID)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return eventNumber(devices[i].Path) < eventNumber(devices[j].Path)
	})

	for _, d := range devices {
		name := strings.ToLower(d.Name)
		for _, kw := range []string{"touch", "touchscreen", "ts", "input"} {
			if strings.Contains(name, kw) && d.MaxX > 0 && d.MaxY > 0 {
				return d, nil
			}
		}
	}

	// No touch-named device; fall back to the first one with MT axes.
	for _, d := range devices {
		if d.MaxX > 0 && d.MaxY > 0 {
			return d, nil
		}
	}
	return devices[0], nil
}

// parseInputDevices parses `getevent -pl` output into per-device records,
// capturing the ABS_MT_POSITION axis maxima where present.
func parseInputDevices(out string) []TouchDevice {
	var devices []TouchDevice
	var current *TouchDevice

	addDevicePattern := regexp.MustCompile(`/dev/input/event\d+`)
	namePattern := regexp.MustCompile(`name:\s+"([^"]+)"`)
	maxPattern := regexp.MustCompile(`max\s+(\d+)`)

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "add device") {
			if current != nil {
				devices = append(devices, *current)
			}
			current = nil
			if m := addDevicePattern.FindString(line); m != "" {
				current = &TouchDevice{Path: m}
			}
			continue
		}
		if current == nil {
			continue
		}
		if m := namePattern.FindStringSubmatch(line); m != nil {
			current.Name = m[1]
		}
		if strings.Contains(line, "ABS_MT_POSITION_X") || strings.Contains(line, "0035") {
			if m := maxPattern.FindStringSubmatch(line); m != nil {
				current.MaxX = atoi(m[1])
			}
		}
		if strings.Contains(line, "ABS_MT_POSITION_Y") || strings.Contains(line, "0036") {
			if m := maxPattern.FindStringSubmatch(line); m != nil {
				current.MaxY = atoi(m[1])
			}
		}
	}
	if current != nil {
		devices = append(devices, *current)
	}
	return devices
}

func eventNumber(path string) int {
	if m := eventNumPattern.FindStringSubmatch(path); m != nil {
		return atoi(m[1])
	}
	return 999
}

// ========================================
// UI snapshot (uiautomator dump)
// ========================================

const uiDumpDevicePath = "/sdcard/window_dump.xml"

// DumpUIXML captures the UI hierarchy XML. The dump is retried because
// uiautomator fails transiently on loading screens.
func (a *Adb) DumpUIXML(deviceID string) (string, error) {
	const maxRetries = 5
	const retryDelay = 1 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// A stuck uiautomator process blocks every later dump.
			a.Run(deviceID, "shell", "pkill", "-f", "uiautomator")
			time.Sleep(retryDelay)
		}

		out, err := a.Run(deviceID, "shell", "uiautomator", "dump", uiDumpDevicePath)
		if err != nil || strings.Contains(out, "null root node") {
			lastErr = fmt.Errorf("uiautomator dump failed: %v %s", err, strings.TrimSpace(out))
			continue
		}

		xmlContent, err := a.Run(deviceID, "shell", "cat", uiDumpDevicePath)
		if err != nil {
			lastErr = err
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(xmlContent), "<?xml") {
			lastErr = fmt.Errorf("unexpected dump content")
			continue
		}

		a.Run(deviceID, "shell", "rm", uiDumpDevicePath)
		return xmlContent, nil
	}
	return "", fmt.Errorf("UI dump failed after %d attempts: %w", maxRetries, lastErr)
}

// uiNode mirrors the uiautomator XML hierarchy.
type uiNode struct {
	Class         string   `xml:"class,attr"`
	ResourceID    string   `xml:"resource-id,attr"`
	Text          string   `xml:"text,attr"`
	ContentDesc   string   `xml:"content-desc,attr"`
	Bounds        string   `xml:"bounds,attr"`
	Clickable     string   `xml:"clickable,attr"`
	LongClickable string   `xml:"long-clickable,attr"`
	Scrollable    string   `xml:"scrollable,attr"`
	Index         string   `xml:"index,attr"`
	Nodes         []uiNode `xml:"node"`
}

var boundsPattern = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// ParseUIElements flattens a uiautomator XML dump into an element list in
// document order.
func ParseUIElements(xmlContent string) ([]Element, error) {
	var root struct {
		Nodes []uiNode `xml:"node"`
	}
	if err := xml.Unmarshal([]byte(xmlContent), &root); err != nil {
		return nil, fmt.Errorf("failed to parse UI dump: %w", err)
	}

	var elements []Element
	var walk func(nodes []uiNode)
	walk = func(nodes []uiNode) {
		for _, n := range nodes {
			if e, ok := nodeToElement(n); ok {
				elements = append(elements, e)
			}
			walk(n.Nodes)
		}
	}
	walk(root.Nodes)
	return elements, nil
}

func nodeToElement(n uiNode) (Element, bool) {
	m := boundsPattern.FindStringSubmatch(n.Bounds)
	if m == nil {
		return Element{}, false
	}
	return Element{
		Class:         n.Class,
		ResourceID:    n.ResourceID,
		Text:          n.Text,
		ContentDesc:   n.ContentDesc,
		Bounds:        Rect{atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4])},
		Clickable:     n.Clickable == "true",
		LongClickable: n.LongClickable == "true",
		Index:         atoi(n.Index),
	}, true
}

// ========================================
// Snapshot provider
// ========================================

// SnapshotProvider supplies fresh UI element snapshots.
type SnapshotProvider interface {
	Snapshot() ([]Element, error)
}

// snapshotInvalidator is implemented by providers that cache snapshots.
type snapshotInvalidator interface {
	Invalidate()
}

// invalidateSnapshots drops a provider's cached snapshot, if it keeps one.
// Called at step boundaries so a step never resolves against the screen as
// the previous step left it.
func invalidateSnapshots(p SnapshotProvider) {
	if inv, ok := p.(snapshotInvalidator); ok {
		inv.Invalidate()
	}
}

// DeviceSnapshotProvider dumps snapshots over adb. Dumps are rate limited
// and briefly cached because uiautomator takes hundreds of milliseconds
// and concurrent dumps wedge it.
type DeviceSnapshotProvider struct {
	adb      *Adb
	deviceID string
	limiter  *rate.Limiter

	mu       sync.Mutex
	cached   []Element
	cachedAt time.Time
	cacheTTL time.Duration
}

// NewDeviceSnapshotProvider returns a provider for the given device.
func NewDeviceSnapshotProvider(adb *Adb, deviceID string) *DeviceSnapshotProvider {
	return &DeviceSnapshotProvider{
		adb:      adb,
		deviceID: deviceID,
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		cacheTTL: 300 * time.Millisecond,
	}
}

// Snapshot returns the current UI element list. Calls within the cache TTL
// reuse the previous dump.
func (p *DeviceSnapshotProvider) Snapshot() ([]Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.cachedAt) < p.cacheTTL {
		return p.cached, nil
	}

	if err := p.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}

	xmlContent, err := p.adb.DumpUIXML(p.deviceID)
	if err != nil {
		return nil, err
	}
	elements, err := ParseUIElements(xmlContent)
	if err != nil {
		return nil, err
	}

	p.cached = elements
	p.cachedAt = time.Now()
	return elements, nil
}

// SnapshotXML dumps the raw XML, bypassing the element cache. Used by the
// recorder to persist per-step snapshots.
func (p *DeviceSnapshotProvider) SnapshotXML() (string, error) {
	if err := p.limiter.Wait(context.Background()); err != nil {
		return "", err
	}
	return p.adb.DumpUIXML(p.deviceID)
}

// Invalidate drops the cached snapshot. Called after input that changes
// the UI.
func (p *DeviceSnapshotProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
