package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ========================================
// Gesture Executor
// ========================================
// Translates gestures and scripted input actions into `adb shell input`
// commands.

// GestureSink performs a recorded gesture at the given coordinates.
type GestureSink interface {
	Perform(g Gesture, coords Point) bool
}

// DeviceController is the full input surface used by scripted automation:
// gestures plus text, keys, app launch, and screenshots.
type DeviceController interface {
	GestureSink
	TypeText(text string) bool
	PressKey(key string) bool
	OpenApp(pkg string) bool
	Screenshot(path string) (string, error)
}

// AdbController executes input on a device over adb.
type AdbController struct {
	adb      *Adb
	deviceID string
	screenW  int
	screenH  int
}

// NewAdbController returns a controller. Screen size is used to derive
// endpoints for direction-only swipes.
func NewAdbController(adb *Adb, deviceID string, screenW, screenH int) *AdbController {
	return &AdbController{adb: adb, deviceID: deviceID, screenW: screenW, screenH: screenH}
}

func (c *AdbController) input(args ...string) bool {
	_, err := c.adb.Run(c.deviceID, append([]string{"shell", "input"}, args...)...)
	if err != nil {
		LogError("executor").Err(err).Strs("args", args).Msg("Input command failed")
		return false
	}
	return true
}

// Tap taps at the given point.
func (c *AdbController) Tap(x, y int) bool {
	x, y = ValidateCoordinates(x, y)
	return c.input("tap", strconv.Itoa(x), strconv.Itoa(y))
}

// LongPress holds at a point. Implemented as a zero-length swipe, which is
// how `input` expresses press duration.
func (c *AdbController) LongPress(x, y int, durationMs int64) bool {
	x, y = ValidateCoordinates(x, y)
	return c.input("swipe",
		strconv.Itoa(x), strconv.Itoa(y),
		strconv.Itoa(x), strconv.Itoa(y),
		strconv.FormatInt(durationMs, 10))
}

// Swipe swipes between two points.
func (c *AdbController) Swipe(x1, y1, x2, y2 int, durationMs int64) bool {
	x1, y1, x2, y2 = ValidateSwipeCoordinates(x1, y1, x2, y2)
	return c.input("swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.FormatInt(durationMs, 10))
}

// SwipeDirection swipes from the screen center in the given direction, one
// third of the screen dimension.
func (c *AdbController) SwipeDirection(dir Direction, durationMs int64) bool {
	cx, cy := c.screenW/2, c.screenH/2
	dx, dy := 0, 0
	switch dir {
	case DirectionUp:
		dy = -c.screenH / 3
	case DirectionDown:
		dy = c.screenH / 3
	case DirectionLeft:
		dx = -c.screenW / 3
	case DirectionRight:
		dx = c.screenW / 3
	default:
		LogWarn("executor").Str("direction", string(dir)).Msg("Unknown swipe direction")
		return false
	}
	return c.Swipe(cx-dx/2, cy-dy/2, cx+dx/2, cy+dy/2, durationMs)
}

// Pinch approximates a two-finger pinch as two sequential swipes through
// the center. An accurate pinch would need sendevent.
func (c *AdbController) Pinch(centerX, centerY int, scale float64, durationMs int64) bool {
	const baseDistance = 200

	var startDist, endDist int
	if scale > 1 {
		// Zoom in: fingers move apart.
		startDist = int(baseDistance / scale)
		endDist = baseDistance
	} else {
		// Zoom out: fingers move together.
		startDist = baseDistance
		endDist = int(baseDistance * scale)
	}

	ok := c.Swipe(
		centerX-startDist/2, centerY,
		centerX-endDist/2, centerY,
		durationMs)
	time.Sleep(50 * time.Millisecond)
	ok = c.Swipe(
		centerX+startDist/2, centerY,
		centerX+endDist/2, centerY,
		durationMs) && ok
	return ok
}

// Perform executes a recorded gesture at the given coordinates. The
// coordinates override the recorded start point; swipe and scroll endpoints
// are recomputed relative to the new start so the recorded motion is
// preserved.
func (c *AdbController) Perform(g Gesture, coords Point) bool {
	x, y := coords.X, coords.Y

	switch g.Type {
	case GestureTap:
		return c.Tap(x, y)

	case GestureLongPress:
		return c.LongPress(x, y, max(g.DurationMs, 500))

	case GestureSwipe:
		if g.End == nil && g.Direction != "" {
			return c.SwipeDirection(g.Direction, max(g.DurationMs, 200))
		}
		endX, endY := relativeEnd(g, x, y)
		return c.Swipe(x, y, endX, endY, max(g.DurationMs, 200))

	case GestureScroll:
		if g.End == nil && g.Direction != "" {
			return c.SwipeDirection(g.Direction, max(g.DurationMs, 300))
		}
		endX, endY := relativeEnd(g, x, y)
		return c.Swipe(x, y, endX, endY, max(g.DurationMs, 300))

	case GesturePinch:
		scale := g.Scale
		if scale == 0 {
			scale = 1.0
		}
		return c.Pinch(x, y, scale, max(g.DurationMs, 500))
	}

	LogWarn("executor").Str("type", string(g.Type)).Msg("Unknown gesture type")
	return false
}

// relativeEnd translates the recorded end point to be relative to a new
// start position.
func relativeEnd(g Gesture, startX, startY int) (int, int) {
	if g.End == nil {
		return startX, startY
	}
	dx := g.End.X - g.Start.X
	dy := g.End.Y - g.Start.Y
	return startX + dx, startY + dy
}

// ========================================
// Text and key input
// ========================================

const (
	textChunkSize  = 10
	textChunkDelay = 150 * time.Millisecond
)

// TypeText types a string via `input text`, in chunks because long inputs
// drop characters.
func (c *AdbController) TypeText(text string) bool {
	if text == "" {
		return true
	}
	text = ValidateTextInput(text)
	chunkSize := ValidateChunkSize(textChunkSize)

	for i := 0; i < len(text); i += chunkSize {
		chunk := text[i:min(i+chunkSize, len(text))]
		if !c.input("text", escapeTextForShell(chunk)) {
			return false
		}
		if i+chunkSize < len(text) {
			time.Sleep(textChunkDelay)
		}
	}
	return true
}

// escapeTextForShell makes text safe for `input text`: whitespace becomes
// %s, shell metacharacters are backslash-escaped, and non-printable
// characters are dropped.
func escapeTextForShell(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == ' ' || r == '\n' || r == '\r' || r == '\t':
			b.WriteString("%s")
		case strings.ContainsRune(`'"&<>()|;\`+"`"+`$!#*?[]{}.`, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r >= 32 && r < 127:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keyAliases maps friendly key names to Android keycodes.
var keyAliases = map[string]string{
	"back":   "KEYCODE_BACK",
	"home":   "KEYCODE_HOME",
	"menu":   "KEYCODE_MENU",
	"enter":  "KEYCODE_ENTER",
	"delete": "KEYCODE_DEL",
	"tab":    "KEYCODE_TAB",
	"search": "KEYCODE_SEARCH",
	"power":  "KEYCODE_POWER",
}

// PressKey presses a key by alias, keycode name, or raw number.
func (c *AdbController) PressKey(key string) bool {
	if code, ok := keyAliases[strings.ToLower(key)]; ok {
		key = code
	}
	return c.input("keyevent", key)
}

// OpenApp launches an app by package name via monkey, which resolves the
// launcher activity for us.
func (c *AdbController) OpenApp(pkg string) bool {
	_, err := c.adb.Run(c.deviceID, "shell", "monkey",
		"-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		LogError("executor").Err(err).Str("package", pkg).Msg("App launch failed")
		return false
	}
	return true
}

// Screenshot captures the screen and pulls it to the given local path.
// Returns the local path written.
func (c *AdbController) Screenshot(path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	}

	const devicePath = "/sdcard/ditto_screenshot.png"
	if _, err := c.adb.Run(c.deviceID, "shell", "screencap", "-p", devicePath); err != nil {
		return "", fmt.Errorf("screencap failed: %w", err)
	}
	if _, err := c.adb.Run(c.deviceID, "pull", devicePath, path); err != nil {
		return "", fmt.Errorf("screenshot pull failed: %w", err)
	}
	c.adb.Run(c.deviceID, "shell", "rm", devicePath)
	return path, nil
}

// ========================================
// Stateful executor
// ========================================

// GestureExecutor wraps a sink with a fixed delay after each gesture and
// running counters. Used by workflow replay.
type GestureExecutor struct {
	sink          GestureSink
	delay         time.Duration
	executedCount int
	failedCount   int

	// sleep is replaceable for tests.
	sleep func(time.Duration)
}

// NewGestureExecutor returns an executor with the given inter-gesture delay.
func NewGestureExecutor(sink GestureSink, delay time.Duration) *GestureExecutor {
	return &GestureExecutor{sink: sink, delay: delay, sleep: time.Sleep}
}

// Execute performs the gesture, updates counters, and applies the delay.
func (e *GestureExecutor) Execute(g Gesture, coords Point) bool {
	ok := e.sink.Perform(g, coords)
	if ok {
		e.executedCount++
	} else {
		e.failedCount++
	}
	if e.delay > 0 {
		e.sleep(e.delay)
	}
	return ok
}

// Stats returns (executed, failed) counts.
func (e *GestureExecutor) Stats() (int, int) {
	return e.executedCount, e.failedCount
}
