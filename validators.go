package main

import (
	"fmt"
	"regexp"
	"strings"
)

// deviceIDPattern validates deviceId format.
// Accepted forms:
// - USB serial: alphanumeric, e.g. "1234567890ABCDEF", "emulator-5554"
// - Wireless device: ip:port, e.g. "192.168.1.100:5555"
// - mDNS device: e.g. "adb-xxxxx._adb-tls-connect._tcp."
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID checks that a device ID is safe to pass to a shell
// command line.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceID) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("invalid device ID format: contains illegal characters")
	}
	dangerousPatterns := []string{";", "&&", "||", "|", "`", "$", "(", ")", "{", "}", "<", ">", "!", "'", "\"", "\\"}
	for _, p := range dangerousPatterns {
		if strings.Contains(deviceID, p) {
			return fmt.Errorf("invalid device ID format: contains dangerous character '%s'", p)
		}
	}
	return nil
}

// ValidateCoordinates clamps coordinates to non-negative values.
func ValidateCoordinates(x, y int) (int, int) {
	if x < 0 || y < 0 {
		LogWarn("validators").Int("x", x).Int("y", y).Msg("Negative coordinates, clamping to 0")
		x = max(0, x)
		y = max(0, y)
	}
	return x, y
}

// ValidateSwipeCoordinates clamps swipe endpoints to non-negative values.
func ValidateSwipeCoordinates(x1, y1, x2, y2 int) (int, int, int, int) {
	if x1 < 0 || y1 < 0 || x2 < 0 || y2 < 0 {
		LogWarn("validators").Msg("Negative swipe coordinates, clamping to 0")
		x1 = max(0, x1)
		y1 = max(0, y1)
		x2 = max(0, x2)
		y2 = max(0, y2)
	}
	return x1, y1, x2, y2
}

// maxTextInputLength bounds a single text input action.
const maxTextInputLength = 5000

// ValidateTextInput truncates overlong text input.
func ValidateTextInput(text string) string {
	if len(text) > maxTextInputLength {
		LogWarn("validators").Int("length", len(text)).Msg("Text too long, truncating")
		return text[:maxTextInputLength]
	}
	return text
}

// ValidateChunkSize clamps the text input chunk size to [1, 50].
func ValidateChunkSize(chunkSize int) int {
	const minSize, maxSize = 1, 50
	if chunkSize < minSize || chunkSize > maxSize {
		clamped := max(minSize, min(chunkSize, maxSize))
		LogWarn("validators").
			Int("chunk_size", chunkSize).
			Int("clamped", clamped).
			Msg("Chunk size out of range")
		return clamped
	}
	return chunkSize
}
