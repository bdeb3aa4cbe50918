package cache

import (
	"testing"
)

func newTestService(t *testing.T, dir string) *Service {
	t.Helper()
	s, err := New(Config{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return s
}

func TestScreenCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, dir)

	if _, ok := s.ScreenSize("emulator-5554"); ok {
		t.Error("Expected empty cache initially")
	}

	s.SetScreenSize("emulator-5554", ScreenSize{Width: 1080, Height: 1920})
	size, ok := s.ScreenSize("emulator-5554")
	if !ok || size.Width != 1080 || size.Height != 1920 {
		t.Errorf("Unexpected cached size: %+v ok=%v", size, ok)
	}

	if err := s.SaveScreenCache(); err != nil {
		t.Fatalf("Failed to save screen cache: %v", err)
	}

	// A fresh service over the same directory sees the persisted entry.
	reloaded := newTestService(t, dir)
	size, ok = reloaded.ScreenSize("emulator-5554")
	if !ok || size.Width != 1080 || size.Height != 1920 {
		t.Errorf("Expected persisted size after reload, got %+v ok=%v", size, ok)
	}

	reloaded.ClearScreenCache()
	if _, ok := reloaded.ScreenSize("emulator-5554"); ok {
		t.Error("Expected cleared cache")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, dir)

	s.SetPinnedSerial("emulator-5554")
	s.SetLastActive("emulator-5554", 1724500000)
	s.SetLastActive("0A1B2C", 1724400000)

	if err := s.SaveSettings(); err != nil {
		t.Fatalf("Failed to save settings: %v", err)
	}

	reloaded := newTestService(t, dir)
	if got := reloaded.GetPinnedSerial(); got != "emulator-5554" {
		t.Errorf("Expected pinned serial to persist, got %q", got)
	}
	if got := reloaded.GetLastActive("emulator-5554"); got != 1724500000 {
		t.Errorf("Expected last-active timestamp to persist, got %d", got)
	}
	all := reloaded.GetAllLastActive()
	if len(all) != 2 {
		t.Errorf("Expected 2 last-active entries, got %d", len(all))
	}
}

func TestCloseSavesState(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, dir)
	s.SetScreenSize("dev", ScreenSize{Width: 720, Height: 1280})
	s.SetPinnedSerial("dev")

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reloaded := newTestService(t, dir)
	if _, ok := reloaded.ScreenSize("dev"); !ok {
		t.Error("Expected screen cache saved on close")
	}
	if reloaded.GetPinnedSerial() != "dev" {
		t.Error("Expected settings saved on close")
	}
}

func TestServicePaths(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, dir)
	if s.ConfigDir() != dir {
		t.Errorf("Expected config dir %s, got %s", dir, s.ConfigDir())
	}
	if s.ScreenCachePath() == "" || s.SettingsPath() == "" {
		t.Error("Expected non-empty cache paths")
	}
}
