package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ScreenSize is a cached device screen resolution.
type ScreenSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Settings represents persistent application settings
type Settings struct {
	LastActive   map[string]int64 `json:"lastActive"`
	PinnedSerial string           `json:"pinnedSerial"`
}

// Service manages screen-size caching and settings persistence
type Service struct {
	// Paths
	configDir    string
	screenPath   string
	settingsPath string

	// Screen size cache
	screenCache   map[string]ScreenSize
	screenCacheMu sync.RWMutex

	// Settings state (kept in sync with file)
	lastActive   map[string]int64
	lastActiveMu sync.RWMutex

	pinnedSerial string
	pinnedMu     sync.RWMutex

	// Logger function (optional)
	logFunc func(format string, args ...interface{})
}

// Config for creating a new Service
type Config struct {
	ConfigDir string
	LogFunc   func(format string, args ...interface{})
}

// New creates a new Service instance
func New(cfg Config) (*Service, error) {
	configDir := cfg.ConfigDir
	if configDir == "" {
		var err error
		configDir, err = os.UserConfigDir()
		if err != nil {
			configDir = os.TempDir()
		}
		configDir = filepath.Join(configDir, "ditto")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	s := &Service{
		configDir:    configDir,
		screenPath:   filepath.Join(configDir, "screen_cache.json"),
		settingsPath: filepath.Join(configDir, "settings.json"),
		screenCache:  make(map[string]ScreenSize),
		lastActive:   make(map[string]int64),
		logFunc:      cfg.LogFunc,
	}

	// Load persisted data
	s.loadScreenCache()
	s.loadSettings()

	return s, nil
}

// log writes a log message if logFunc is set
func (s *Service) log(format string, args ...interface{}) {
	if s.logFunc != nil {
		s.logFunc(format, args...)
	}
}

// ========================================
// Screen Size Cache Methods
// ========================================

// ScreenSize returns a cached screen size if one exists
func (s *Service) ScreenSize(deviceID string) (ScreenSize, bool) {
	s.screenCacheMu.RLock()
	defer s.screenCacheMu.RUnlock()
	size, exists := s.screenCache[deviceID]
	return size, exists
}

// SetScreenSize caches a device's screen size
func (s *Service) SetScreenSize(deviceID string, size ScreenSize) {
	s.screenCacheMu.Lock()
	s.screenCache[deviceID] = size
	s.screenCacheMu.Unlock()
}

// ClearScreenCache clears the entire screen size cache
func (s *Service) ClearScreenCache() {
	s.screenCacheMu.Lock()
	s.screenCache = make(map[string]ScreenSize)
	s.screenCacheMu.Unlock()
}

// SaveScreenCache persists the screen size cache to disk
func (s *Service) SaveScreenCache() error {
	s.screenCacheMu.RLock()
	data, err := json.Marshal(s.screenCache)
	s.screenCacheMu.RUnlock()

	if err != nil {
		s.log("Error marshaling screen cache: %v", err)
		return err
	}

	if err := os.WriteFile(s.screenPath, data, 0644); err != nil {
		s.log("Error saving screen cache to %s: %v", s.screenPath, err)
		return err
	}
	return nil
}

func (s *Service) loadScreenCache() {
	s.screenCacheMu.Lock()
	defer s.screenCacheMu.Unlock()

	data, err := os.ReadFile(s.screenPath)
	if err != nil {
		return
	}

	_ = json.Unmarshal(data, &s.screenCache)
}

// ========================================
// Settings Methods
// ========================================

// GetLastActive returns the last active timestamp for a device
func (s *Service) GetLastActive(deviceID string) int64 {
	s.lastActiveMu.RLock()
	defer s.lastActiveMu.RUnlock()
	return s.lastActive[deviceID]
}

// SetLastActive updates the last active timestamp for a device
func (s *Service) SetLastActive(deviceID string, timestamp int64) {
	s.lastActiveMu.Lock()
	s.lastActive[deviceID] = timestamp
	s.lastActiveMu.Unlock()
}

// GetAllLastActive returns a copy of all last active timestamps
func (s *Service) GetAllLastActive() map[string]int64 {
	s.lastActiveMu.RLock()
	defer s.lastActiveMu.RUnlock()
	result := make(map[string]int64, len(s.lastActive))
	for k, v := range s.lastActive {
		result[k] = v
	}
	return result
}

// GetPinnedSerial returns the pinned device serial
func (s *Service) GetPinnedSerial() string {
	s.pinnedMu.RLock()
	defer s.pinnedMu.RUnlock()
	return s.pinnedSerial
}

// SetPinnedSerial sets the pinned device serial
func (s *Service) SetPinnedSerial(serial string) {
	s.pinnedMu.Lock()
	s.pinnedSerial = serial
	s.pinnedMu.Unlock()
}

// SaveSettings persists settings to disk
func (s *Service) SaveSettings() error {
	s.lastActiveMu.RLock()
	lastActive := make(map[string]int64)
	for k, v := range s.lastActive {
		lastActive[k] = v
	}
	s.lastActiveMu.RUnlock()

	s.pinnedMu.RLock()
	pinnedSerial := s.pinnedSerial
	s.pinnedMu.RUnlock()

	settings := Settings{
		LastActive:   lastActive,
		PinnedSerial: pinnedSerial,
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}

func (s *Service) loadSettings() {
	if s.settingsPath == "" {
		return
	}
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return
	}

	s.lastActiveMu.Lock()
	if settings.LastActive != nil {
		s.lastActive = settings.LastActive
	}
	s.lastActiveMu.Unlock()

	s.pinnedMu.Lock()
	s.pinnedSerial = settings.PinnedSerial
	s.pinnedMu.Unlock()
}

// ========================================
// Path Accessors
// ========================================

// ConfigDir returns the configuration directory path
func (s *Service) ConfigDir() string {
	return s.configDir
}

// ScreenCachePath returns the screen cache file path
func (s *Service) ScreenCachePath() string {
	return s.screenPath
}

// SettingsPath returns the settings file path
func (s *Service) SettingsPath() string {
	return s.settingsPath
}

// ========================================
// Shutdown
// ========================================

// Close saves all caches and settings before shutdown
func (s *Service) Close() error {
	if err := s.SaveScreenCache(); err != nil {
		s.log("Error saving screen cache on close: %v", err)
	}
	if err := s.SaveSettings(); err != nil {
		s.log("Error saving settings on close: %v", err)
	}
	return nil
}
