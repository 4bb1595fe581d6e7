// Package settings implements the runtime-mutable configuration
// surface (A2): a JSON-backed manager using the same atomic.Value
// plus publish/subscribe hot-reload pattern the teacher's
// SettingsManager uses for its own settings.json, simplified to the
// single flat EngineSettings shape spec.md §6 calls for instead of the
// teacher's per-module composite document.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// SettingsManager is thread-safe: Get is lock-free, Update serializes
// writers and persists before swapping the live pointer.
type SettingsManager struct {
	filePath    string
	settings    atomic.Value // *EngineSettings

	mu          sync.RWMutex
	subscribers []ConfigurableModule
}

// NewSettingsManager loads filePath, creating it with defaults if it
// doesn't exist yet. An empty filePath runs in-memory only, useful for
// tests that don't want a settings.json on disk.
func NewSettingsManager(filePath string) (*SettingsManager, error) {
	sm := &SettingsManager{filePath: filePath}

	if filePath == "" {
		sm.settings.Store(DefaultSettings())
		return sm, nil
	}

	if err := sm.load(); err != nil {
		return nil, fmt.Errorf("load initial settings: %w", err)
	}
	return sm, nil
}

func (sm *SettingsManager) load() error {
	data, err := os.ReadFile(sm.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", sm.filePath).Msg("settings file not found, writing defaults")
			defaults := DefaultSettings()
			if werr := sm.persist(defaults); werr != nil {
				return fmt.Errorf("write default settings file: %w", werr)
			}
			sm.settings.Store(defaults)
			return nil
		}
		return fmt.Errorf("read settings file: %w", err)
	}

	loaded := DefaultSettings()
	if err := json.Unmarshal(data, loaded); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}
	sm.settings.Store(loaded)
	return nil
}

// Register adds a subscriber notified on every successful Update.
func (sm *SettingsManager) Register(module ConfigurableModule) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.subscribers = append(sm.subscribers, module)
}

// Get returns the current settings snapshot. Lock-free.
func (sm *SettingsManager) Get() *EngineSettings {
	return sm.settings.Load().(*EngineSettings)
}

// Update replaces the live settings wholesale, persists to disk (when
// a file path was given), swaps the atomic pointer, and notifies
// subscribers asynchronously — mirroring the teacher's Update/persist/
// notify sequence.
func (sm *SettingsManager) Update(next *EngineSettings) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	next = next.clone()

	if sm.filePath != "" {
		if err := sm.persist(next); err != nil {
			return fmt.Errorf("persist updated settings: %w", err)
		}
	}

	sm.settings.Store(next)

	subscribers := append([]ConfigurableModule(nil), sm.subscribers...)
	go sm.notify(next, subscribers)

	return nil
}

func (sm *SettingsManager) persist(s *EngineSettings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sm.filePath, data, 0644)
}

func (sm *SettingsManager) notify(s *EngineSettings, subscribers []ConfigurableModule) {
	for _, sub := range subscribers {
		if err := sub.OnSettingsUpdate(s); err != nil {
			log.Error().Err(err).Msg("settings subscriber rejected update")
		}
	}
}
