package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/smartbedmqtt/ble-bridge/types"
)

// ConnectPreferenceStore persists ConnectPreference keyed by
// DeviceKey string form. One JSON file, one in-memory copy guarded by
// a mutex; writes go through writeAtomic.
type ConnectPreferenceStore struct {
	path string
	mu   sync.Mutex
	data map[string]types.ConnectPreference
}

// OpenConnectPreferenceStore loads path if it exists, or starts empty.
func OpenConnectPreferenceStore(path string) (*ConnectPreferenceStore, error) {
	s := &ConnectPreferenceStore{path: path, data: make(map[string]types.ConnectPreference)}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, err
	}
	if s.data == nil {
		s.data = make(map[string]types.ConnectPreference)
	}
	return s, nil
}

// Get returns the stored preference for key, or the zero value if
// none is recorded yet.
func (s *ConnectPreferenceStore) Get(key types.DeviceKey) types.ConnectPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key.String()]
}

// Set records pref for key and persists the store to disk.
func (s *ConnectPreferenceStore) Set(key types.DeviceKey, pref types.ConnectPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key.String()] = pref
	return writeAtomic(s.path, s.data)
}

// BedControllerPrefsStore persists BedControllerPrefs keyed by the
// bed's StableID.
type BedControllerPrefsStore struct {
	path string
	mu   sync.Mutex
	data map[string]*types.BedControllerPrefs
}

// OpenBedControllerPrefsStore loads path if it exists, or starts
// empty.
func OpenBedControllerPrefsStore(path string) (*BedControllerPrefsStore, error) {
	s := &BedControllerPrefsStore{path: path, data: make(map[string]*types.BedControllerPrefs)}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, err
	}
	if s.data == nil {
		s.data = make(map[string]*types.BedControllerPrefs)
	}
	return s, nil
}

// Get returns the prefs for bedID, creating an empty record on first
// access. The returned pointer is shared — callers mutate it in place
// and then call Save to persist.
func (s *BedControllerPrefsStore) Get(bedID string) *types.BedControllerPrefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[bedID]
	if !ok {
		p = types.NewBedControllerPrefs()
		s.data[bedID] = p
	}
	return p
}

// Save persists the current in-memory state to disk. Callers should
// call this after mutating a record returned by Get.
func (s *BedControllerPrefsStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, s.data)
}

func loadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prefs: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("prefs: parse %s: %w", path, err)
	}
	return nil
}

// writeAtomic marshals v and writes it to path via a temp file in the
// same directory followed by an atomic rename, so a process crash
// mid-write never leaves a truncated or partially-written file behind.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prefs: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.tmp")
	if err != nil {
		return fmt.Errorf("prefs: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("prefs: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("prefs: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("prefs: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("prefs: rename into place: %w", err)
	}
	return nil
}
