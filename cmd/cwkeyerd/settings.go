package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cwkeyer/internal/keyer"
)

// settingsFile is the on-disk form of the persisted keyer settings.
type settingsFile struct {
	Mode string `yaml:"mode"`
	WPM  int    `yaml:"wpm"`
}

// SettingsStore keeps speed and mode across restarts in a small YAML file.
// Writes are atomic: a temp file in the same directory is renamed over the old one.
type SettingsStore struct {
	path string
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: ExpandPath(path)}
}

// Load reads the settings file. A missing file is not an error; ok is false then.
func (s *SettingsStore) Load() (settings KeyerSettings, ok bool, err error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return KeyerSettings{}, false, nil
	}
	if err != nil {
		return KeyerSettings{}, false, fmt.Errorf("read settings: %w", err)
	}

	var f settingsFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return KeyerSettings{}, false, fmt.Errorf("decode settings yaml: %w", err)
	}

	mode, err := keyer.ParseMode(f.Mode)
	if err != nil {
		return KeyerSettings{}, false, fmt.Errorf("settings: %w", err)
	}
	if f.WPM < 0 || f.WPM > 255 {
		return KeyerSettings{}, false, fmt.Errorf("settings: wpm out of range: %d", f.WPM)
	}
	return KeyerSettings{Mode: mode, WPM: uint8(f.WPM)}, true, nil
}

// Save writes the settings file atomically.
func (s *SettingsStore) Save(settings KeyerSettings) error {
	b, err := yaml.Marshal(settingsFile{Mode: settings.Mode.String(), WPM: int(settings.WPM)})
	if err != nil {
		return fmt.Errorf("encode settings yaml: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// startSettings resolves the settings the keyer starts with: the settings
// file when it exists and is valid, otherwise the config file values.
// fromFile reports which one was used. Saved speeds outside
// [min_wpm, max_wpm] are clamped; 0 is kept.
func startSettings(cfg *Config, store *SettingsStore) (settings KeyerSettings, fromFile bool, err error) {
	mode, err := keyer.ParseMode(cfg.Keyer.Mode)
	if err != nil {
		return KeyerSettings{}, false, err
	}
	base := KeyerSettings{Mode: mode, WPM: uint8(cfg.Keyer.WPM)}
	if store == nil {
		return base, false, nil
	}

	saved, ok, err := store.Load()
	if err != nil {
		return base, false, err
	}
	if !ok {
		return base, false, nil
	}
	saved.WPM = clampWPM(int(saved.WPM), uint8(cfg.Keyer.MinWPM), uint8(cfg.Keyer.MaxWPM))
	return saved, true, nil
}
