package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Read decodes the settings file at path on top of the defaults. Unknown keys
// are ignored; a key with a malformed value keeps its default and is reported
// in the returned error alongside the successfully decoded settings.
func Read(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings file: %w", err)
	}

	values := map[string]any{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &values)
	} else {
		err = json.Unmarshal(data, &values)
	}
	if err != nil {
		return s, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	var errs []error
	for _, key := range Keys() {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := s.apply(key, value); err != nil {
			errs = append(errs, err)
		}
	}

	return s, errors.Join(errs...)
}

// Load is Read without errors: anything unreadable falls back to defaults.
func Load(path string) Settings {
	s, _ := Read(path)
	return s
}

func Save(path string, s Settings) error {
	if s.InputPaths == nil {
		s.InputPaths = []string{}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
