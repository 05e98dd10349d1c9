package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"focustimer/backend/internal/model"
)

type yamlSettings struct {
	FocusSeconds int `yaml:"focus_seconds"`
	BreakSeconds int `yaml:"break_seconds"`
	DelaySeconds int `yaml:"delay_seconds"`
}

// LoadSettings reads the timer durations from YAML.
// If the file does not exist, default durations are returned.
func LoadSettings(path string) (model.Durations, error) {
	durations := model.DefaultDurations()
	if path == "" {
		return durations, nil
	}

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return durations, nil
		}
		return durations, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return durations, fmt.Errorf("parse settings yaml: %w", err)
	}

	if fileData.FocusSeconds > 0 {
		durations.FocusSeconds = fileData.FocusSeconds
	}
	if fileData.BreakSeconds > 0 {
		durations.BreakSeconds = fileData.BreakSeconds
	}
	if fileData.DelaySeconds > 0 {
		durations.DelaySeconds = fileData.DelaySeconds
	}
	return durations, nil
}

// SaveSettings writes the timer durations to YAML.
func SaveSettings(path string, durations model.Durations) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	serialized, err := yaml.Marshal(yamlSettings{
		FocusSeconds: durations.FocusSeconds,
		BreakSeconds: durations.BreakSeconds,
		DelaySeconds: durations.DelaySeconds,
	})
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
