package config

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vault-md/vaultheat/internal/storage"
)

// PastYear selects the rolling window ending today instead of a calendar year.
const PastYear = "Past year"

// UpdateIntervals lists the accepted update intervals in minutes.
var UpdateIntervals = []int{1, 5, 10, 30, 60}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Settings are the user-facing heatmap preferences, kept as a YAML document
// next to the activity data.
type Settings struct {
	Metric         string `yaml:"metric"`
	Year           string `yaml:"year"`
	UpdateInterval int    `yaml:"updateInterval"` // minutes
}

// DefaultSettings returns the settings used when no document exists.
func DefaultSettings() Settings {
	return Settings{
		Metric:         "fileSize",
		Year:           PastYear,
		UpdateInterval: 1,
	}
}

// Validate checks the settings against the known metric kinds.
func (s Settings) Validate(kinds []string) error {
	known := false
	for _, kind := range kinds {
		if kind == s.Metric {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("metric must be one of %s, got %q", strings.Join(kinds, ", "), s.Metric)
	}

	if s.Year != PastYear && !yearPattern.MatchString(s.Year) {
		return fmt.Errorf("year must be %q or a four digit year, got %q", PastYear, s.Year)
	}

	if !validInterval(s.UpdateInterval) {
		return fmt.Errorf("updateInterval must be one of %v minutes, got %d", UpdateIntervals, s.UpdateInterval)
	}
	return nil
}

func validInterval(minutes int) bool {
	for _, allowed := range UpdateIntervals {
		if minutes == allowed {
			return true
		}
	}
	return false
}

// EncodeSettings renders settings as YAML.
func EncodeSettings(s Settings) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}

// DecodeSettings parses YAML settings. Missing fields keep their defaults.
func DecodeSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// LoadSettings reads the settings document, returning defaults when absent.
func LoadSettings(ctx context.Context, store storage.DocumentStore) (Settings, error) {
	data, err := store.Load(ctx, storage.SettingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return DecodeSettings(data)
}

// SaveSettings writes the settings document.
func SaveSettings(ctx context.Context, store storage.DocumentStore, s Settings) error {
	data, err := EncodeSettings(s)
	if err != nil {
		return err
	}
	if err := store.EnsureFolder(ctx, storage.SettingsKey); err != nil {
		return fmt.Errorf("failed to prepare settings folder: %w", err)
	}
	if err := store.Save(ctx, storage.SettingsKey, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// SettingKeys lists the keys accepted by Get and Set.
func SettingKeys() []string {
	return []string{"metric", "year", "updateInterval"}
}

// Get returns a setting by key.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "metric":
		return s.Metric, nil
	case "year":
		return s.Year, nil
	case "updateInterval":
		return strconv.Itoa(s.UpdateInterval), nil
	default:
		return "", fmt.Errorf("unknown setting: %s", key)
	}
}

// Set updates a setting by key. The result is not validated.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "metric":
		s.Metric = value
	case "year":
		s.Year = value
	case "updateInterval":
		minutes, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("updateInterval must be a number of minutes: %w", err)
		}
		s.UpdateInterval = minutes
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}
