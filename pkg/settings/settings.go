// Package settings persists user preferences as JSON under the
// platform config directory.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UserSettings holds persistable user preferences
type UserSettings struct {
	HostName   string `json:"hostName"`
	SignalURL  string `json:"signalUrl"`
	TURNServer string `json:"turnServer"`
	TURNUser   string `json:"turnUser"`
	TURNPass   string `json:"turnPass"`
	ForceRelay bool   `json:"forceRelay"`
}

// Manager handles loading and saving user settings
type Manager struct {
	path     string
	settings UserSettings
}

// NewManager creates a settings manager with the default config path
func NewManager() (*Manager, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return &Manager{path: path}, nil
}

// getConfigPath returns the config file path.
// Uses XDG_CONFIG_HOME if set, otherwise the platform config directory.
func getConfigPath() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "remote-desk")
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, "remote-desk")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// DefaultSettings returns the default settings
func DefaultSettings() UserSettings {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "remote-desk"
	}
	return UserSettings{HostName: host}
}

// Load reads settings from the config file.
// Returns default settings if the file doesn't exist or is invalid.
func (m *Manager) Load() (UserSettings, error) {
	m.settings = DefaultSettings()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			// First run, defaults apply
			return m.settings, nil
		}
		return m.settings, err
	}

	if err := json.Unmarshal(data, &m.settings); err != nil {
		return DefaultSettings(), nil
	}
	if m.settings.HostName == "" {
		m.settings.HostName = DefaultSettings().HostName
	}

	return m.settings, nil
}

// Save writes current settings to the config file
func (m *Manager) Save(settings UserSettings) error {
	m.settings = settings

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.path, data, 0644)
}

// GetSettings returns the current settings
func (m *Manager) GetSettings() UserSettings {
	return m.settings
}
