package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const appName = "vaultheat"

// GetDataDir resolves the base directory for all vaultheat storage. It checks
// VAULTHEAT_DIR first, then XDG paths, and finally falls back to the user's
// home directory.
func GetDataDir() string {
	if explicit := os.Getenv("VAULTHEAT_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// GetConfigFile returns the default location of config.yaml.
func GetConfigFile() string {
	xdg.Reload()

	configHome := xdg.ConfigHome
	if configHome == "" {
		configHome = filepath.Join(GetDataDir(), "config")
	}
	return filepath.Join(configHome, appName, "config.yaml")
}

// GetVaultDataDir returns the directory that stores the documents of one vault.
func GetVaultDataDir(vaultPath string) string {
	return filepath.Join(GetDataDir(), "vaults", EncodeVaultPath(vaultPath))
}

// GetDBPath returns the SQLite database file of one vault.
func GetDBPath(dataDir string) string {
	return filepath.Join(dataDir, "index.db")
}

// EncodeVaultPath sanitizes vault paths so they can be used as directory names.
func EncodeVaultPath(vaultPath string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", ".", "-", "_", "-", " ", "-")
	return strings.Trim(replacer.Replace(filepath.Clean(vaultPath)), "-")
}
