package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppDirName is the directory created under the user data directory.
	AppDirName = "Tapline"

	// DatabaseFileName is the production database file.
	DatabaseFileName = "tapline.db"
)

// UserDataDir returns the per-user application data directory for this OS.
func UserDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return userDataDir(runtime.GOOS, home, os.Getenv), nil
}

func userDataDir(goos, home string, getenv func(string) string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support")
	case "windows":
		if appData := getenv("AppData"); appData != "" {
			return appData
		}
		return filepath.Join(home, "AppData", "Roaming")
	default:
		if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
			return xdg
		}
		return filepath.Join(home, ".local", "share")
	}
}
