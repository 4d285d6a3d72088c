package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "casetrace"

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/casetrace/
//   - Linux:   $XDG_DATA_HOME/casetrace/ or ~/.local/share/casetrace/
//   - Windows: %APPDATA%\casetrace\
//
// Falls back to ~/.casetrace if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir()
	case "linux":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "windows":
		return windowsDir()
	default:
		return fallbackDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/casetrace/
//   - Linux:   $XDG_CONFIG_HOME/casetrace/ or ~/.config/casetrace/
//   - Windows: %APPDATA%\casetrace\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir() // macOS uses same dir for config and data
	case "linux":
		return xdgDir("XDG_CONFIG_HOME", ".config")
	case "windows":
		return windowsDir()
	default:
		return fallbackDir()
	}
}

func macOSDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", appName)
}

// xdgDir follows the XDG Base Directory Specification.
func xdgDir(env string, fallback ...string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

func windowsDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", appName)
}

func fallbackDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+appName)
}
