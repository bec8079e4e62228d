// Package paths provides sudo-aware path resolution for animerge.
//
// When running with sudo, these functions resolve paths to the original
// user's directories (via SUDO_USER) instead of root's. ANIMERGE_HOME
// overrides the application directory entirely.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
)

// HomeEnv names the environment variable that relocates the app directory.
const HomeEnv = "ANIMERGE_HOME"

// UserHomeDir returns the home directory of the actual user.
// If running with sudo, returns the SUDO_USER's home directory, not root's.
func UserHomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && sudoUser != "root" {
		u, err := user.Lookup(sudoUser)
		if err == nil {
			return u.HomeDir, nil
		}
		// Fall through if lookup fails
	}

	return os.UserHomeDir()
}

// UserConfigDir returns ~/.config of the actual user.
func UserConfigDir() (string, error) {
	homeDir, err := UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config"), nil
}

// AppDir returns the animerge directory: $ANIMERGE_HOME if set, otherwise
// ~/.config/animerge for the actual user.
func AppDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	configDir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "animerge"), nil
}

func inAppDir(elem ...string) (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// DatabasePath returns <app dir>/anime.db.
func DatabasePath() (string, error) {
	return inAppDir("anime.db")
}

// ConfigPath returns <app dir>/config.toml.
func ConfigPath() (string, error) {
	return inAppDir("config.toml")
}

// LogFile returns <app dir>/logs/animerge.log.
func LogFile() (string, error) {
	return inAppDir("logs", "animerge.log")
}

// IngestDir returns the default drop directory, <app dir>/incoming.
func IngestDir() (string, error) {
	return inAppDir("incoming")
}

// ActualUser returns the actual username (not root when using sudo).
func ActualUser() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && sudoUser != "root" {
		return sudoUser
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
