package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName          = "batchscribe"
	settingsFileName = ".batchscribe.json"
	settingsEnv      = "BATCHSCRIBE_CONFIG"
	outputDirName    = "output_text"
)

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// SettingsPathFor picks the settings file: an explicit override, then the
// environment override, then a dot file in the home directory.
func SettingsPathFor(override, envValue, homeDir string) (string, error) {
	if v := strings.TrimSpace(override); v != "" {
		return filepath.Clean(v), nil
	}
	if v := strings.TrimSpace(envValue); v != "" {
		return filepath.Clean(v), nil
	}
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(homeDir, settingsFileName), nil
}

func ResolveSettingsPath(override string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil && strings.TrimSpace(override) == "" && os.Getenv(settingsEnv) == "" {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return SettingsPathFor(override, os.Getenv(settingsEnv), homeDir)
}

// DefaultOutputDir is output_text next to the running executable, falling
// back to the working directory.
func DefaultOutputDir() string {
	exe, err := os.Executable()
	if err != nil {
		return outputDirName
	}
	return filepath.Join(filepath.Dir(exe), outputDirName)
}

func DefaultModelDirFor(goos, homeDir, dataHome string) (string, error) {
	dataDir, err := defaultDataDirFor(goos, homeDir, dataHome)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if runtime.GOOS == "windows" {
		dataHome = os.Getenv("LOCALAPPDATA")
	}
	return DefaultModelDirFor(runtime.GOOS, homeDir, dataHome)
}

// defaultDataDirFor treats dataHome as XDG_DATA_HOME on linux and as
// LOCALAPPDATA on windows.
func defaultDataDirFor(goos, homeDir, dataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux", "freebsd", "openbsd":
		if dataHome != "" {
			return filepath.Join(dataHome, appName), nil
		}
		return filepath.Join(homeDir, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName), nil
	case "windows":
		if dataHome != "" {
			return filepath.Join(dataHome, appName), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
