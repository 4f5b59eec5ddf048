package utils

import (
	"os"
	"path/filepath"
	"strings"
)

const DefaultDataDir = ".data"

func ExpandDefaultPath(dataDir string, currentValue string, defaultFileName string) string {
	if currentValue == "" {
		return filepath.Join(dataDir, defaultFileName)
	}

	return currentValue
}

func ExpandHomeDir(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}
	return path
}

func CreateDirIfNotExists(dir string) error {
	if !FileExists(dir) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
