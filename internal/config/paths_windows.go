//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	local := os.Getenv("LOCALAPPDATA")
	programData := os.Getenv("ProgramData")
	return []string{
		"rocemon.yaml",
		filepath.Join(local, "rocemon", "config.yaml"),
		filepath.Join(programData, "rocemon", "rocemon.yaml"),
	}
}
