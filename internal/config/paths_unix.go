//go:build linux || darwin

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"rocemon.yaml",
		filepath.Join(home, ".rocemon", "config.yaml"),
		"/etc/rocemon/rocemon.yaml",
	}
}
