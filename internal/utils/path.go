package utils

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ResolveDataDir finds the dictionary location. It tries, in order:
// 1. userPath itself (absolute or relative to the working directory)
// 2. userPath relative to the executable directory
// 3. data/ next to the executable, then in its parent
// 4. data/ under configDir
// The first candidate that exists wins. If none does, userPath is returned
// unchanged so the caller can report it.
func ResolveDataDir(userPath, configDir string) string {
	var candidates []string
	if userPath != "" {
		candidates = append(candidates, userPath)
	}
	if execDir, err := GetExecutableDir(); err == nil {
		if userPath != "" && !filepath.IsAbs(userPath) {
			candidates = append(candidates, filepath.Join(execDir, userPath))
		}
		candidates = append(candidates,
			filepath.Join(execDir, "data"),
			filepath.Join(filepath.Dir(execDir), "data"),
		)
	}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, "data"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			log.Debugf("Found data path: %s", path)
			return path
		}
		log.Debugf("Data path candidate not found: %s", path)
	}
	return userPath
}
