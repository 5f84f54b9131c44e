package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// DirStatus reports what CheckDirStatus found.
type DirStatus struct {
	Exists   bool
	Writable bool
	Error    error
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func EnsureDir(dirPath string) error {
	return os.MkdirAll(dirPath, 0o755)
}

// WriteFileAtomic writes through a temp file in the target's directory and
// renames it into place, so readers never see a partial file.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// SaveTOMLFile encodes data as TOML into filePath.
func SaveTOMLFile(data any, filePath string) error {
	err := WriteFileAtomic(filePath, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(data)
	})
	if err != nil {
		log.Errorf("Failed to write %s: %v", filePath, err)
	}
	return err
}

// GetAbsolutePath resolves configPath against the working directory.
// An empty path reads as "unknown" for display.
func GetAbsolutePath(configPath string) string {
	if configPath == "" {
		return "unknown"
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		return abs
	}
	return configPath
}

func GetExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Dir(execPath), nil
}

// CheckDirStatus creates dirPath when missing and checks that it is writable.
func CheckDirStatus(dirPath string) DirStatus {
	var st DirStatus
	info, err := os.Stat(dirPath)
	switch {
	case err == nil && !info.IsDir():
		st.Error = fmt.Errorf("%s is not a directory", dirPath)
		return st
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			log.Warnf("Cannot create directory %s: %v", dirPath, err)
			st.Error = err
			return st
		}
	case err != nil:
		st.Error = err
		return st
	}
	st.Exists = true

	tmp, err := os.CreateTemp(dirPath, ".write_test*")
	if err != nil {
		log.Warnf("Cannot write to directory %s: %v", dirPath, err)
		return st
	}
	tmp.Close()
	os.Remove(tmp.Name())
	st.Writable = true
	return st
}
