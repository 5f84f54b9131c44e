package utils

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// LoadTOMLFile decodes configPath into config. Parse errors carry the
// line of the problem.
func LoadTOMLFile(configPath string, config any) error {
	_, err := toml.DecodeFile(configPath, config)
	if err == nil {
		return nil
	}
	var perr toml.ParseError
	if errors.As(err, &perr) {
		err = fmt.Errorf("%s:%d: %s", configPath, perr.Position.Line, perr.Message)
	}
	log.Warnf("TOML parsing error: %v. Attempting partial recovery...", err)
	return err
}

// ParseTOMLWithRecovery decodes configPath into a generic map, so sections
// that fail to match the typed config can still be salvaged key by key.
func ParseTOMLWithRecovery(configPath string) (map[string]any, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(configPath, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func lookup[T any](data map[string]any, key string) (T, bool) {
	v, ok := data[key].(T)
	return v, ok
}

func ExtractSection(data map[string]any, name string) (map[string]any, bool) {
	return lookup[map[string]any](data, name)
}

// ExtractInt64 reads a TOML integer as an int.
func ExtractInt64(data map[string]any, key string) (int, bool) {
	v, ok := lookup[int64](data, key)
	return int(v), ok
}

func ExtractBool(data map[string]any, key string) (bool, bool) {
	return lookup[bool](data, key)
}

// ExtractFloat reads a number; TOML integers are accepted too.
func ExtractFloat(data map[string]any, key string) (float64, bool) {
	if v, ok := lookup[float64](data, key); ok {
		return v, true
	}
	v, ok := lookup[int64](data, key)
	return float64(v), ok
}

func ExtractString(data map[string]any, key string) (string, bool) {
	return lookup[string](data, key)
}
