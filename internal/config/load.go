package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// projectConfigName is picked up from the working directory when the user
// has no config under ~/.config.
const projectConfigName = "reelsync.toml"

// DefaultConfigPath returns the absolute location `config init` writes to.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// Load reads the config at path, or the first of ~/.config/reelsync/config.toml
// and ./reelsync.toml that exists when path is empty. Missing files leave the
// defaults in place. It returns the resolved path and whether it existed.
//
// A .env beside the config and one in the working directory are applied
// first without overriding the real environment, so tokens can stay out of
// the TOML file.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := loadDotEnv(filepath.Dir(resolved), "."); err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func locate(path string) (string, bool, error) {
	var candidates []string
	if strings.TrimSpace(path) != "" {
		candidates = []string{path}
	} else {
		candidates = []string{defaultConfigPath, projectConfigName}
	}

	resolved := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		abs, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil && !info.IsDir():
			return abs, true, nil
		case err == nil:
			return "", false, fmt.Errorf("config path %s is a directory", abs)
		case !errors.Is(err, os.ErrNotExist):
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		resolved = append(resolved, abs)
	}
	// Nothing exists: report the first candidate so `config init` and error
	// messages point somewhere sensible.
	return resolved[0], false, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("parse %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(dirs ...string) error {
	var files []string
	for _, dir := range dirs {
		abs, err := filepath.Abs(filepath.Join(dir, ".env"))
		if err != nil || slices.Contains(files, abs) {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
			files = append(files, abs)
		}
	}
	if len(files) == 0 {
		return nil
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if rest, ok := strings.CutPrefix(value, "~"); ok && (rest == "" || rest[0] == '/' || rest[0] == os.PathSeparator) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = home + rest
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", value, err)
	}
	return abs, nil
}
