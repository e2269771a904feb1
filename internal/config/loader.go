package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1 << 20

	// EnvPrefix is the prefix of environment variables read by LoadWithFile.
	EnvPrefix = "VECLI_"

	systemConfigDir = "/etc/vecli"
)

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VECLI_QDRANT_HOST, VECLI_EMBEDDINGS_MODEL, etc.)
//  2. YAML config file (~/.config/vecli/config.yaml)
//  3. Hardcoded defaults
//
// Command-line flags sit above all three and are applied by the caller.
//
// The configPath parameter specifies the YAML file to load. If empty, uses default path.
// A missing file is not an error.
//
// # Security Considerations
//
// The file MUST have 0600 or 0400 permissions, MUST live in ~/.config/vecli/ or
// /etc/vecli/, and MUST be smaller than 1MB. The Qdrant API key is held in a
// Secret so it never reaches logs.
//
// # Environment Variable Mapping
//
// The VECLI_ prefix is stripped and the first underscore separates section and field:
//
//	VECLI_QDRANT_HOST       -> qdrant.host
//	VECLI_QDRANT_API_KEY    -> qdrant.api_key
//	VECLI_EMBEDDINGS_MODEL  -> embeddings.model
//	VECLI_COLLECTION_NAME   -> collection.name
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	k := koanf.New(".")

	content, found, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if found {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps VECLI_SECTION_FIELD_NAME to section.field_name.
// Only the first underscore after the prefix is a separator.
func envKey(s string) string {
	section, field, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_")
	if !ok {
		return section
	}
	return section + "." + field
}

// ConfigDir returns ~/.config/vecli.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vecli"), nil
}

// readConfigFile returns the contents of path and whether it exists. The
// location is checked even when the file is absent; the open descriptor is
// checked, not the path, so the file cannot be swapped in between.
func readConfigFile(path string) ([]byte, bool, error) {
	if err := checkConfigLocation(path); err != nil {
		return nil, false, fmt.Errorf("config path validation failed: %w", err)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := checkConfigFile(info); err != nil {
		return nil, false, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, true, nil
}

// checkConfigLocation requires path, after resolving symlinks, to lie under
// ~/.config/vecli or /etc/vecli.
func checkConfigLocation(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	userDir, err := ConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, systemConfigDir} {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return errors.New("config file must be in ~/.config/vecli/ or /etc/vecli/")
}

// checkConfigFile requires owner-only permissions (except on Windows) and a
// size under maxConfigFileSize.
func checkConfigFile(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
