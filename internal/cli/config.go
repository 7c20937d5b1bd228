package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/vasolab/vasostore/internal/paths"
	"github.com/vasolab/vasostore/pkg/types"
	"github.com/vasolab/vasostore/pkg/vaso"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyFormat         = "format"
	cfgKeyChunkSize      = "chunk_size"
	cfgKeyEmbedThreshold = "embed_threshold_mb"
	cfgKeyKeepSnapshots  = "keep_snapshots"
	cfgKeyTimezone       = "timezone"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# vasostore configuration

# Format for newly created projects: bundle or single-file
format: bundle

# Embedded-blob chunk size in bytes
# chunk_size: 8388608

# Pack embeds external assets at or below this size (megabytes)
embed_threshold_mb: 64

# How many bundle snapshots prune retains
keep_snapshots: 50

# Timezone stamped into new project files (optional)
# timezone:
`

// engineConfig loads config.yaml and returns the engine Config it describes.
// A missing config file yields the defaults.
func engineConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, err
	}

	cfg := types.Config{
		Format:           v.GetString(cfgKeyFormat),
		ChunkSize:        v.GetInt64(cfgKeyChunkSize),
		EmbedThresholdMB: v.GetInt64(cfgKeyEmbedThreshold),
		KeepSnapshots:    v.GetInt(cfgKeyKeepSnapshots),
		Timezone:         v.GetString(cfgKeyTimezone),
		AppVersion:       vaso.Version,
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config.yaml: %w", err)
	}
	return cfg.Normalized(), nil
}

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. A missing config.yaml is not an
// error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyFormat, types.FormatBundle)
	v.SetDefault(cfgKeyEmbedThreshold, types.DefaultEmbedThresholdMB)
	v.SetDefault(cfgKeyKeepSnapshots, types.DefaultKeepSnapshots)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if missing.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
