package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"gs-texreplace/internal/texture"
)

// EnvPrefix prefixes environment overrides, e.g. TEXREPLACE_REPLACEMENTS_ENABLED.
const EnvPrefix = "TEXREPLACE"

// Config holds the texture directory, the session serial and replacement settings.
type Config struct {
	// Paths
	GameTextureDir string `mapstructure:"game_texture_dir"`
	Serial         string `mapstructure:"serial"`

	LogLevel string `mapstructure:"log_level"`

	Replacements Replacements `mapstructure:"replacements"`

	// Verify settings
	Workers int `mapstructure:"workers"`
}

// Replacements are the settings the texture service reacts to.
type Replacements struct {
	Enabled        bool `mapstructure:"enabled"`
	AsyncLoading   bool `mapstructure:"async_loading"`
	PrecacheAll    bool `mapstructure:"precache_all"`
	DumpingEnabled bool `mapstructure:"dumping_enabled"`
}

// Load reads a YAML, JSON or TOML config file and environment overrides.
// An empty path yields defaults and environment values only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game_texture_dir", "")
	v.SetDefault("serial", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 0)
	v.SetDefault("replacements.enabled", false)
	v.SetDefault("replacements.async_loading", true)
	v.SetDefault("replacements.precache_all", false)
	v.SetDefault("replacements.dumping_enabled", false)
}

// Resolve fills in any empty fields with auto-detected defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.GameTextureDir != "" {
		c.GameTextureDir = flags.GameTextureDir
	}
	if flags.Serial != "" {
		c.Serial = flags.Serial
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Enable {
		c.Replacements.Enabled = true
	}
	if flags.Precache {
		c.Replacements.PrecacheAll = true
	}
	if flags.Sync {
		c.Replacements.AsyncLoading = false
	}

	// Auto-detect texture dir if still empty
	if c.GameTextureDir == "" {
		c.GameTextureDir = detectTextureDir()
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	GameTextureDir string
	Serial         string
	LogLevel       string
	Workers        int
	Enable         bool
	Precache       bool
	Sync           bool
}

// Options converts the replacement block for the texture service.
func (c Config) Options() texture.Options {
	return texture.Options{
		Enabled:        c.Replacements.Enabled,
		AsyncLoading:   c.Replacements.AsyncLoading,
		PrecacheAll:    c.Replacements.PrecacheAll,
		DumpingEnabled: c.Replacements.DumpingEnabled,
	}
}

// ReplacementDir is <GameTextureDir>/<Serial>/replacements.
func (c Config) ReplacementDir() string {
	return filepath.Join(c.GameTextureDir, c.Serial, "replacements")
}

func detectTextureDir() string {
	// Try current working directory
	cwd, _ := os.Getwd()
	for _, name := range []string{"textures", "Textures"} {
		dir := filepath.Join(cwd, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}

	// Try relative to executable
	exe, _ := os.Executable()
	if exe != "" {
		dir := filepath.Join(filepath.Dir(exe), "textures")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}

	return filepath.Join(cwd, "textures")
}
