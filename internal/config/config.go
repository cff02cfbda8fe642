// Package config handles loading LocalPaste's runtime configuration from
// environment variables, with an optional INI file overlay for users who
// want to pin settings without exporting shell variables. Environment
// variables always take precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

// Defaults mirror the original LocalPaste desktop application's constants.
const (
	DefaultPort               = 38411
	DefaultMaxPasteSize       = 10 * 1024 * 1024
	DefaultAutoSaveIntervalMS = 2000
)

// Config holds all application configuration, populated from an optional
// INI file and then overridden by environment variables.
type Config struct {
	// DBPath is the directory holding the embedded database files.
	DBPath string

	// Port is the listener port used when BIND is not set explicitly.
	Port int

	// Bind is an explicit "host:port" override. Empty means derive from Port.
	Bind string

	// MaxPasteSize is the maximum decoded content size, in bytes.
	MaxPasteSize int64

	// AutoSaveIntervalMS is a GUI autosave hint, in milliseconds.
	AutoSaveIntervalMS uint64

	// AutoBackup enables a backup pass on startup.
	AutoBackup bool

	// AllowPublicAccess disables strict loopback binding and CORS.
	AllowPublicAccess bool

	// Reindex forces a full reconcile pass at startup regardless of the
	// persisted schema/fault state.
	Reindex bool

	// ServerURL is the base URL CLI-style clients should target.
	ServerURL string
}

// DefaultConfig returns a Config populated with LocalPaste's documented
// defaults, before any file or environment overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		DBPath:             defaultDBPath(),
		Port:               DefaultPort,
		Bind:               "",
		MaxPasteSize:       DefaultMaxPasteSize,
		AutoSaveIntervalMS: DefaultAutoSaveIntervalMS,
		AutoBackup:         false,
		AllowPublicAccess:  false,
		Reindex:            false,
		ServerURL:          fmt.Sprintf("http://localhost:%d", DefaultPort),
	}
}

func defaultDBPath() string {
	home := resolveHomeDir()
	return filepath.Join(home, ".cache", "localpaste", "db")
}

func resolveHomeDir() string {
	if home := os.Getenv("HOME"); strings.TrimSpace(home) != "" {
		return home
	}
	if profile := os.Getenv("USERPROFILE"); strings.TrimSpace(profile) != "" {
		return profile
	}
	if drive, path := os.Getenv("HOMEDRIVE"), os.Getenv("HOMEPATH"); strings.TrimSpace(drive) != "" && strings.TrimSpace(path) != "" {
		return drive + path
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// expandTilde expands a leading "~/" to the resolved home directory.
func expandTilde(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(resolveHomeDir(), rest)
	}
	return path
}

// Load builds a Config from an optional INI file overlay followed by
// environment variables, then validates the result. A missing file is not
// an error; defaults apply in its place.
func Load(iniPath string, log zerolog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	if iniPath != "" {
		if _, err := os.Stat(iniPath); err == nil {
			if err := cfg.loadFromFile(iniPath); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.loadFromEnv(log)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	iniFile, err := ini.Load(path)
	if err != nil {
		return err
	}

	sec, err := iniFile.GetSection("main")
	if err != nil {
		return nil
	}

	c.DBPath = expandTilde(sec.Key("db_path").MustString(c.DBPath))
	c.Port = sec.Key("port").MustInt(c.Port)
	c.Bind = sec.Key("bind").MustString(c.Bind)
	c.MaxPasteSize = sec.Key("max_paste_size").MustInt64(c.MaxPasteSize)
	c.AutoSaveIntervalMS = uint64(sec.Key("auto_save_interval").MustInt64(int64(c.AutoSaveIntervalMS)))
	c.AutoBackup = sec.Key("auto_backup").MustBool(c.AutoBackup)
	c.AllowPublicAccess = sec.Key("allow_public_access").MustBool(c.AllowPublicAccess)

	return nil
}

// loadFromEnv overrides configuration with LocalPaste's documented
// environment variables. Unrecognized numeric/boolean values are logged
// and the existing value (file value or default) is kept.
func (c *Config) loadFromEnv(log zerolog.Logger) {
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		c.DBPath = expandTilde(v)
	}

	c.Port = parseEnvInt(log, "PORT", c.Port)
	if v, ok := os.LookupEnv("BIND"); ok {
		c.Bind = strings.TrimSpace(v)
	}
	c.MaxPasteSize = parseEnvInt64(log, "MAX_PASTE_SIZE", c.MaxPasteSize)
	c.AutoSaveIntervalMS = uint64(parseEnvInt64(log, "AUTO_SAVE_INTERVAL", int64(c.AutoSaveIntervalMS)))
	c.AutoBackup = parseBoolEnv(log, "AUTO_BACKUP", c.AutoBackup)
	c.AllowPublicAccess = parseBoolEnv(log, "ALLOW_PUBLIC_ACCESS", c.AllowPublicAccess)
	c.Reindex = parseBoolEnv(log, "REINDEX", c.Reindex)

	if v, ok := os.LookupEnv("LP_SERVER"); ok && strings.TrimSpace(v) != "" {
		c.ServerURL = v
	} else {
		c.ServerURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
}

// ParseEnvFlag parses a boolean-like flag value. Recognized truthy values
// are "1", "true", "yes", "on"; recognized falsy values are "", "0",
// "false", "no", "off". Matching is case-insensitive and whitespace-
// trimmed. The second return is false when the value is not recognized.
func ParseEnvFlag(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, true
	case "", "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func parseBoolEnv(log zerolog.Logger, name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	parsed, recognized := ParseEnvFlag(v)
	if !recognized {
		log.Warn().Str("name", name).Str("value", v).Bool("default", def).
			Msg("unrecognized boolean env value, expected 1/0/true/false/yes/no/on/off; using default")
		return def
	}
	return parsed
}

func parseEnvInt(log zerolog.Logger, name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		log.Warn().Str("name", name).Int("default", def).Msg("empty env value, using default")
		return def
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		log.Warn().Str("name", name).Str("value", v).Int("default", def).Msg("invalid int env value, using default")
		return def
	}
	return parsed
}

func parseEnvInt64(log zerolog.Logger, name string, def int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		log.Warn().Str("name", name).Int64("default", def).Msg("empty env value, using default")
		return def
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || parsed <= 0 {
		log.Warn().Str("name", name).Str("value", v).Int64("default", def).Msg("invalid int env value, using default")
		return def
	}
	return parsed
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxPasteSize <= 0 {
		return fmt.Errorf("max_paste_size must be positive, got %d", c.MaxPasteSize)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	return nil
}
