package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7433"
	DefaultDBFileName  = ".jobq.db"
	DefaultLogLevel    = "info"
	configFileName     = ".jobq.toml"
	envFileName        = ".env"
	defaultSubmitBurst = 20

	DefaultLeaseTTL        = 60 * time.Second
	DefaultReclaimInterval = 5 * time.Second
	DefaultDrainTimeout    = 30 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond

	DefaultBusyTimeoutMS         = 5000
	DefaultMaxOpenConns          = 1
	DefaultSubmitRate            = 10.0
	DefaultMaxMessageBytes int64 = 1 << 20

	configDirEnvKey          = "JOBQ_CONFIG_DIR"
	trustProjectConfigEnvKey = "JOBQ_TRUST_PROJECT_CONFIG"
)

// QueueConfig controls lease timing.
type QueueConfig struct {
	LeaseTTL        time.Duration `toml:"lease_ttl"`
	ReclaimInterval time.Duration `toml:"reclaim_interval"`
}

// ReaperConfig controls session teardown.
type ReaperConfig struct {
	DrainTimeout time.Duration `toml:"drain_timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
	ForceExpire  bool          `toml:"force_expire"`
}

// StoreConfig controls the SQLite connection pool.
type StoreConfig struct {
	BusyTimeoutMS int `toml:"busy_timeout_ms"`
	MaxOpenConns  int `toml:"max_open_conns"`
}

// LimitsConfig bounds client input.
type LimitsConfig struct {
	SubmitRate      float64 `toml:"submit_rate"`
	SubmitBurst     int     `toml:"submit_burst"`
	MaxMessageBytes int64   `toml:"max_message_bytes"`
}

// Config defines runtime configuration for jobq.
type Config struct {
	APIURL                   string       `toml:"api_url"`
	DBPath                   string       `toml:"db_path"`
	LogLevel                 string       `toml:"log_level"`
	Queue                    QueueConfig  `toml:"queue"`
	Reaper                   ReaperConfig `toml:"reaper"`
	Store                    StoreConfig  `toml:"store"`
	Limits                   LimitsConfig `toml:"limits"`
	TrustedProjectConfigPath string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Queue: QueueConfig{
			LeaseTTL:        DefaultLeaseTTL,
			ReclaimInterval: DefaultReclaimInterval,
		},
		Reaper: ReaperConfig{
			DrainTimeout: DefaultDrainTimeout,
			PollInterval: DefaultPollInterval,
			ForceExpire:  false,
		},
		Store: StoreConfig{
			BusyTimeoutMS: DefaultBusyTimeoutMS,
			MaxOpenConns:  DefaultMaxOpenConns,
		},
		Limits: LimitsConfig{
			SubmitRate:      DefaultSubmitRate,
			SubmitBurst:     defaultSubmitBurst,
			MaxMessageBytes: DefaultMaxMessageBytes,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

// loadEnvFile reads KEY=VALUE pairs from a .env file next to the config.
// Variables already present in the environment win.
func loadEnvFile(dir string) error {
	path := filepath.Join(dir, envFileName)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return nil
}

func overrideConfigDir() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return dir, true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"queue.lease_ttl",
	"queue.reclaim_interval",
	"reaper.drain_timeout",
	"reaper.poll_interval",
	"reaper.force_expire",
	"store.busy_timeout_ms",
	"store.max_open_conns",
	"limits.submit_rate",
	"limits.submit_burst",
	"limits.max_message_bytes",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "queue.lease_ttl":
		return c.Queue.LeaseTTL.String(), nil
	case "queue.reclaim_interval":
		return c.Queue.ReclaimInterval.String(), nil
	case "reaper.drain_timeout":
		return c.Reaper.DrainTimeout.String(), nil
	case "reaper.poll_interval":
		return c.Reaper.PollInterval.String(), nil
	case "reaper.force_expire":
		return strconv.FormatBool(c.Reaper.ForceExpire), nil
	case "store.busy_timeout_ms":
		return strconv.Itoa(c.Store.BusyTimeoutMS), nil
	case "store.max_open_conns":
		return strconv.Itoa(c.Store.MaxOpenConns), nil
	case "limits.submit_rate":
		return strconv.FormatFloat(c.Limits.SubmitRate, 'f', -1, 64), nil
	case "limits.submit_burst":
		return strconv.Itoa(c.Limits.SubmitBurst), nil
	case "limits.max_message_bytes":
		return strconv.FormatInt(c.Limits.MaxMessageBytes, 10), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if dir, ok := overrideConfigDir(); ok {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if dir, ok := overrideConfigDir(); ok {
		return filepath.Join(dir, configFileName), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if dir, ok := overrideConfigDir(); ok {
		if err := loadFile(filepath.Join(dir, configFileName), &cfg); err != nil {
			return nil, err
		}
		if err := loadEnvFile(dir); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
				if err := loadEnvFile(cwd); err != nil {
					return nil, err
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if apiURL := os.Getenv("JOBQ_API_URL"); apiURL != "" {
		c.APIURL = apiURL
	}
	if dbPath := os.Getenv("JOBQ_DB"); dbPath != "" {
		c.DBPath = dbPath
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"JOBQ_LEASE_TTL", &c.Queue.LeaseTTL},
		{"JOBQ_RECLAIM_INTERVAL", &c.Queue.ReclaimInterval},
		{"JOBQ_DRAIN_TIMEOUT", &c.Reaper.DrainTimeout},
	}
	for _, d := range durations {
		raw := strings.TrimSpace(os.Getenv(d.env))
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("JOBQ_FORCE_EXPIRE")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("JOBQ_FORCE_EXPIRE: %w", err)
		}
		c.Reaper.ForceExpire = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("JOBQ_SUBMIT_RATE")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("JOBQ_SUBMIT_RATE: %w", err)
		}
		c.Limits.SubmitRate = parsed
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "queue.lease_ttl", "queue.reclaim_interval", "reaper.drain_timeout", "reaper.poll_interval":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a duration such as 30s", key)
		}
		return parsed.String(), nil
	case "store.busy_timeout_ms", "store.max_open_conns", "limits.submit_burst":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "limits.max_message_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "limits.submit_rate":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative number", key)
		}
		return parsed, nil
	case "reaper.force_expire":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Queue.LeaseTTL <= 0 {
		c.Queue.LeaseTTL = DefaultLeaseTTL
	}
	if c.Queue.ReclaimInterval <= 0 {
		c.Queue.ReclaimInterval = DefaultReclaimInterval
	}
	if c.Reaper.DrainTimeout < 0 {
		c.Reaper.DrainTimeout = 0
	}
	if c.Reaper.PollInterval <= 0 {
		c.Reaper.PollInterval = DefaultPollInterval
	}
	if c.Store.BusyTimeoutMS <= 0 {
		c.Store.BusyTimeoutMS = DefaultBusyTimeoutMS
	}
	if c.Store.MaxOpenConns <= 0 {
		c.Store.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Limits.SubmitRate < 0 {
		c.Limits.SubmitRate = 0
	}
	if c.Limits.SubmitBurst <= 0 {
		c.Limits.SubmitBurst = defaultSubmitBurst
	}
	if c.Limits.MaxMessageBytes <= 0 {
		c.Limits.MaxMessageBytes = DefaultMaxMessageBytes
	}
}
