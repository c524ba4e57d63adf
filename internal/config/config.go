package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/tagotip/tagotip/internal/aead"
	"github.com/tagotip/tagotip/internal/codec"
)

// =============================================================================
// TagoTiP Gateway - Configuration with Environment Overrides
// =============================================================================

// Config is the gateway's full runtime configuration: the YAML-loaded
// server/store settings plus the codec.Limits tuning knobs spec §6 calls
// the "recognized tuning knobs" for the core itself.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Limits   LimitsConfig   `yaml:"limits"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LimitsConfig mirrors codec.Limits plus the one value that is not a
// parse-time cap: the default cipher suite a newly provisioned device is
// told to use.
type LimitsConfig struct {
	MaxVariables int    `yaml:"max_variables"`
	MaxMetaPairs int    `yaml:"max_meta_pairs"`
	MaxTotalMeta int    `yaml:"max_total_meta"`
	MaxFrameSize int    `yaml:"max_frame_size"`
	OutBufSize   int    `yaml:"out_buf_size"`
	CipherSuite  string `yaml:"cipher_suite"`
}

// ToCodecLimits projects the configured caps onto codec.Limits.
func (l LimitsConfig) ToCodecLimits() codec.Limits {
	return codec.Limits{
		MaxVariables: l.MaxVariables,
		MaxMetaPairs: l.MaxMetaPairs,
		MaxTotalMeta: l.MaxTotalMeta,
		MaxFrameSize: l.MaxFrameSize,
	}
}

// Suite resolves the configured cipher_suite name to an aead.Suite,
// falling back to the spec's mandatory AES-128-CCM.
func (l LimitsConfig) Suite() aead.Suite {
	switch l.CipherSuite {
	case "aes-128-gcm":
		return aead.AES128GCM
	case "aes-256-ccm":
		return aead.AES256CCM
	case "aes-256-gcm":
		return aead.AES256GCM
	case "chacha20-poly1305":
		return aead.ChaCha20Poly1305
	default:
		return aead.AES128CCM
	}
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton config instance, loaded once.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyDefaults()
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in the server-class defaults from spec §6 for any
// zero-valued field, so a minimal or missing config.yaml still produces a
// runnable gateway.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	defaults := codec.DefaultLimits()
	if c.Limits.MaxVariables == 0 {
		c.Limits.MaxVariables = defaults.MaxVariables
	}
	if c.Limits.MaxMetaPairs == 0 {
		c.Limits.MaxMetaPairs = defaults.MaxMetaPairs
	}
	if c.Limits.MaxTotalMeta == 0 {
		c.Limits.MaxTotalMeta = defaults.MaxTotalMeta
	}
	if c.Limits.MaxFrameSize == 0 {
		c.Limits.MaxFrameSize = defaults.MaxFrameSize
	}
	if c.Limits.OutBufSize == 0 {
		c.Limits.OutBufSize = 1024
	}
	if c.Limits.CipherSuite == "" {
		c.Limits.CipherSuite = "aes-128-ccm"
	}
}

// applyEnvOverrides lets operators override the YAML file without editing
// it, matching the teacher's env-wins-over-file precedence.
func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("TAGOTIP_ENV", c.Server.Env)

	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Limits.MaxVariables = getEnvInt("MAX_VARIABLES", c.Limits.MaxVariables)
	c.Limits.MaxMetaPairs = getEnvInt("MAX_META_PAIRS", c.Limits.MaxMetaPairs)
	c.Limits.MaxTotalMeta = getEnvInt("MAX_TOTAL_META", c.Limits.MaxTotalMeta)
	c.Limits.MaxFrameSize = getEnvInt("MAX_FRAME_SIZE", c.Limits.MaxFrameSize)
	c.Limits.CipherSuite = getEnv("CIPHER_SUITE", c.Limits.CipherSuite)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) GetPort() string {
	return c.Server.Port
}
