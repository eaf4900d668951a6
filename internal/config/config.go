package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Import   ImportConfig   `yaml:"import"`
	Source   SourceConfig   `yaml:"source"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for import progress tracking
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProfilesConfig holds state profile storage settings
type ProfilesConfig struct {
	Dir string `yaml:"dir"`
}

// ImportConfig holds import pipeline tuning knobs
type ImportConfig struct {
	ChunkSize       int `yaml:"chunk_size"`
	SampleRows      int `yaml:"sample_rows"`
	ViolationSample int `yaml:"violation_sample"`
}

// SourceConfig holds S3 extract pickup settings
type SourceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSProfile string `yaml:"aws_profile"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PROFILE_DIR"); v != "" {
		cfg.Profiles.Dir = v
	}
	if v := os.Getenv("VOTER_S3_BUCKET"); v != "" {
		cfg.Source.S3Bucket = v
		cfg.Source.Enabled = true
	}
	if v := os.Getenv("VOTER_S3_REGION"); v != "" {
		cfg.Source.S3Region = v
	}
	if v := os.Getenv("VOTER_S3_PREFIX"); v != "" {
		cfg.Source.S3Prefix = v
	}
	if v := os.Getenv("AWS_PROFILE_OVERRIDE"); v != "" {
		cfg.Source.AWSProfile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Profiles.Dir == "" {
		cfg.Profiles.Dir = "state_configs"
	}
	if cfg.Import.ChunkSize == 0 {
		cfg.Import.ChunkSize = 10000
	}
	if cfg.Import.SampleRows == 0 {
		cfg.Import.SampleRows = 100
	}
	if cfg.Import.ViolationSample == 0 {
		cfg.Import.ViolationSample = 5
	}
	if cfg.Source.S3Region == "" {
		cfg.Source.S3Region = "us-west-2"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
}

// RedactPIIEnabled reports whether log redaction is on. Defaults to on;
// it takes an explicit false to turn off.
func (cfg *Config) RedactPIIEnabled() bool {
	return cfg.Logging.RedactPII == nil || *cfg.Logging.RedactPII
}
