package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // Schedule zones must resolve on minimal container images.

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the ibovtech pipeline.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	S3       S3             `yaml:"s3"`
	Extract  ExtractConfig  `yaml:"extract"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds paths for local scratch data and the run ledger.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	LedgerPath string `yaml:"ledger_path"`
}

// Server holds listener configuration for the scheduler's health endpoint.
// An empty HealthAddr disables the listener.
type Server struct {
	HealthAddr string `yaml:"health_addr"`
}

// S3 holds credentials and addressing for the S3-compatible object store.
type S3 struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	EndpointURL     string `yaml:"endpoint_url"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	CreateBucket    bool   `yaml:"create_bucket"`
	KeyPrefix       string `yaml:"key_prefix"`
	FileName        string `yaml:"file_name"`
}

// ExtractConfig controls how the composition page is fetched.
type ExtractConfig struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxPages      int           `yaml:"max_pages"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	UserAgent     string        `yaml:"user_agent"`
}

// ScheduleConfig defines when the scheduler triggers a pipeline run. Spec,
// when set, is a standard five-field cron expression that replaces Time and
// Weekdays.
type ScheduleConfig struct {
	Time       string `yaml:"time"`
	Weekdays   string `yaml:"weekdays"`
	Timezone   string `yaml:"timezone"`
	Spec       string `yaml:"spec"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

const (
	DefaultURL       = "https://sistemaswebb3-listados.b3.com.br/indexPage/day/IBOV?language=pt-br"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultRegion    = "us-east-1"
	DefaultBucket    = "ibovtech"
	DefaultTimezone  = "America/Sao_Paulo"
)

// Default returns a Config populated with the values used when neither the
// YAML file nor the environment sets a field.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			LedgerPath: "data/ledger/runs.db",
		},
		S3: S3{
			Region:    DefaultRegion,
			Bucket:    DefaultBucket,
			KeyPrefix: "raw",
			FileName:  "ibov_composition.parquet",
		},
		Extract: ExtractConfig{
			URL:           DefaultURL,
			Timeout:       30 * time.Second,
			MaxPages:      10,
			RatePerSecond: 1,
			UserAgent:     DefaultUserAgent,
		},
		Schedule: ScheduleConfig{
			Time:     "20:00",
			Weekdays: "mon-fri",
			Timezone: DefaultTimezone,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of the
// defaults and then applies environment variable overrides. A missing file is
// not an error: deployments may configure everything through the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured schedule time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// Validate checks field combinations that cannot be caught by YAML decoding.
func (c *Config) Validate() error {
	if c.S3.Bucket == "" {
		return errors.New("s3.bucket is required")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("s3 access_key_id and secret_access_key must be set together")
	}
	if c.S3.FileName == "" {
		return errors.New("s3.file_name is required")
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("LEDGER_PATH"); v != "" {
		cfg.Storage.LedgerPath = v
	}

	if v := os.Getenv("HEALTH_ADDR"); v != "" {
		cfg.Server.HealthAddr = v
	}

	// Standard AWS SDK environment variables.
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.S3.SecretAccessKey = v
	}
	if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("AWS_BUCKET_NAME"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		cfg.S3.EndpointURL = v
		cfg.S3.UsePathStyle = true
	}

	if v := os.Getenv("IBOV_URL"); v != "" {
		cfg.Extract.URL = v
	}

	if v := os.Getenv("TZ"); v != "" {
		cfg.Schedule.Timezone = v
	}
	if v := os.Getenv("PIPELINE_TIMEZONE"); v != "" {
		cfg.Schedule.Timezone = v
	}
	if v := os.Getenv("HORA_PIPELINE"); v != "" {
		cfg.Schedule.Time = v
	}
	if v := os.Getenv("PIPELINE_WEEKDAYS"); v != "" {
		cfg.Schedule.Weekdays = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
