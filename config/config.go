// Package config holds the configuration for the flight-log access layer:
// the Athena catalog the telemetry pool lives in, the Aurora endpoint and the
// secret holding its password, and the buckets and crawler the ingest
// pipeline operates on.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates all settings consumed by the handlers. Load it from a
// YAML file or construct it directly in code; either way Validate must pass
// before the config is handed to a constructor.
type Config struct {
	Region   string         `yaml:"region"`   // AWS region for all service clients
	Athena   AthenaConfig   `yaml:"athena"`   // Query engine settings
	Database DatabaseConfig `yaml:"database"` // Aurora endpoint and secret
	Ingest   IngestConfig   `yaml:"ingest"`   // Buckets and crawler for the pipeline
}

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
// (or raw nanosecond integers).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		var n int64
		if err2 := value.Decode(&n); err2 == nil {
			*d = Duration(n)
			return nil
		}
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// AthenaConfig describes the telemetry pool table and how the query
// lifecycle behaves.
type AthenaConfig struct {
	Database       string   `yaml:"database"`        // Glue catalog database, e.g. telemetry_pool_v5
	Table          string   `yaml:"table"`           // Telemetry table within the database
	OutputLocation string   `yaml:"output_location"` // Optional s3:// URI for query results
	PollInterval   Duration `yaml:"poll_interval"`   // Delay between status checks
	MaxWait        Duration `yaml:"max_wait"`        // Upper bound on a single query wait; 0 means context-only
}

// QualifiedTable returns the database-qualified table name used in query text.
func (a AthenaConfig) QualifiedTable() string {
	return a.Database + "." + a.Table
}

// DatabaseConfig describes the Aurora endpoint. The password is not part of
// the config; it is fetched from Secrets Manager under SecretName.
type DatabaseConfig struct {
	SecretName string `yaml:"secret_name"` // Secrets Manager secret id holding the password
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	DBName     string `yaml:"dbname"`
}

// IngestConfig names the S3 buckets and Glue crawler the ingest pipeline
// moves logs through.
type IngestConfig struct {
	LandingBucket     string `yaml:"landing_bucket"`     // Where raw logs arrive
	DataPoolBucket    string `yaml:"data_pool_bucket"`   // Partitioned telemetry pool
	UnprocessedBucket string `yaml:"unprocessed_bucket"` // Quarantine for failed ingests
	CrawlerName       string `yaml:"crawler_name"`
}

// DefaultPollInterval is the delay between query status checks when none is
// configured.
const DefaultPollInterval = 5 * time.Second

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.Athena.PollInterval == 0 {
		c.Athena.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
}

// Validate ensures all required fields are present and have valid values.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}

	if c.Athena.Database == "" {
		return fmt.Errorf("athena database is required")
	}
	if c.Athena.Table == "" {
		return fmt.Errorf("athena table is required")
	}
	if c.Athena.OutputLocation != "" && !strings.HasPrefix(c.Athena.OutputLocation, "s3://") {
		return fmt.Errorf("athena output location must start with s3://")
	}
	if c.Athena.PollInterval <= 0 {
		return fmt.Errorf("athena poll interval must be positive")
	}
	if c.Athena.MaxWait < 0 {
		return fmt.Errorf("athena max wait must not be negative")
	}

	if c.Database.SecretName == "" {
		return fmt.Errorf("database secret name is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

// ValidateIngest checks the pipeline bucket and crawler settings. Split from
// Validate because the query-only CLI verbs never touch them.
func (c *Config) ValidateIngest() error {
	if c.Ingest.LandingBucket == "" {
		return fmt.Errorf("landing bucket is required")
	}
	if c.Ingest.DataPoolBucket == "" {
		return fmt.Errorf("data pool bucket is required")
	}
	if c.Ingest.UnprocessedBucket == "" {
		return fmt.Errorf("unprocessed bucket is required")
	}
	if c.Ingest.CrawlerName == "" {
		return fmt.Errorf("crawler name is required")
	}
	return nil
}
