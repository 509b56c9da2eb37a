package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO for config files. It relies on timex.Duration so
// files can give durations as "5m" or as integer nanoseconds. Fields absent
// from the file keep the values they had before parsing.
type FileConfig struct {
	StoreDriver     string `json:"store_driver" yaml:"store_driver"`
	SQLitePath      string `json:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN     string `json:"postgres_dsn" yaml:"postgres_dsn"`
	PostgresVaultID string `json:"postgres_vault_id" yaml:"postgres_vault_id"`
	BoltPath        string `json:"bolt_path" yaml:"bolt_path"`

	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix       string `json:"s3_prefix" yaml:"s3_prefix"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint     string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey    string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3UsePathStyle bool   `json:"s3_use_path_style" yaml:"s3_use_path_style"`

	KDFIterations   int            `json:"kdf_iterations" yaml:"kdf_iterations"`
	AutoLockTimeout timex.Duration `json:"autolock_timeout" yaml:"autolock_timeout"`
	BackgroundGrace timex.Duration `json:"background_grace" yaml:"background_grace"`
	PayloadFormat   string         `json:"payload_format" yaml:"payload_format"`

	LogBackend string `json:"log_backend" yaml:"log_backend"`
	LogLevel   string `json:"log_level" yaml:"log_level"`

	AgentSocket   string         `json:"agent_socket" yaml:"agent_socket"`
	AgentTokenTTL timex.Duration `json:"agent_token_ttl" yaml:"agent_token_ttl"`
}

func fileConfigFrom(c *Config) FileConfig {
	return FileConfig{
		StoreDriver:     c.StoreDriver,
		SQLitePath:      c.SQLitePath,
		PostgresDSN:     c.PostgresDSN,
		PostgresVaultID: c.PostgresVaultID,
		BoltPath:        c.BoltPath,
		S3Bucket:        c.S3Bucket,
		S3Prefix:        c.S3Prefix,
		S3Region:        c.S3Region,
		S3Endpoint:      c.S3Endpoint,
		S3AccessKey:     c.S3AccessKey,
		S3SecretKey:     c.S3SecretKey,
		S3UsePathStyle:  c.S3UsePathStyle,
		KDFIterations:   c.KDFIterations,
		AutoLockTimeout: timex.Duration{Duration: c.AutoLockTimeout},
		BackgroundGrace: timex.Duration{Duration: c.BackgroundGrace},
		PayloadFormat:   c.PayloadFormat,
		LogBackend:      c.LogBackend,
		LogLevel:        c.LogLevel,
		AgentSocket:     c.AgentSocket,
		AgentTokenTTL:   timex.Duration{Duration: c.AgentTokenTTL},
	}
}

func (fc FileConfig) apply(c *Config) {
	c.StoreDriver = fc.StoreDriver
	c.SQLitePath = fc.SQLitePath
	c.PostgresDSN = fc.PostgresDSN
	c.PostgresVaultID = fc.PostgresVaultID
	c.BoltPath = fc.BoltPath
	c.S3Bucket = fc.S3Bucket
	c.S3Prefix = fc.S3Prefix
	c.S3Region = fc.S3Region
	c.S3Endpoint = fc.S3Endpoint
	c.S3AccessKey = fc.S3AccessKey
	c.S3SecretKey = fc.S3SecretKey
	c.S3UsePathStyle = fc.S3UsePathStyle
	c.KDFIterations = fc.KDFIterations
	c.AutoLockTimeout = fc.AutoLockTimeout.Duration
	c.BackgroundGrace = fc.BackgroundGrace.Duration
	c.PayloadFormat = fc.PayloadFormat
	c.LogBackend = fc.LogBackend
	c.LogLevel = fc.LogLevel
	c.AgentSocket = fc.AgentSocket
	c.AgentTokenTTL = fc.AgentTokenTTL.Duration
}

// parseFile overlays cfg with the file named by -c/-config, if any. Files
// ending in .yaml or .yml are read as YAML, everything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfigFrom(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}
