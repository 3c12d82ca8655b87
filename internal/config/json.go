package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration allows JSON config files to express intervals either as strings
// such as "2s" or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, set fields are copied into the runtime Config.
// Pointers distinguish "absent" from zero values so the overlay never clobbers
// a default with an unset field.
type JsonConfig struct {
	DatabaseDSN       *string   `json:"database_dsn"`
	S3Bucket          *string   `json:"s3_bucket"`
	S3Region          *string   `json:"s3_region"`
	S3BaseEndpoint    *string   `json:"s3_base_endpoint"`
	S3AccessKey       *string   `json:"s3_access_key"`
	S3SecretKey       *string   `json:"s3_secret_key"`
	StorageClass      *string   `json:"storage_class"`
	Requester         *string   `json:"requester"`
	ArchiveSuffix     *string   `json:"archive_suffix"`
	ExcludeExtensions *[]string `json:"exclude_extensions"`
	MaxFileSize       *int64    `json:"max_file_size"`
	RetryCount        *int      `json:"retry_count"`
	RetryBackoff      *Duration `json:"retry_backoff"`
	Workers           *int      `json:"workers"`
	RestoreTier       *string   `json:"restore_tier"`
	RestoreDays       *int      `json:"restore_days"`
	SkipExisting      *bool     `json:"skip_existing"`
	TempDir           *string   `json:"temp_dir"`
	StateDir          *string   `json:"state_dir"`
}

// parseJson overlays configuration values from a JSON file onto config.
// An empty path means no file is loaded. A missing or malformed file is an
// error: a run that was pointed at a config file should never silently fall
// back to defaults.
func parseJson(config *Config, jsonPath string) error {
	if jsonPath == "" {
		return nil
	}

	file, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
	if c.S3AccessKey != nil {
		config.S3AccessKey = *c.S3AccessKey
	}
	if c.S3SecretKey != nil {
		config.S3SecretKey = *c.S3SecretKey
	}
	if c.StorageClass != nil {
		config.StorageClass = *c.StorageClass
	}
	if c.Requester != nil {
		config.Requester = *c.Requester
	}
	if c.ArchiveSuffix != nil {
		config.ArchiveSuffix = *c.ArchiveSuffix
	}
	if c.ExcludeExtensions != nil {
		config.ExcludeExtensions = *c.ExcludeExtensions
	}
	if c.MaxFileSize != nil {
		config.MaxFileSize = *c.MaxFileSize
	}
	if c.RetryCount != nil {
		config.RetryCount = *c.RetryCount
	}
	if c.RetryBackoff != nil {
		config.RetryBackoff = c.RetryBackoff.Duration
	}
	if c.Workers != nil {
		config.Workers = *c.Workers
	}
	if c.RestoreTier != nil {
		config.RestoreTier = *c.RestoreTier
	}
	if c.RestoreDays != nil {
		config.RestoreDays = *c.RestoreDays
	}
	if c.SkipExisting != nil {
		config.SkipExisting = *c.SkipExisting
	}
	if c.TempDir != nil {
		config.TempDir = *c.TempDir
	}
	if c.StateDir != nil {
		config.StateDir = *c.StateDir
	}
	return nil
}
