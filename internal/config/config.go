// Package config loads the immutable per-run migration configuration from
// environment variables and an optional TOML profile file. CLI flags are
// layered on top by the command layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DefaultBatchSize is the number of records extracted, converted, and
// inserted per transactional batch.
const DefaultBatchSize = 1000

// Config is the immutable configuration for one migration run.
type Config struct {
	SourcePath string `toml:"source"` // EVENTLIFT_SOURCE (required)
	TargetPath string `toml:"target"` // EVENTLIFT_TARGET (required)

	BatchSize int  `toml:"batch_size"` // EVENTLIFT_BATCH_SIZE (default 1000)
	DryRun    bool `toml:"dry_run"`    // EVENTLIFT_DRY_RUN
	Validate  bool `toml:"validate"`   // EVENTLIFT_VALIDATE (default true)
	Verbose   bool `toml:"verbose"`    // EVENTLIFT_VERBOSE

	// CheckpointDir holds the pre-migration source copy. Defaults to an
	// .eventlift directory next to the source store.
	CheckpointDir string `toml:"checkpoint_dir"` // EVENTLIFT_CHECKPOINT_DIR

	// NATSURL enables progress event publishing when set.
	NATSURL string `toml:"nats_url"` // EVENTLIFT_NATS_URL (optional)

	// Archive settings (optional, enable S3 checkpoint archiving when the
	// bucket is set).
	ArchiveS3Bucket   string `toml:"archive_s3_bucket"`   // EVENTLIFT_ARCHIVE_S3_BUCKET
	ArchiveS3Key      string `toml:"archive_s3_key"`      // EVENTLIFT_ARCHIVE_S3_KEY (default "eventlift/checkpoint.db")
	ArchiveS3Region   string `toml:"archive_s3_region"`   // EVENTLIFT_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Endpoint string `toml:"archive_s3_endpoint"` // EVENTLIFT_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
}

// Default returns a Config with all defaults applied and no paths set.
func Default() *Config {
	return &Config{
		BatchSize:       DefaultBatchSize,
		Validate:        true,
		ArchiveS3Key:    "eventlift/checkpoint.db",
		ArchiveS3Region: "us-east-1",
	}
}

// Load builds a Config from EVENTLIFT_* environment variables layered over
// the defaults. Paths may still be empty; the command layer fills them from
// flags and calls Finalize.
func Load() (*Config, error) {
	c := Default()
	c.SourcePath = os.Getenv("EVENTLIFT_SOURCE")
	c.TargetPath = os.Getenv("EVENTLIFT_TARGET")
	c.CheckpointDir = os.Getenv("EVENTLIFT_CHECKPOINT_DIR")
	c.NATSURL = os.Getenv("EVENTLIFT_NATS_URL")
	c.ArchiveS3Bucket = os.Getenv("EVENTLIFT_ARCHIVE_S3_BUCKET")
	c.ArchiveS3Key = envOrDefault("EVENTLIFT_ARCHIVE_S3_KEY", c.ArchiveS3Key)
	c.ArchiveS3Region = envOrDefault("EVENTLIFT_ARCHIVE_S3_REGION", c.ArchiveS3Region)
	c.ArchiveS3Endpoint = os.Getenv("EVENTLIFT_ARCHIVE_S3_ENDPOINT")

	if v := os.Getenv("EVENTLIFT_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("EVENTLIFT_BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	for _, b := range []struct {
		key  string
		dest *bool
	}{
		{"EVENTLIFT_DRY_RUN", &c.DryRun},
		{"EVENTLIFT_VALIDATE", &c.Validate},
		{"EVENTLIFT_VERBOSE", &c.Verbose},
	} {
		if v := os.Getenv(b.key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dest = parsed
		}
	}

	return c, nil
}

// LoadProfile overlays values from a TOML profile file onto c. Missing file
// is not an error when optional is true.
func LoadProfile(c *Config, path string, optional bool) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		if os.IsNotExist(err) && optional {
			return nil
		}
		return fmt.Errorf("profile %s: %w", path, err)
	}
	return nil
}

// Finalize validates required fields and derives dependent defaults.
// It must be called once after all layers (env, profile, flags) are applied.
func (c *Config) Finalize() error {
	if c.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	if c.TargetPath == "" {
		return fmt.Errorf("target path is required")
	}
	if c.SourcePath == c.TargetPath {
		return fmt.Errorf("source and target must be different files")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = filepath.Join(filepath.Dir(c.SourcePath), ".eventlift")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
