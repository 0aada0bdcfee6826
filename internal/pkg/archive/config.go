package archive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agenciohq/agencio/internal/pkg/env"
)

// Config holds payload archive configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("ARCHIVE_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("ARCHIVE_REGION", "eu-central-1"),
		BucketName:      env.GetEnv("ARCHIVE_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("ARCHIVE_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("ARCHIVE_ACCESS_KEY_ID is required when the payload archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("ARCHIVE_SECRET_ACCESS_KEY is required when the payload archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("ARCHIVE_BUCKET_NAME is required when the payload archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the payload archive is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey builds the object key for one raw webhook payload. Event ids
// can contain characters that are awkward in keys, so they are sanitized.
func (c *Config) GetObjectKey(provider, eventID string, receivedAt time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, eventID)
	return fmt.Sprintf("webhooks/%s/%04d/%02d/%02d/%s.json",
		provider, receivedAt.Year(), receivedAt.Month(), receivedAt.Day(), safe)
}
