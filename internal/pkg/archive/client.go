package archive

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Client archives raw webhook payloads to object storage. The database keeps
// the payload too, but rows age out; the archive is the long-term record for
// disputes with providers.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new archive client.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("payload archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to archive bucket: %w", err)
	}

	log.Infof("[Archive] Initialized payload archive for bucket: %s", cfg.BucketName)
	return client, nil
}

func (c *Client) testConnection() error {
	_, err := c.s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}
	return nil
}

// StorePayload uploads one raw payload and returns its object key.
func (c *Client) StorePayload(ctx context.Context, provider, eventID string, payload []byte, receivedAt time.Time) (string, error) {
	objectKey := c.config.GetObjectKey(provider, eventID, receivedAt)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"provider": provider,
			"event-id": eventID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive payload %s/%s: %w", provider, eventID, err)
	}

	log.Debugf("[Archive] Stored payload s3://%s/%s", c.config.BucketName, objectKey)
	return objectKey, nil
}

var (
	globalClient *Client
	clientOnce   sync.Once
)

// GetClient returns the global archive client, or nil when the archive is
// disabled or misconfigured. Callers must handle nil: archiving is optional
// and never blocks ingestion.
func GetClient() *Client {
	clientOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			log.Errorf("[Archive] Invalid configuration: %v", err)
			return
		}
		if !cfg.IsEnabled() {
			log.Info("[Archive] Payload archive disabled")
			return
		}
		client, err := NewClient(cfg)
		if err != nil {
			log.Errorf("[Archive] Initialization failed: %v", err)
			return
		}
		globalClient = client
	})
	return globalClient
}
