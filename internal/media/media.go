// Package media uploads post attachments to Supabase Storage through its
// S3-compatible endpoint.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/that-cod/reepost-ai-sub001/pkg/config"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

// MaxUploadSize is the largest accepted file.
const MaxUploadSize = 10 << 20

var (
	ErrNotConfigured   = errors.New("media storage is not configured")
	ErrTooLarge        = fmt.Errorf("file exceeds %d bytes", MaxUploadSize)
	ErrUnsupportedType = errors.New("only images and mp4 video are accepted")
	ErrEmpty           = errors.New("file is empty")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
}

// Config points at a Supabase project. AccessKey and SecretKey are the
// project's S3 access keys, not the service role key.
type Config struct {
	URL       string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// LoadConfig reads SUPABASE_* variables.
func LoadConfig() Config {
	return Config{
		URL:       strings.TrimRight(config.GetEnv("SUPABASE_URL", ""), "/"),
		Bucket:    config.GetEnv("SUPABASE_BUCKET", "media"),
		Region:    config.GetEnv("SUPABASE_S3_REGION", "us-east-1"),
		AccessKey: config.GetEnv("SUPABASE_S3_ACCESS_KEY", ""),
		SecretKey: config.GetEnv("SUPABASE_S3_SECRET_KEY", ""),
		Timeout:   config.GetEnvDuration("SUPABASE_TIMEOUT", 30*time.Second),
	}
}

func (c Config) Configured() bool {
	return c.URL != "" && c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Endpoint is the S3 base URL of the project's storage.
func (c Config) Endpoint() string {
	return strings.TrimRight(c.URL, "/") + "/storage/v1/s3"
}

// PublicURL is where a key in a public bucket can be fetched.
func (c Config) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(c.URL, "/"), url.PathEscape(c.Bucket), key)
}

// Upload is a stored object.
type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ObjectPutter is the subset of *s3.Client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	cfg     Config
	objects ObjectPutter
	logger  logging.Logger
}

// NewUploader builds an S3 client for cfg. An unconfigured Config yields an
// uploader whose Upload returns ErrNotConfigured.
func NewUploader(ctx context.Context, cfg Config, logger logging.Logger) (*Uploader, error) {
	if !cfg.Configured() {
		return &Uploader{cfg: cfg, logger: logger}, nil
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint())
		o.UsePathStyle = true
	})

	logger.WithFields(logging.Fields{
		"bucket":   cfg.Bucket,
		"endpoint": cfg.Endpoint(),
	}).Info("Media storage initialized")

	return NewUploaderWithClient(cfg, client, logger), nil
}

// NewUploaderWithClient uses an existing object client.
func NewUploaderWithClient(cfg Config, objects ObjectPutter, logger logging.Logger) *Uploader {
	return &Uploader{cfg: cfg, objects: objects, logger: logger}
}

// DetectType sniffs the content and falls back to the declared type.
// Only types in the allow list are returned.
func DetectType(head []byte, declared string) (string, error) {
	sniffed := http.DetectContentType(head)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if _, ok := extensions[sniffed]; ok {
		return sniffed, nil
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if sniffed == "application/octet-stream" {
		if _, ok := extensions[declared]; ok {
			return declared, nil
		}
	}
	return "", ErrUnsupportedType
}

// Upload stores r under <userID>/<uuid><ext> and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, userID string, r io.Reader, declaredType string) (*Upload, error) {
	if u.objects == nil {
		return nil, ErrNotConfigured
	}

	body, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmpty
	}
	if len(body) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	contentType, err := DetectType(head, declaredType)
	if err != nil {
		return nil, err
	}

	key := userID + "/" + uuid.New().String() + extensions[contentType]
	_, err = u.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	u.logger.WithFields(logging.Fields{
		"user_id":      userID,
		"key":          key,
		"content_type": contentType,
		"size":         len(body),
	}).Info("Media uploaded")

	return &Upload{
		Key:         key,
		URL:         u.cfg.PublicURL(key),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}
