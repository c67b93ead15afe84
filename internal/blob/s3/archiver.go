// Package s3blob archives the trade ledger to S3 or an S3-compatible store
// (MinIO, R2) using AWS SDK v2.
package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the connection settings for the archive bucket.
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible providers.
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Prefix         string
	ForcePathStyle bool
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads ledger snapshots as timestamped objects.
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewArchiver builds an S3 client from cfg. Static credentials are used when
// an access key is set, otherwise the default AWS credential chain applies.
func NewArchiver(ctx context.Context, cfg Config, logger *slog.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newArchiver(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix, logger), nil
}

func newArchiver(client objectPutter, bucket, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With("component", "archiver", "bucket", bucket),
	}
}

// ObjectKey returns the key a snapshot taken at t is stored under.
func (a *Archiver) ObjectKey(t time.Time) string {
	name := "trades-" + t.UTC().Format("20060102T150405Z") + ".json"
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// ArchiveFile uploads the ledger file at localPath and returns the object key.
// A missing ledger file means nothing was traded and is not an error.
func (a *Archiver) ArchiveFile(ctx context.Context, localPath string, at time.Time) (string, error) {
	f, err := os.Open(localPath)
	if os.IsNotExist(err) {
		a.logger.Info("No ledger to archive", "path", localPath)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: open ledger %s: %w", localPath, err)
	}
	defer f.Close()

	key := a.ObjectKey(at)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	a.logger.Info("Ledger archived", "key", key)
	return key, nil
}

// normaliseEndpoint adds an https scheme to a bare host.
func normaliseEndpoint(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return raw
	}
	return "https://" + raw
}
