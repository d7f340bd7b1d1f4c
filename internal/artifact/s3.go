package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sethvargo/go-retry"
)

// S3Config locates a bundle in an S3-compatible object store.
type S3Config struct {
	// Endpoint is an optional base URL, e.g. "http://127.0.0.1:9000" for MinIO.
	Endpoint  string
	Region    string
	Bucket    string
	Key       string
	AccessKey string
	SecretKey string
}

// S3Source downloads a bundle object, retrying transient failures with
// Fibonacci backoff.
type S3Source struct {
	client     *s3.Client
	bucket     string
	key        string
	maxRetries uint64
	backoff    time.Duration
}

// NewS3Source connects to the configured endpoint. Static credentials are
// used when an access key is set; otherwise the client is anonymous.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("artifact: s3 source needs bucket and key")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client := s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		} else {
			o.Credentials = aws.AnonymousCredentials{}
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket, key: cfg.Key, maxRetries: 3, backoff: time.Second}, nil
}

func (s *S3Source) Name() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	downloader := manager.NewDownloader(s.client)
	var data []byte
	b := retry.WithMaxRetries(s.maxRetries, retry.NewFibonacci(s.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		buf := manager.NewWriteAtBuffer([]byte{})
		_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			if permanentS3Error(err) {
				return err
			}
			slog.Warn("s3 download failed, retrying", "source", s.Name(), "error", err)
			return retry.RetryableError(err)
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: downloading %s: %w", s.Name(), err)
	}
	return data, nil
}

func permanentS3Error(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	return errors.As(err, &noKey) || errors.As(err, &noBucket)
}
