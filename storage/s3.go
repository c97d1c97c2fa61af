package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/Origin-Inc/e-invoicing-backend/logger"
)

// Logical bucket names. Each maps to a physical bucket, optionally prefixed.
const (
	BucketInvoices  = "invoices"
	BucketReceipts  = "receipts"
	BucketTemplates = "templates"
	BucketExports   = "exports"
)

const cacheControl = "max-age=3600"

var buckets = map[string]string{
	BucketInvoices:  "invoice-documents",
	BucketReceipts:  "receipt-images",
	BucketTemplates: "invoice-templates",
	BucketExports:   "exported-data",
}

var (
	ErrUnknownBucket  = errors.New("unknown bucket")
	ErrObjectNotFound = errors.New("object not found")
)

// Object describes a stored file.
type Object struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	PublicURL   string `json:"public_url"`
}

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	BucketPrefix    string
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Storage stores invoice documents, receipts, templates and exports in an S3 compatible service.
type S3Storage struct {
	client s3API
	cfg    Config
	log    zerolog.Logger
}

func NewS3Storage(ctx context.Context, cfg Config) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure S3 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, cfg), nil
}

func newS3Storage(client s3API, cfg Config) *S3Storage {
	return &S3Storage{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("storage"),
	}
}

// BucketName resolves a logical bucket to its physical name.
func (s *S3Storage) BucketName(bucket string) (string, error) {
	name, ok := buckets[bucket]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	return s.cfg.BucketPrefix + name, nil
}

// EnsureBuckets creates every physical bucket that does not exist yet. The result reports,
// per physical bucket, whether it is usable; the returned error joins every failure.
func (s *S3Storage) EnsureBuckets(ctx context.Context) (map[string]bool, error) {
	results := make(map[string]bool, len(buckets))
	var errs []error
	for logical := range buckets {
		name, _ := s.BucketName(logical)
		if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err == nil {
			results[name] = true
			continue
		}

		_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
		if err != nil {
			var owned *types.BucketAlreadyOwnedByYou
			var exists *types.BucketAlreadyExists
			if errors.As(err, &owned) || errors.As(err, &exists) {
				results[name] = true
				continue
			}
			s.log.Error().Err(err).Str("bucket", name).Msg("Failed to create bucket")
			results[name] = false
			errs = append(errs, fmt.Errorf("failed to create bucket %s: %w", name, err))
			continue
		}
		s.log.Info().Str("bucket", name).Msg("Created bucket")
		results[name] = true
	}
	return results, errors.Join(errs...)
}

// Upload stores body under key. An empty contentType is guessed from the key's extension,
// then from the content itself.
func (s *S3Storage) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (Object, error) {
	name, err := s.BucketName(bucket)
	if err != nil {
		return Object{}, err
	}
	if contentType == "" {
		contentType = detectContentType(key, body)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String(cacheControl),
	})
	if err != nil {
		s.log.Error().Err(err).Str("bucket", name).Str("key", key).Msg("Upload failed")
		return Object{}, fmt.Errorf("failed to upload %s/%s: %w", name, key, err)
	}

	return Object{
		Bucket:      bucket,
		Key:         key,
		Size:        int64(len(body)),
		ContentType: contentType,
		PublicURL:   s.PublicURL(name, key),
	}, nil
}

func detectContentType(key string, body []byte) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return mimetype.Detect(body).String()
}

func (s *S3Storage) Download(ctx context.Context, bucket, key string) ([]byte, string, error) {
	name, err := s.BucketName(bucket)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(name),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, "", fmt.Errorf("%w: %s/%s", ErrObjectNotFound, name, key)
		}
		return nil, "", fmt.Errorf("failed to download %s/%s: %w", name, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s/%s: %w", name, key, err)
	}
	return data, aws.ToString(resp.ContentType), nil
}

func (s *S3Storage) Delete(ctx context.Context, bucket, key string) error {
	name, err := s.BucketName(bucket)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(name),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", name, key, err)
	}
	return nil
}

// List returns objects in bucket whose key starts with prefix, at most limit of them
// when limit is positive.
func (s *S3Storage) List(ctx context.Context, bucket, prefix string, limit int) ([]Object, error) {
	name, err := s.BucketName(bucket)
	if err != nil {
		return nil, err
	}

	objects := []Object{}
	input := &s3.ListObjectsV2Input{Bucket: aws.String(name)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if limit > 0 && limit <= 1000 {
		input.MaxKeys = aws.Int32(int32(limit))
	}
	for {
		result, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", name, err)
		}
		for _, obj := range result.Contents {
			key := aws.ToString(obj.Key)
			objects = append(objects, Object{
				Bucket:    bucket,
				Key:       key,
				Size:      aws.ToInt64(obj.Size),
				PublicURL: s.PublicURL(name, key),
			})
			if limit > 0 && len(objects) == limit {
				return objects, nil
			}
		}
		if !aws.ToBool(result.IsTruncated) {
			return objects, nil
		}
		input.ContinuationToken = result.NextContinuationToken
	}
}

// PublicURL is the address clients fetch a stored object from.
func (s *S3Storage) PublicURL(physicalBucket, key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		base = s.cfg.Endpoint
	}
	return strings.TrimRight(base, "/") + "/" + physicalBucket + "/" + strings.TrimLeft(key, "/")
}

// Ping checks that the invoices bucket is reachable.
func (s *S3Storage) Ping(ctx context.Context) error {
	name, _ := s.BucketName(BucketInvoices)
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	return err
}
