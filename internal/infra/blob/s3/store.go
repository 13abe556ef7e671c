// Package s3 stores blobs in one bucket of S3 or an S3-compatible service
// such as MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"rentcore/internal/blob/core"
)

var _ core.Store = (*Store)(nil)

// Config selects the bucket and endpoint. Without AccessKeyID the default
// AWS credential chain is used.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Store is a core.Store over one bucket.
type Store struct {
	api     *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New loads AWS configuration and returns a Store for cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	load := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		load = append(load, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return newStore(awsCfg, cfg), nil
}

func newStore(awsCfg aws.Config, cfg Config, extra ...func(*s3.Options)) *Store {
	opts := append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, extra...)
	api := s3.NewFromConfig(awsCfg, opts...)
	return &Store{api: api, presign: s3.NewPresignClient(api), bucket: cfg.Bucket}
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Bucket returns the bucket objects are written to.
func (s *Store) Bucket() string { return s.bucket }

// Put checks the key with HEAD before writing: S3 has no create-only PUT
// that every compatible service honours.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Object, error) {
	switch _, err := s.Head(ctx, key); {
	case err == nil:
		return core.Object{}, core.Taken(key)
	case !errors.Is(err, core.ErrNotFound):
		return core.Object{}, err
	}
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return core.Object{}, fmt.Errorf("s3: read %s: %w", key, err)
		}
		body = bytes.NewReader(data)
	}
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key), Body: body}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		in.Metadata = opts.Metadata
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return core.Object{}, fmt.Errorf("s3: put %s: %w", key, err)
	}
	return s.Head(ctx, key)
}

// Get streams the object. The caller closes the body.
func (s *Store) Get(ctx context.Context, key string) (core.Object, io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return core.Object{}, nil, classify(key, err)
	}
	obj := core.Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Checksum:    etag(out.ETag),
		Metadata:    out.Metadata,
		ModifiedAt:  aws.ToTime(out.LastModified),
	}
	return obj, out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Object, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return core.Object{}, classify(key, err)
	}
	return core.Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Checksum:    etag(out.ETag),
		Metadata:    out.Metadata,
		ModifiedAt:  aws.ToTime(out.LastModified),
	}, nil
}

// Delete heads the key first because S3 deletes succeed for missing keys.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return false, fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Object, error) {
	pages := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []core.Object
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: list %s: %w", prefix, err)
		}
		for _, item := range page.Contents {
			out = append(out, core.Object{
				Key:        aws.ToString(item.Key),
				Size:       aws.ToInt64(item.Size),
				Checksum:   etag(item.ETag),
				ModifiedAt: aws.ToTime(item.LastModified),
			})
		}
	}
	slices.SortFunc(out, func(a, b core.Object) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// PresignGet signs a GET for key. The object is not checked.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(core.LinkTTL(ttl)))
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	return req.URL, nil
}

func classify(key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return core.Missing(key)
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return core.Missing(key)
	}
	return fmt.Errorf("s3: %s: %w", key, err)
}

func etag(v *string) string { return strings.Trim(aws.ToString(v), `"`) }
