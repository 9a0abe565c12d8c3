// Package objectstore reads and writes whole objects in S3-compatible
// storage (AWS S3, MinIO). pgkit uses it for s3:// record inputs and audit
// log exports.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const scheme = "s3://"

// Options configures the client. Empty credentials fall back to the default
// AWS credential chain; an empty BaseEndpoint means AWS itself.
type Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	PathStyle    bool
}

// Client wraps an S3 client.
type Client struct {
	s3 *s3.Client
}

// New builds a client from opts.
func New(ctx context.Context, opts Options) (*Client, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = opts.PathStyle
		// S3-compatible servers do not all speak the newer checksum trailers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Client{s3: client}, nil
}

// Get downloads the object at bucket/key.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Put uploads data to bucket/key.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// IsURI reports whether s names an object as s3://bucket/key.
func IsURI(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// ParseURI splits s3://bucket/key. Both parts must be non-empty.
func ParseURI(s string) (bucket, key string, err error) {
	if !IsURI(s) {
		return "", "", fmt.Errorf("not an s3 uri: %q", s)
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(s, scheme), "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs bucket and key: %q", s)
	}
	return bucket, key, nil
}
