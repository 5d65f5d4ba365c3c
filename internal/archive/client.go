// Package archive uploads run records to S3-compatible object storage.
//
// Cloud Storage buckets accept the S3 XML API at storage.googleapis.com with
// HMAC keys, so the same client works against GCS and any other
// S3-compatible store. Objects are written under <prefix>/<run id>/.
package archive

import (
	"bytes"
	"context"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
)

// DefaultEndpoint is the S3-interoperable Cloud Storage endpoint.
const DefaultEndpoint = "https://storage.googleapis.com"

// ErrNoSuchBucket is returned when the archive bucket does not exist.
var ErrNoSuchBucket = errors.New("archive bucket does not exist")

// Client wraps the S3 client for one bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// NewClient creates a client for bucket at endpoint. Path-style addressing
// is used because bucket names may contain dots.
func NewClient(ctx context.Context, endpoint, region, accessKey, secretKey, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, errors.New("archive bucket must not be empty")
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &Client{s3: client, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string { return c.bucket }

// BucketExists checks if the bucket exists and is accessible.
func (c *Client) BucketExists(ctx context.Context) (bool, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to check bucket %s", c.bucket)
	}
	return true, nil
}

// Put uploads one object.
func (c *Client) Put(ctx context.Context, key, contentType string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		if isNotFoundError(err) {
			return errors.Wrapf(ErrNoSuchBucket, "%s", c.bucket)
		}
		return errors.Wrapf(err, "failed to put object %s in bucket %s", key, c.bucket)
	}
	return nil
}

// List returns the object keys under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list objects in bucket %s", c.bucket)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// Object is one file of a run record.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store uploads objects under prefix/runID and returns the written keys.
// Every object is attempted; failures are combined into one error.
func (c *Client) Store(ctx context.Context, prefix, runID string, objects []Object) ([]string, error) {
	sorted := append([]Object(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var (
		keys []string
		errs error
	)
	for _, obj := range sorted {
		key := path.Join(prefix, runID, obj.Name)
		if err := c.Put(ctx, key, obj.ContentType, obj.Data); err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		keys = append(keys, key)
	}
	return keys, errs
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// S3-compatible services do not always return the typed errors.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}

	return false
}
