// Package s3 provides the staging object store used by the artifact
// distribution channel and the transient build environment.
package s3

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectInfo describes one stored object for mirror comparison.
type ObjectInfo struct {
	Key  string
	ETag string
	Size int64
}

// ObjectStore defines the interface for the staging bucket.
type ObjectStore interface {
	// EnsureBucket creates the bucket, reporting whether it already existed.
	EnsureBucket(ctx context.Context, bucket string) (bool, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// ListObjects lists all objects under the prefix, following pagination.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	// UploadFile streams a local file to the bucket.
	UploadFile(ctx context.Context, bucket, key, path string) error
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
	// EmptyBucket removes every object so the bucket can be deleted.
	EmptyBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
}

// Client implements ObjectStore against the live S3 API.
type Client struct {
	s3       *s3.Client
	uploader *manager.Uploader
	region   string
}

// NewClient creates a new S3 client for the given region using the default
// credential chain.
//
// Setting PSFORGE_S3_ENDPOINT points the staging bucket at an S3-compatible
// store instead (with PSFORGE_S3_ACCESS_KEY / PSFORGE_S3_SECRET_KEY for
// authentication), which keeps builds working in accounts where the real S3
// is off limits.
func NewClient(ctx context.Context, region string) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	endpoint := os.Getenv("PSFORGE_S3_ENDPOINT")
	if endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				os.Getenv("PSFORGE_S3_ACCESS_KEY"),
				os.Getenv("PSFORGE_S3_SECRET_KEY"),
				"",
			)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{
		s3:       client,
		uploader: manager.NewUploader(client),
		region:   region,
	}, nil
}

// Ensure interface compliance.
var _ ObjectStore = (*Client)(nil)

// EnsureBucket creates the bucket. A bucket that already exists and is owned
// by us counts as success, with existed=true.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) (bool, error) {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// us-east-1 rejects an explicit location constraint.
	if c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}

	_, err := c.s3.CreateBucket(ctx, input)
	if err != nil {
		if isBucketAlreadyOwnedByYou(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return false, nil
}

// BucketExists checks if a bucket exists and is accessible.
func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	return true, nil
}

// ListObjects lists all objects under the prefix, following pagination.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.s3, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:  aws.ToString(obj.Key),
				ETag: aws.ToString(obj.ETag),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return objects, nil
}

// UploadFile streams a local file to the bucket using the transfer manager.
func (c *Client) UploadFile(ctx context.Context, bucket, key, path string) error {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", path, err)
	}
	defer f.Close()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", path, bucket, key, err)
	}
	return nil
}

// DeleteObjects removes objects in batches of up to 1000 keys.
func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	const batchSize = 1000
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		_, err := c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects from bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// EmptyBucket removes every object in the bucket.
func (c *Client) EmptyBucket(ctx context.Context, bucket string) error {
	objects, err := c.ListObjects(ctx, bucket, "")
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	return c.DeleteObjects(ctx, bucket, keys)
}

// DeleteBucket deletes a bucket. The bucket must be empty; a bucket that is
// already gone is not an error.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}
	return nil
}

// isBucketAlreadyOwnedByYou checks if the error indicates the bucket exists
// and is owned by us.
func isBucketAlreadyOwnedByYou(err error) bool {
	if err == nil {
		return false
	}

	var baoby *types.BucketAlreadyOwnedByYou
	if errors.As(err, &baoby) {
		return true
	}

	var bae *types.BucketAlreadyExists
	if errors.As(err, &bae) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
	}

	return false
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

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}

	return false
}
