package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	s3config "github.com/aws/aws-sdk-go-v2/config"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

var _ Gateway = (*S3Gateway)(nil)
var _ RPSMonitor = (*S3Gateway)(nil)

// I created an interface so the S3 client can be tested by providing a custom implementation.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

// S3Gateway maps the folder model onto S3 keys. A folder is a key prefix
// ending in "/" with a zero-byte marker object at the prefix itself; a file
// id is its full key. The root folder is the empty prefix (the bucket root).
type S3Gateway struct {
	client           S3API
	config           *config.S3Config
	common           *config.CommonGatewayConfig
	limiter          *rate.Limiter
	requestCount     int64      // Total requests made
	lastRequestCount int64      // Request count at last RPS calculation
	lastRPS          int64      // Last calculated RPS
	lastRPSTime      time.Time  // Time of last RPS calculation
	mu               sync.Mutex // Protects RPS calculation fields
}

func NewS3Gateway(cfg *config.S3Config, common *config.CommonGatewayConfig) (*S3Gateway, error) {
	ctx := context.TODO()

	// Apply defaults to common config
	common.ApplyDefaults()

	// default 0
	var limiter *rate.Limiter
	if common.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(common.MaxRPS), common.MaxRPS) // burst = MaxRPS
	}

	// For S3-compatible storage, region is often just a placeholder
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	s3cfg, err := s3config.LoadDefaultConfig(
		ctx,
		s3config.WithRegion(region),
		s3config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		// Suppress AWS SDK logging warnings about missing checksums
		s3config.WithClientLogMode(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	client := s3.NewFromConfig(s3cfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Use path-style addressing for S3-compatible storage
			o.UsePathStyle = true
		}
	})

	return &S3Gateway{
		client:      client,
		config:      cfg,
		common:      common,
		limiter:     limiter,
		lastRPSTime: time.Now(),
	}, nil
}

// RootID returns the empty prefix, i.e. the bucket root.
func (g *S3Gateway) RootID() string {
	return ""
}

func (g *S3Gateway) Stat(ctx context.Context, id string) (*ObjectInfo, error) {
	if id == g.RootID() {
		return &ObjectInfo{ID: id, IsFolder: true}, nil
	}

	var head *s3.HeadObjectOutput
	err := g.callWithRetry(ctx, func(ctx context.Context) error {
		var err error
		head, err = g.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(g.config.Bucket),
			Key:    aws.String(id),
		})
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	info := &ObjectInfo{
		ID:       id,
		Name:     keyName(id),
		ParentID: keyParent(id),
		IsFolder: strings.HasSuffix(id, "/"),
	}
	if head.LastModified != nil {
		info.CreatedAt = *head.LastModified
	}
	if head.ContentLength != nil && !info.IsFolder {
		info.Size = *head.ContentLength
	}
	if head.ContentType != nil && !info.IsFolder {
		info.MimeType = *head.ContentType
	}
	return info, nil
}

func (g *S3Gateway) ListChildren(ctx context.Context, folderID string) ([]model.FileInfo, error) {
	children := []model.FileInfo{}
	var continuationToken *string

	for {
		var resp *s3.ListObjectsV2Output
		err := g.callWithRetry(ctx, func(ctx context.Context) error {
			var err error
			resp, err = g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(g.config.Bucket),
				Prefix:            aws.String(folderID),
				Delimiter:         aws.String("/"),
				ContinuationToken: continuationToken,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", folderID, err)
		}

		for _, cp := range resp.CommonPrefixes {
			children = append(children, model.FileInfo{
				ID:       *cp.Prefix,
				Name:     keyName(*cp.Prefix),
				IsFolder: true,
			})
		}
		for _, v := range resp.Contents {
			// Skip the folder's own marker object
			if *v.Key == folderID {
				continue
			}
			child := model.FileInfo{
				ID:   *v.Key,
				Name: keyName(*v.Key),
			}
			if v.Size != nil {
				child.Size = *v.Size
			}
			children = append(children, child)
		}

		if resp.IsTruncated != nil && aws.ToBool(resp.IsTruncated) {
			continuationToken = resp.NextContinuationToken
		} else {
			break
		}
	}

	return children, nil
}

func (g *S3Gateway) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	id := parentID + name + "/"

	// Query first: reuse an existing folder instead of recreating it
	err := g.callWithRetry(ctx, func(ctx context.Context) error {
		_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(g.config.Bucket),
			Key:    aws.String(id),
		})
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	})
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	err = g.callWithRetry(ctx, func(ctx context.Context) error {
		_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(g.config.Bucket),
			Key:    aws.String(id),
			Body:   strings.NewReader(""),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", id, err)
	}
	return id, nil
}

func (g *S3Gateway) CreateFile(ctx context.Context, name, parentID string, content io.Reader) (string, error) {
	id := parentID + name

	// No retry here: the content reader can only be consumed once
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}
	}
	atomic.AddInt64(&g.requestCount, 1)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(g.common.TimeoutSeconds)*time.Second)
	defer cancel()

	_, err := g.client.PutObject(reqCtx, &s3.PutObjectInput{
		Bucket: aws.String(g.config.Bucket),
		Key:    aws.String(id),
		Body:   content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", id, err)
	}
	return id, nil
}

// OpenFile downloads a file from S3 and returns a reader
func (g *S3Gateway) OpenFile(ctx context.Context, id string) (io.ReadCloser, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
	}
	atomic.AddInt64(&g.requestCount, 1)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(g.common.TimeoutSeconds)*time.Second)
	// Note: We cannot defer cancel() here because the reader needs to stay open
	// The caller is responsible for closing the reader, which will release the context

	result, err := g.client.GetObject(reqCtx, &s3.GetObjectInput{
		Bucket: aws.String(g.config.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		cancel()
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", id, err)
	}

	return &contextAwareReader{
		ReadCloser: result.Body,
		cancel:     cancel,
	}, nil
}

// GrantRead records the recipient address as an object tag. Actual access
// control is expected to be enforced by bucket policy matching the tag.
func (g *S3Gateway) GrantRead(ctx context.Context, id, address string) error {
	err := g.callWithRetry(ctx, func(ctx context.Context) error {
		_, err := g.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
			Bucket: aws.String(g.config.Bucket),
			Key:    aws.String(id),
			Tagging: &types.Tagging{
				TagSet: []types.Tag{
					{Key: aws.String("shared-with"), Value: aws.String(address)},
				},
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to tag %s: %w", id, err)
	}
	return nil
}

// Delete removes a file, or a folder together with everything under its
// prefix. Objects that are already gone are not an error.
func (g *S3Gateway) Delete(ctx context.Context, id string) error {
	if !strings.HasSuffix(id, "/") {
		return g.deleteObject(ctx, id)
	}

	// Folder: delete every object under the prefix, marker included
	var continuationToken *string
	for {
		var resp *s3.ListObjectsV2Output
		err := g.callWithRetry(ctx, func(ctx context.Context) error {
			var err error
			resp, err = g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(g.config.Bucket),
				Prefix:            aws.String(id),
				ContinuationToken: continuationToken,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to list folder %s for deletion: %w", id, err)
		}

		for _, v := range resp.Contents {
			if err := g.deleteObject(ctx, *v.Key); err != nil {
				return err
			}
		}

		if resp.IsTruncated != nil && aws.ToBool(resp.IsTruncated) {
			continuationToken = resp.NextContinuationToken
		} else {
			break
		}
	}

	return nil
}

func (g *S3Gateway) deleteObject(ctx context.Context, key string) error {
	err := g.callWithRetry(ctx, func(ctx context.Context) error {
		_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(g.config.Bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (g *S3Gateway) Close() error {
	return nil
}

// callWithRetry executes the provided function with retry logic, timeout, and RPS limiting.
func (g *S3Gateway) callWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	retries := g.common.MaxRetries
	if retries == 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		// Rate limiting: wait for token before each attempt
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter error: %w", err)
			}
		}
		atomic.AddInt64(&g.requestCount, 1)

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(g.common.TimeoutSeconds)*time.Second)
		err := fn(reqCtx)
		cancel()
		if err == nil {
			return nil
		}
		// A missing object will stay missing; retrying is pointless
		if errors.Is(err, ErrNotFound) {
			return err
		}

		lastErr = err

		// Exponential backoff before next retry
		backoff := time.Duration(math.Pow(2, float64(i))) * 200 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("all retries failed: %w: %v", ErrUnavailable, lastErr)
}

// contextAwareReader wraps an io.ReadCloser and cancels context on close
type contextAwareReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *contextAwareReader) Close() error {
	defer r.cancel()
	return r.ReadCloser.Close()
}

// GetCurrentRPS calculates and returns the current requests per second rate
// This method is thread-safe and can be called periodically for monitoring
func (g *S3Gateway) GetCurrentRPS() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(g.lastRPSTime).Seconds()

	// Only recalculate if at least 1 second has passed
	if elapsed >= 1.0 {
		currentCount := atomic.LoadInt64(&g.requestCount)
		requestsDelta := currentCount - g.lastRequestCount

		g.lastRPS = int64(float64(requestsDelta) / elapsed)
		g.lastRequestCount = currentCount
		g.lastRPSTime = now
	}

	return g.lastRPS
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	var noKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noKey)
}

// keyName returns the display name of an object key or folder prefix.
func keyName(id string) string {
	return path.Base(strings.TrimSuffix(id, "/"))
}

// keyParent returns the id of the folder containing the object.
func keyParent(id string) string {
	trimmed := strings.TrimSuffix(id, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	return trimmed[:idx+1]
}
