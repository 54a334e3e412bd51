// Package storage is the object storage adapter: per-user namespaced blobs in
// an S3-compatible bucket (MinIO in deployment).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/pkg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// S3API is the part of *s3.Client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

const (
	metaContentType      = "content-type"
	metaOriginalFilename = "original-filename"
	metaUserID           = "user-id"
)

type UploadResult struct {
	Key              string
	Filename         string
	OriginalFilename string
	Mimetype         string
	Bucket           string
	Size             int64
}

type ObjectInfo struct {
	Key          string
	ContentType  string
	Size         int64
	LastModified time.Time
}

type ObjectStore struct {
	client  S3API
	bucket  string
	backoff func() retry.Backoff
	logger  *zap.Logger

	mu        sync.Mutex
	connected bool
	inflight  chan struct{}
	lastErr   error
}

// New builds an S3 client for the configured endpoint. It does not contact
// the server; the first operation (or an explicit Connect) does.
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return NewWithClient(client, cfg.Bucket, Backoff(cfg), logger), nil
}

// Backoff returns a factory for the connect backoff: exponential from
// BaseBackoff, capped at MaxBackoff, ConnectAttempts tries in total.
func Backoff(cfg *config.StorageConfig) func() retry.Backoff {
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	return func() retry.Backoff {
		b := retry.NewExponential(cfg.BaseBackoff)
		b = retry.WithCappedDuration(cfg.MaxBackoff, b)
		return retry.WithMaxRetries(attempts-1, b)
	}
}

func NewWithClient(client S3API, bucket string, backoff func() retry.Backoff, logger *zap.Logger) *ObjectStore {
	return &ObjectStore{
		client:  client,
		bucket:  bucket,
		backoff: backoff,
		logger:  logger,
	}
}

func (s *ObjectStore) Bucket() string {
	return s.bucket
}

// Connect makes sure the bucket is reachable, creating it if needed. Callers
// arriving while a bootstrap is running wait for it instead of starting their
// own; after a failed bootstrap the next call starts a new one.
func (s *ObjectStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	if ch := s.inflight; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.connected {
			return nil
		}
		return s.lastErr
	}
	ch := make(chan struct{})
	s.inflight = ch
	s.mu.Unlock()

	// The bootstrap outlives the caller that happened to start it.
	err := s.bootstrap(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.connected = err == nil
	s.lastErr = err
	s.inflight = nil
	close(ch)
	s.mu.Unlock()

	return err
}

func (s *ObjectStore) bootstrap(ctx context.Context) error {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := s.ensureBucket(ctx)
		if err != nil {
			s.logger.Warn("Object storage not reachable",
				zap.String("bucket", s.bucket),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Giving up on object storage", zap.Int("attempts", attempt), zap.Error(err))
		return fmt.Errorf("%w: %v", apperr.ErrStorageUnavailable, err)
	}

	s.logger.Info("Object storage connected", zap.String("bucket", s.bucket), zap.Int("attempts", attempt))
	return nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Upload stores data under the user's namespace with a unique name.
func (s *ObjectStore) Upload(ctx context.Context, userID uuid.UUID, filename, mimetype string, data []byte) (*UploadResult, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	unique := UniqueName(filename)
	key := UserPrefix(userID) + unique
	size := int64(len(data))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(mimetype),
		Metadata: map[string]string{
			metaContentType:      mimetype,
			metaOriginalFilename: url.QueryEscape(filename),
			metaUserID:           userID.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return &UploadResult{
		Key:              key,
		Filename:         unique,
		OriginalFilename: filename,
		Mimetype:         mimetype,
		Bucket:           s.bucket,
		Size:             size,
	}, nil
}

// FetchStream opens the object for reading. The caller closes the stream.
func (s *ObjectStore) FetchStream(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: object %s", apperr.ErrNotFound, key)
		}
		return nil, nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	info := &ObjectInfo{
		Key:          key,
		ContentType:  contentType(key, aws.ToString(out.ContentType), out.Metadata),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}
	return out.Body, info, nil
}

// Delete removes an object. Callers treat failures as non-fatal.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// ListUserObjects pages through every object under the user's prefix.
func (s *ObjectStore) ListUserObjects(ctx context.Context, userID uuid.UUID) ([]ObjectInfo, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(UserPrefix(userID)),
	})

	objects := make([]ObjectInfo, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			objects = append(objects, ObjectInfo{
				Key:          key,
				ContentType:  contentType(key, "", nil),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// UserPrefix is the namespace every object of the user lives under.
func UserPrefix(userID uuid.UUID) string {
	return "user-" + userID.String() + "/"
}

// OwnsKey reports whether key lies in the user's namespace.
func OwnsKey(userID uuid.UUID, key string) bool {
	return strings.HasPrefix(key, UserPrefix(userID)) && !strings.Contains(key, "..")
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)
	safeExt     = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)
)

const maxBaseLength = 50

// UniqueName keeps a sanitised lowercase base name and the extension and adds
// a random suffix.
func UniqueName(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(strings.ToLower(filename), ext)
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "-"), "-")
	if len(base) > maxBaseLength {
		base = strings.Trim(base[:maxBaseLength], "-")
	}
	if base == "" {
		base = "file"
	}
	return base + "-" + uuid.NewString() + ext
}

func contentType(key, header string, meta map[string]string) string {
	if header != "" {
		return header
	}
	if ct := meta[metaContentType]; ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
