package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssdkconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/mediastash/mediastash/internal/circuit"
	"github.com/mediastash/mediastash/pkg/types"
)

// Store implements the single-item storage primitives over S3. Its
// methods perform exactly one attempt each and return raw,
// transport-specific failures; retry and classification happen in the
// layers above, so SDK-level retries are disabled.
type Store struct {
	client  *s3.Client
	bucket  string
	pool    *ClientPool
	breaker *circuit.Breaker

	transporter *cargoships3.Transporter

	config *Config
	logger *slog.Logger

	mu      sync.Mutex
	metrics StoreMetrics
}

// StoreMetrics tracks store-level counters.
type StoreMetrics struct {
	Requests       int64         `json:"requests"`
	Errors         int64         `json:"errors"`
	BytesUploaded  int64         `json:"bytes_uploaded"`
	AverageLatency time.Duration `json:"average_latency"`
	LastError      string        `json:"last_error"`
	LastErrorTime  time.Time     `json:"last_error_time"`
}

// NewStore creates an S3-backed store for one bucket.
func NewStore(ctx context.Context, bucket string, cfg *Config) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	loadOpts := []func(*awssdkconfig.LoadOptions) error{
		awssdkconfig.WithRegion(cfg.Region),
		// One attempt per call: the batch retry policy owns retries.
		awssdkconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awssdkconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awssdkconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}
	client := s3.NewFromConfig(awsCfg, clientOpts)

	pool, err := NewClientPool(cfg.PoolSize, func() (*s3.Client, error) {
		return s3.NewFromConfig(awsCfg, clientOpts), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client pool: %w", err)
	}

	logger := slog.Default().With("component", "s3-store", "bucket", bucket)

	var transporter *cargoships3.Transporter
	if cfg.EnableTransporter {
		transporter = cargoships3.NewTransporter(client, cargoshipConfig(bucket, cfg))
		logger.Info("optimized upload transporter enabled",
			"storage_class", cfg.StorageClass,
			"multipart_threshold", cfg.MultipartThreshold,
			"multipart_chunk_size", cfg.MultipartChunkSize)
	}

	var breaker *circuit.Breaker
	if cfg.Breaker.Enabled {
		breakerCfg := cfg.breakerConfig()
		breakerCfg.OnStateChange = func(name string, from, to circuit.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
		}
		breaker = circuit.NewBreaker("s3:"+bucket, breakerCfg)
	}

	return &Store{
		client:      client,
		bucket:      bucket,
		pool:        pool,
		breaker:     breaker,
		transporter: transporter,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Upload stores content under key. Repeating an upload for the same key
// overwrites the same object, so retried attempts are idempotent.
func (s *Store) Upload(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) (types.ObjectInfo, error) {
	start := time.Now()

	if err := s.allow(); err != nil {
		return types.ObjectInfo{}, err
	}
	if contentType == "" {
		contentType = DetectContentType(key)
	}

	err := s.putObject(ctx, key, content, contentType, metadata)
	s.record(time.Since(start), err)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	s.mu.Lock()
	s.metrics.BytesUploaded += int64(len(content))
	s.mu.Unlock()

	return types.ObjectInfo{
		Key:          key,
		Size:         int64(len(content)),
		LastModified: time.Now(),
		ContentType:  contentType,
		Metadata:     metadata,
	}, nil
}

func (s *Store) putObject(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) error {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	if s.transporter != nil {
		archive := cargoships3.Archive{
			Key:          key,
			Reader:       bytes.NewReader(content),
			Size:         int64(len(content)),
			StorageClass: transporterStorageClass(s.config.StorageClass),
			Metadata:     metadata,
		}
		result, uploadErr := s.transporter.Upload(ctx, archive)
		if uploadErr == nil {
			s.logger.Debug("transporter upload completed",
				"key", key,
				"size", len(content),
				"throughput", result.Throughput,
				"duration", result.Duration)
			return nil
		}
		s.logger.Warn("transporter upload failed, falling back to standard client", "key", key, "error", uploadErr)
	}

	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
		StorageClass:  storageClass(s.config.StorageClass),
		Metadata:      metadata,
	}
	_, err = client.PutObject(ctx, input)
	return err
}

// Delete removes the referenced object. S3 deletes are idempotent, so a
// missing key settles as success.
func (s *Store) Delete(ctx context.Context, ref types.ObjectRef) error {
	start := time.Now()

	if err := s.allow(); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	bucket := ref.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(ref.Key),
	}
	if ref.VersionID != "" {
		input.VersionId = aws.String(ref.VersionID)
	}

	_, err = client.DeleteObject(ctx, input)
	if isNotFound(err) {
		err = nil
	}
	s.record(time.Since(start), err)
	return err
}

// Head returns metadata for one object.
func (s *Store) Head(ctx context.Context, key string) (types.ObjectInfo, error) {
	start := time.Now()

	if err := s.allow(); err != nil {
		return types.ObjectInfo{}, err
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	client, err := s.pool.Get()
	if err != nil {
		return types.ObjectInfo{}, err
	}
	defer s.pool.Put(client)

	result, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.record(time.Since(start), err)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	info := types.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
		ContentType:  aws.ToString(result.ContentType),
		Metadata:     make(map[string]string, len(result.Metadata)),
	}
	for k, v := range result.Metadata {
		info.Metadata[k] = v
	}
	return info, nil
}

// List returns descriptions of objects under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]types.ObjectInfo, error) {
	start := time.Now()

	if err := s.allow(); err != nil {
		return nil, err
	}

	client, err := s.pool.Get()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(client)

	var objects []types.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.record(time.Since(start), err)
			return nil, err
		}
		for _, object := range page.Contents {
			objects = append(objects, types.ObjectInfo{
				Key:          aws.ToString(object.Key),
				Size:         aws.ToInt64(object.Size),
				LastModified: aws.ToTime(object.LastModified),
				ETag:         aws.ToString(object.ETag),
			})
		}
	}

	s.record(time.Since(start), nil)
	return objects, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

// Metrics returns a snapshot of store counters.
func (s *Store) Metrics() StoreMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Close releases pooled clients.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) allow() error {
	if s.breaker == nil {
		return nil
	}
	return s.breaker.Allow()
}

func (s *Store) record(duration time.Duration, err error) {
	if s.breaker != nil {
		s.breaker.Record(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.Requests++
	if err != nil {
		s.metrics.Errors++
		s.metrics.LastError = err.Error()
		s.metrics.LastErrorTime = time.Now()
	}

	// Rolling average, weighted toward history.
	if s.metrics.Requests == 1 {
		s.metrics.AverageLatency = duration
	} else {
		s.metrics.AverageLatency = time.Duration(
			(int64(s.metrics.AverageLatency)*9 + int64(duration)) / 10,
		)
	}
}

func (s *Store) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.RequestTimeout)
}

func cargoshipConfig(bucket string, cfg *Config) awsconfig.S3Config {
	return awsconfig.S3Config{
		Bucket:             bucket,
		StorageClass:       transporterStorageClass(cfg.StorageClass),
		MultipartThreshold: cfg.MultipartThreshold,
		MultipartChunkSize: cfg.MultipartChunkSize,
		Concurrency:        cfg.PoolSize,
	}
}

// isNotFound reports whether the error is an S3 missing-key failure.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return stderrors.As(err, &noSuchKey) || stderrors.As(err, &notFound)
}

// DetectContentType infers a content type from the key's extension.
func DetectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".gif"):
		return "image/gif"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".webm"):
		return "video/webm"
	case strings.HasSuffix(key, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
