package storagefile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sutra-engine/sutra-storage/sterr"
)

// S3Config configures an S3Backend: credentials, region/endpoint, and
// the bucket/prefix a namespace's mirror is written under.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Backend mirrors storage.dat to an S3-compatible bucket after every
// local flush. It is never the source of truth: ReadFull/Backup exist
// so an operator can recover from the mirror, but the reconciler never
// calls them on the hot path.
type S3Backend struct {
	cfg    S3Config
	prefix string

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

// NewS3Backend constructs a mirror backend under cfg.Prefix/namespace.
func NewS3Backend(cfg S3Config, namespace string) *S3Backend {
	prefix := cfg.Prefix
	if prefix != "" {
		prefix = prefix + "/" + namespace
	} else {
		prefix = namespace
	}
	return &S3Backend{cfg: cfg, prefix: prefix}
}

func (s *S3Backend) ensureOpen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if s.cfg.Region != "" {
		opts = append(opts, config.WithRegion(s.cfg.Region))
	}
	if s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return sterr.Wrap(sterr.IoError, "s3 backend: failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if s.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(s.cfg.Endpoint) })
	}
	if s.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	s.client = s3.NewFromConfig(awsCfg, s3Opts...)
	s.opened = true
	return nil
}

func (s *S3Backend) key(name string) string { return s.prefix + "/" + name }

// WriteAtomic uploads data as storage.dat, overwriting any prior
// object; S3 PutObject replaces the object atomically from a reader's
// perspective, so no separate temp+rename dance is needed here.
func (s *S3Backend) WriteAtomic(data []byte) error {
	ctx := context.Background()
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key("storage.dat")),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return sterr.Wrap(sterr.IoError, fmt.Sprintf("s3 backend: failed to write %s", s.key("storage.dat")), err)
	}
	return nil
}

// ReadFull fetches the mirrored object.
func (s *S3Backend) ReadFull() ([]byte, error) {
	ctx := context.Background()
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key("storage.dat")),
	})
	if err != nil {
		return nil, sterr.Wrap(sterr.NotFound, "s3 backend: object not found", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Backup is unsupported: the S3 mirror keeps only the latest object,
// matching its role as a best-effort replica rather than a versioned
// store.
func (s *S3Backend) Backup() ([]byte, error) {
	return nil, sterr.New(sterr.Unavailable, "s3 backend: no backup retained")
}

var _ Backend = (*S3Backend)(nil)
