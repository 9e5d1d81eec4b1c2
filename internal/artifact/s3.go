package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"food-compliance/internal/classifier"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentTransfers bounds parallel object transfers per artifact.
const maxConcurrentTransfers = 4

// ObjectStore is the subset of the S3 API used for artifacts.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client from the default AWS configuration chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// objectKey returns the key of file within the named artifact. The prefix is
// prepended as is.
func objectKey(prefix, name, file string) string {
	return prefix + path.Join(name, file)
}

// s3Source implements Source by downloading artifacts into a local cache.
type s3Source struct {
	client   ObjectStore
	bucket   string
	prefix   string
	cacheDir string
	logger   zerolog.Logger
}

// NewS3Source creates a source that downloads artifacts stored under
// prefix/name/ in bucket into cacheDir/name.
func NewS3Source(client ObjectStore, bucket, prefix, cacheDir string, logger zerolog.Logger) Source {
	logger = logger.With().Str("component", "s3-artifact-source").Logger()

	logger.Info().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Str("cache_dir", cacheDir).
		Msg("S3 artifact source initialised")

	return &s3Source{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// Fetch downloads every artifact file and installs them as cacheDir/name. A
// previous download is replaced only after all files arrived.
func (s *s3Source) Fetch(ctx context.Context, name string) (string, error) {
	s.logger.Info().
		Str("bucket", s.bucket).
		Str("name", name).
		Msg("downloading model artifact from S3")

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact cache: %w", err)
	}
	tmp, err := os.MkdirTemp(s.cacheDir, "."+name+".download-")
	if err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTransfers)
	for _, file := range classifier.RequiredFiles {
		key := objectKey(s.prefix, name, file)
		dst := filepath.Join(tmp, file)
		g.Go(func() error {
			return s.download(gctx, key, dst)
		})
	}
	if err := g.Wait(); err != nil {
		os.RemoveAll(tmp)
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("name", name).
			Msg("failed to download model artifact")
		return "", err
	}

	dir := filepath.Join(s.cacheDir, name)
	if err := replaceDir(tmp, dir); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}

	s.logger.Info().
		Str("bucket", s.bucket).
		Str("name", name).
		Str("dir", dir).
		Msg("model artifact downloaded from S3")

	return dir, nil
}

func (s *s3Source) download(ctx context.Context, key, dst string) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", s.bucket, key, err)
	}
	defer result.Body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, result.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to read S3 object %s: %w", key, err)
	}
	return f.Close()
}

// replaceDir installs src at dst, removing whatever dst held before.
func replaceDir(src, dst string) error {
	var old string
	if _, err := os.Stat(dst); err == nil {
		old = dst + ".old-" + uuid.NewString()
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("failed to move previous artifact aside: %w", err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		return fmt.Errorf("failed to install artifact: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

// s3Publisher implements Publisher by uploading artifact files to S3.
type s3Publisher struct {
	client ObjectStore
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Publisher creates a publisher that uploads artifacts under prefix/name/.
func NewS3Publisher(client ObjectStore, bucket, prefix string, logger zerolog.Logger) Publisher {
	return &s3Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "s3-artifact-publisher").Logger(),
	}
}

// Publish uploads the artifact files found in dir. The weights and tokenizer
// files go first and config.json last, so a reader that sees the config also
// sees the rest.
func (p *s3Publisher) Publish(ctx context.Context, dir, name string) error {
	var payload []string
	for _, file := range classifier.RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			return fmt.Errorf("incomplete artifact in %s: %w", dir, err)
		}
		if file != classifier.ConfigFile {
			payload = append(payload, file)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTransfers)
	for _, file := range payload {
		g.Go(func() error {
			return p.upload(gctx, filepath.Join(dir, file), objectKey(p.prefix, name, file))
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error().Err(err).Str("bucket", p.bucket).Str("name", name).Msg("failed to publish model artifact")
		return err
	}
	if err := p.upload(ctx, filepath.Join(dir, classifier.ConfigFile), objectKey(p.prefix, name, classifier.ConfigFile)); err != nil {
		return err
	}

	p.logger.Info().
		Str("bucket", p.bucket).
		Str("name", name).
		Str("dir", dir).
		Msg("model artifact published to S3")
	return nil
}

func (p *s3Publisher) upload(ctx context.Context, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", p.bucket, key, err)
	}
	return nil
}
