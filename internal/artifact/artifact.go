// Package artifact locates model artifact directories on local disk or in S3.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"food-compliance/internal/classifier"
	"food-compliance/internal/config"
	"food-compliance/internal/tokenizer"

	"github.com/rs/zerolog"
)

// Source resolves an artifact name to a local directory that can be handed to
// classifier.Load.
type Source interface {
	// Fetch returns the local directory holding the named artifact.
	Fetch(ctx context.Context, name string) (string, error)
}

// Publisher makes a local artifact directory available under a name.
type Publisher interface {
	// Publish uploads every artifact file in dir under name.
	Publish(ctx context.Context, dir, name string) error
}

// localSource implements Source for artifacts already on disk.
type localSource struct {
	root   string
	logger zerolog.Logger
}

// NewLocalSource creates a source that resolves names relative to root.
func NewLocalSource(root string, logger zerolog.Logger) Source {
	return &localSource{
		root:   root,
		logger: logger.With().Str("component", "local-artifact-source").Logger(),
	}
}

// Fetch checks that the named directory exists under root.
func (s *localSource) Fetch(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, name)
	info, err := os.Stat(dir)
	if err != nil {
		s.logger.Error().Err(err).Str("dir", dir).Msg("artifact directory not found")
		return "", fmt.Errorf("artifact directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("artifact path %s is not a directory", dir)
	}

	s.logger.Debug().Str("dir", dir).Msg("using local artifact")
	return dir, nil
}

// Load fetches the named artifact from src and loads it.
func Load(ctx context.Context, src Source, name string, logger zerolog.Logger) (*classifier.Artifact, error) {
	dir, err := src.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model artifact %s: %w", name, err)
	}
	return classifier.Load(dir, logger)
}

// ConfigureTokenizer replaces the artifact tokenizer with one using the given
// truncation ceiling and padding strategy. A maxLength of 0 keeps the ceiling
// the model was trained with; a larger one than that is rejected. Padding does
// not change predictions; a lower ceiling truncates more text.
func ConfigureTokenizer(art *classifier.Artifact, maxLength int, padding tokenizer.Padding) error {
	trained := art.Tokenizer.Config().MaxLength
	if maxLength == 0 {
		maxLength = trained
	}
	if maxLength > trained {
		return fmt.Errorf("max length %d exceeds the trained ceiling of %d", maxLength, trained)
	}

	tok, err := art.Tokenizer.WithMaxLength(maxLength)
	if err != nil {
		return err
	}
	tok, err = tok.WithPadding(padding)
	if err != nil {
		return err
	}
	art.Tokenizer = tok
	return nil
}

// NewSource builds the source for the model directory modelDir. Artifacts
// are looked up by the base name of modelDir, in S3 first when enabled, then
// in the parent directory of modelDir.
func NewSource(ctx context.Context, cfg config.S3Config, modelDir string, logger zerolog.Logger) (Source, string) {
	modelDir = filepath.Clean(modelDir)
	name := filepath.Base(modelDir)
	local := NewLocalSource(filepath.Dir(modelDir), logger)

	if !cfg.Enabled {
		logger.Info().Msg("using local file system for model artifacts (S3 disabled)")
		return local, name
	}

	client, err := NewS3Client(ctx, cfg.Region)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 client, falling back to local file system only")
		return local, name
	}

	s3Src := NewS3Source(client, cfg.Bucket, cfg.Prefix, cfg.CacheDir, logger)
	return NewFallbackSource(s3Src, local, true, logger), name
}
