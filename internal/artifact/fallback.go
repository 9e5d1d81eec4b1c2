package artifact

import (
	"context"

	"github.com/rs/zerolog"
)

// fallbackSource tries S3 first, then falls back to local disk.
type fallbackSource struct {
	s3        Source
	local     Source
	s3Enabled bool
	logger    zerolog.Logger
}

// NewFallbackSource creates a source that tries s3 first when enabled and
// falls back to local. If s3 is nil only local is used.
func NewFallbackSource(s3, local Source, s3Enabled bool, logger zerolog.Logger) Source {
	return &fallbackSource{
		s3:        s3,
		local:     local,
		s3Enabled: s3Enabled,
		logger:    logger.With().Str("component", "fallback-artifact-source").Logger(),
	}
}

// Fetch resolves name with S3, then with the local source.
func (s *fallbackSource) Fetch(ctx context.Context, name string) (string, error) {
	if s.s3Enabled && s.s3 != nil {
		s.logger.Info().Str("name", name).Msg("attempting to fetch artifact from S3")

		dir, err := s.s3.Fetch(ctx, name)
		if err == nil {
			return dir, nil
		}

		s.logger.Warn().
			Err(err).
			Str("name", name).
			Msg("failed to fetch from S3, falling back to local file system")
	} else {
		s.logger.Debug().
			Bool("s3_enabled", s.s3Enabled).
			Bool("has_s3_source", s.s3 != nil).
			Msg("S3 disabled or not configured, using local file system")
	}

	return s.local.Fetch(ctx, name)
}
