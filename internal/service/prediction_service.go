package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-compliance/internal/feature"
	"food-compliance/internal/model"
	"food-compliance/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// auditTimeout bounds how long a response waits for the audit insert.
const auditTimeout = 5 * time.Second

// Options configures a prediction service.
type Options struct {
	Timeout  time.Duration
	MaxBatch int
}

// predictionService implements PredictionService.
type predictionService struct {
	predictor Predictor
	repo      repository.PredictionRepository
	opts      Options
	logger    zerolog.Logger
}

// NewPredictionService creates a new prediction service. repo may be nil, in
// which case predictions are not audited.
func NewPredictionService(
	predictor Predictor,
	repo repository.PredictionRepository,
	opts Options,
	logger zerolog.Logger,
) PredictionService {
	return &predictionService{
		predictor: predictor,
		repo:      repo,
		opts:      opts,
		logger:    logger.With().Str("service", "prediction").Logger(),
	}
}

// ModelID identifies the model serving predictions.
func (s *predictionService) ModelID() string {
	if s.predictor == nil {
		return ""
	}
	return s.predictor.ModelID().String()
}

// Predict classifies products in order. The request timeout applies to
// inference only; audit failures are logged and do not fail the prediction.
func (s *predictionService) Predict(ctx context.Context, requestID uuid.UUID, products []model.ProductRecord) (*model.PredictResponse, error) {
	if s.predictor == nil {
		return nil, model.ErrModelUnavailable
	}

	if s.opts.MaxBatch > 0 && len(products) > s.opts.MaxBatch {
		s.logger.Warn().
			Str("request_id", requestID.String()).
			Int("product_count", len(products)).
			Int("max_batch", s.opts.MaxBatch).
			Msg("prediction batch too large")
		return nil, model.ErrBatchTooLarge
	}

	if len(products) == 0 {
		return &model.PredictResponse{Predictions: []string{}}, nil
	}

	inferCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	texts := feature.BuildTexts(products)
	labels, err := s.predictor.ClassifyTexts(inferCtx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().
				Str("request_id", requestID.String()).
				Int("product_count", len(products)).
				Dur("timeout", s.opts.Timeout).
				Msg("prediction timed out")
			return nil, model.ErrPredictTimeout
		}
		s.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("failed to classify products")
		return nil, fmt.Errorf("failed to classify products: %w", err)
	}

	s.audit(ctx, requestID, texts, labels)

	s.logger.Info().
		Str("request_id", requestID.String()).
		Int("product_count", len(products)).
		Dur("duration", time.Since(start)).
		Msg("products classified")

	return &model.PredictResponse{Predictions: labels}, nil
}

// audit stores predictions when a repository is configured. It survives the
// cancellation of ctx so that a client disconnect does not drop the record.
func (s *predictionService) audit(ctx context.Context, requestID uuid.UUID, texts, labels []string) {
	if s.repo == nil {
		return
	}

	modelID := s.predictor.ModelID()
	now := time.Now().UTC()
	records := make([]model.PredictionRecord, len(labels))
	for i, label := range labels {
		records[i] = model.PredictionRecord{
			ID:          uuid.New(),
			RequestID:   requestID,
			ModelID:     modelID,
			Position:    i,
			FeatureText: texts[i],
			Label:       label,
			CreatedAt:   now,
		}
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := s.repo.SaveBatch(auditCtx, records); err != nil {
		s.logger.Error().
			Err(err).
			Str("request_id", requestID.String()).
			Int("count", len(records)).
			Msg("failed to audit predictions")
	}
}

// Predictions returns the audited predictions of requestID.
func (s *predictionService) Predictions(ctx context.Context, requestID uuid.UUID) (*model.RequestPredictionsResponse, error) {
	if s.repo == nil {
		return nil, model.ErrAuditDisabled
	}

	records, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("failed to list predictions")
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	if len(records) == 0 {
		return nil, model.ErrRequestNotFound
	}

	resp := &model.RequestPredictionsResponse{
		RequestID:   requestID.String(),
		Predictions: make([]model.AuditedPrediction, len(records)),
	}
	for i, rec := range records {
		resp.Predictions[i] = model.AuditedPrediction{
			Position:    rec.Position,
			FeatureText: rec.FeatureText,
			Label:       rec.Label,
			ModelID:     rec.ModelID.String(),
			CreatedAt:   rec.CreatedAt,
		}
	}
	return resp, nil
}

// Stats counts the audited predictions of the serving model. Both labels are
// always present in the result.
func (s *predictionService) Stats(ctx context.Context) (*model.StatsResponse, error) {
	if s.predictor == nil {
		return nil, model.ErrModelUnavailable
	}
	if s.repo == nil {
		return nil, model.ErrAuditDisabled
	}

	modelID := s.predictor.ModelID()
	counts, err := s.repo.CountByLabel(ctx, modelID)
	if err != nil {
		s.logger.Error().Err(err).Str("model_id", modelID.String()).Msg("failed to count predictions")
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	resp := &model.StatsResponse{
		ModelID: modelID.String(),
		Counts: map[string]int{
			model.NotCompliant: 0,
			model.Compliant:    0,
		},
	}
	for label, n := range counts {
		resp.Counts[label] = n
		resp.Total += n
	}
	return resp, nil
}
