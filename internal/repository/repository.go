package repository

import (
	"context"

	"food-compliance/internal/model"

	"github.com/google/uuid"
)

// PredictionRepository defines the interface for the prediction audit log.
type PredictionRepository interface {
	// SaveBatch stores the predictions of one request atomically.
	SaveBatch(ctx context.Context, records []model.PredictionRecord) error

	// ListByRequest returns the predictions of a request ordered by position.
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.PredictionRecord, error)

	// CountByLabel returns how often each label was predicted by a model.
	CountByLabel(ctx context.Context, modelID uuid.UUID) (map[string]int, error)
}
