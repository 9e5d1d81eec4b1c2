package service

import (
	"context"

	"food-compliance/internal/model"

	"github.com/google/uuid"
)

// Predictor classifies prebuilt feature texts with a loaded model.
type Predictor interface {
	// ModelID identifies the loaded model artifact.
	ModelID() uuid.UUID

	// ClassifyTexts returns one label per text, in input order.
	ClassifyTexts(ctx context.Context, texts []string) ([]string, error)
}

// PredictionService defines operations for compliance prediction.
type PredictionService interface {
	// Predict classifies products and records the result under requestID.
	Predict(ctx context.Context, requestID uuid.UUID, products []model.ProductRecord) (*model.PredictResponse, error)

	// ModelID identifies the model serving predictions.
	ModelID() string

	// Predictions returns the audited predictions of requestID in input order.
	Predictions(ctx context.Context, requestID uuid.UUID) (*model.RequestPredictionsResponse, error)

	// Stats counts the audited predictions of the serving model per label.
	Stats(ctx context.Context) (*model.StatsResponse, error)
}
