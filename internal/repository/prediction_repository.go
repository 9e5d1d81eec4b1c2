package repository

import (
	"context"
	"fmt"

	"food-compliance/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// predictionRepository implements the PredictionRepository interface using PostgreSQL.
type predictionRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPredictionRepository creates a new PostgreSQL-backed prediction repository.
func NewPredictionRepository(pool *pgxpool.Pool, logger zerolog.Logger) PredictionRepository {
	return &predictionRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "prediction").Logger(),
	}
}

// SaveBatch inserts all records in a single transaction.
func (r *predictionRepository) SaveBatch(ctx context.Context, records []model.PredictionRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		INSERT INTO predictions (id, request_id, model_id, position, feature_text, label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.ID, rec.RequestID, rec.ModelID, rec.Position, rec.FeatureText, rec.Label, rec.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err = results.Exec(); err != nil {
			results.Close()
			r.logger.Error().
				Err(err).
				Str("request_id", records[i].RequestID.String()).
				Int("position", records[i].Position).
				Msg("failed to insert prediction")
			return fmt.Errorf("failed to insert prediction: %w", err)
		}
	}
	if err = results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug().
		Str("request_id", records[0].RequestID.String()).
		Int("count", len(records)).
		Msg("predictions saved successfully")

	return nil
}

// ListByRequest returns the predictions stored for requestID.
func (r *predictionRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.PredictionRecord, error) {
	query := `
		SELECT id, request_id, model_id, position, feature_text, label, created_at
		FROM predictions
		WHERE request_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		r.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("failed to query predictions")
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PredictionRecord])
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to scan prediction rows")
		return nil, fmt.Errorf("failed to scan predictions: %w", err)
	}

	return records, nil
}

// CountByLabel aggregates predictions of modelID per label.
func (r *predictionRepository) CountByLabel(ctx context.Context, modelID uuid.UUID) (map[string]int, error) {
	query := `
		SELECT label, COUNT(*)
		FROM predictions
		WHERE model_id = $1
		GROUP BY label
	`

	rows, err := r.pool.Query(ctx, query, modelID)
	if err != nil {
		r.logger.Error().Err(err).Str("model_id", modelID.String()).Msg("failed to count predictions")
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan prediction count: %w", err)
		}
		counts[label] = n
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating prediction count rows")
		return nil, fmt.Errorf("error iterating prediction counts: %w", err)
	}

	return counts, nil
}
