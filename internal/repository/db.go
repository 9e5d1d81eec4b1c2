package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the prediction audit table. It is safe to apply repeatedly.
const Schema = `
	CREATE TABLE IF NOT EXISTS predictions (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL,
		model_id UUID NOT NULL,
		position INTEGER NOT NULL CHECK (position >= 0),
		feature_text TEXT NOT NULL,
		label TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (request_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_model_label ON predictions(model_id, label);
	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC);
`

// EnsureSchema applies Schema to the database behind pool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
