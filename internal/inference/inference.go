// Package inference scores product records with a fitted classifier.
package inference

import (
	"context"
	"fmt"

	"food-compliance/internal/classifier"
	"food-compliance/internal/feature"
	"food-compliance/internal/model"
	"food-compliance/internal/tokenizer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Classifier is a read-only handle over a loaded model and its tokenizer. It is
// safe for concurrent use: no call mutates the model.
type Classifier struct {
	model   *classifier.Model
	tok     *tokenizer.Tokenizer
	modelID uuid.UUID
	logger  zerolog.Logger
}

// New wraps a loaded artifact. The model is switched to evaluation mode once
// here and never changed afterwards.
func New(art *classifier.Artifact, logger zerolog.Logger) (*Classifier, error) {
	if art == nil || art.Model == nil || art.Tokenizer == nil {
		return nil, fmt.Errorf("artifact with model and tokenizer is required")
	}
	art.Model.SetMode(classifier.EvalMode)
	return &Classifier{
		model:   art.Model,
		tok:     art.Tokenizer,
		modelID: art.Metadata.ID,
		logger:  logger.With().Str("component", "inference").Logger(),
	}, nil
}

// ModelID returns the identifier of the loaded artifact.
func (c *Classifier) ModelID() uuid.UUID {
	return c.modelID
}

// Classify returns one label per record, in input order. An empty input
// returns an empty result.
func (c *Classifier) Classify(ctx context.Context, records []model.ProductRecord) ([]string, error) {
	return c.ClassifyTexts(ctx, feature.BuildTexts(records))
}

// ClassifyTexts is Classify over prebuilt feature texts.
func (c *Classifier) ClassifyTexts(ctx context.Context, texts []string) ([]string, error) {
	idx, _, err := c.run(ctx, texts, false)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(idx))
	for i, k := range idx {
		labels[i] = model.LabelName(k)
	}
	return labels, nil
}

// Scores is Classify with the feature text and the probability of the
// predicted label attached to each result.
func (c *Classifier) Scores(ctx context.Context, records []model.ProductRecord) ([]model.Prediction, error) {
	texts := feature.BuildTexts(records)
	idx, probs, err := c.run(ctx, texts, true)
	if err != nil {
		return nil, err
	}
	out := make([]model.Prediction, len(idx))
	for i, k := range idx {
		out[i] = model.Prediction{
			Text:        texts[i],
			Label:       model.LabelName(k),
			Index:       k,
			Probability: probs[i][k],
		}
	}
	return out, nil
}

func (c *Classifier) run(ctx context.Context, texts []string, withProbs bool) ([]int, [][]float64, error) {
	if len(texts) == 0 {
		return []int{}, [][]float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	batch := c.tok.Encode(texts)
	if len(batch.Truncated) > 0 {
		c.logger.Debug().Int("truncated", len(batch.Truncated)).Int("records", len(texts)).Msg("records truncated")
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if !withProbs {
		idx, err := c.model.Predict(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to classify records: %w", err)
		}
		return idx, nil, nil
	}

	probs, err := c.model.Probabilities(ctx, batch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to score records: %w", err)
	}
	idx := make([]int, len(probs))
	for i, p := range probs {
		idx[i] = floats.MaxIdx(p)
	}
	return idx, probs, nil
}
