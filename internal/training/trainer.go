// Package training fine-tunes the compliance classifier on labeled examples.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"food-compliance/internal/classifier"
	"food-compliance/internal/model"
	"food-compliance/internal/tokenizer"

	"github.com/rs/zerolog"
)

// Options configures a training run.
type Options struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	WeightDecay  float64 `yaml:"weight_decay"`
	Seed         uint64  `yaml:"seed"`
	TestSplit    float64 `yaml:"test_split"`
	EmbedDim     int     `yaml:"embed_dim"`
	HiddenDim    int     `yaml:"hidden_dim"`
	Dropout      float64 `yaml:"dropout"`
	TokenDropout float64 `yaml:"token_dropout"`

	// BalanceClasses weighs the loss of each class by the inverse of its
	// frequency in the training split.
	BalanceClasses bool `yaml:"balance_classes"`

	// OutputDir, when set, receives the fitted artifact after a successful run.
	OutputDir string `yaml:"output_dir"`
}

// DefaultOptions returns the standard training configuration. Balanced
// classes and token dropout keep a record whose expiration year never occurs
// in the training data from being judged by that year alone.
func DefaultOptions() Options {
	return Options{
		Epochs:         20,
		BatchSize:      8,
		LearningRate:   5e-3,
		WeightDecay:    0.1,
		Seed:           42,
		TestSplit:      0.2,
		EmbedDim:       32,
		HiddenDim:      32,
		Dropout:        0.1,
		TokenDropout:   0.3,
		BalanceClasses: true,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1, got %d", o.Epochs)
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", o.BatchSize)
	}
	if o.LearningRate <= 0 || math.IsNaN(o.LearningRate) || math.IsInf(o.LearningRate, 0) {
		return fmt.Errorf("learning rate must be a positive number, got %g", o.LearningRate)
	}
	if o.WeightDecay < 0 {
		return fmt.Errorf("weight decay must not be negative, got %g", o.WeightDecay)
	}
	if o.TestSplit <= 0 || o.TestSplit >= 1 {
		return fmt.Errorf("test split must be in (0, 1), got %g", o.TestSplit)
	}
	if o.EmbedDim < 1 || o.HiddenDim < 1 {
		return fmt.Errorf("model dimensions must be positive")
	}
	if o.Dropout < 0 || o.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %g", o.Dropout)
	}
	if o.TokenDropout < 0 || o.TokenDropout >= 1 {
		return fmt.Errorf("token dropout must be in [0, 1), got %g", o.TokenDropout)
	}
	return nil
}

// Result is the outcome of a successful training run.
type Result struct {
	Model       *classifier.Model
	Tokenizer   *tokenizer.Tokenizer
	Metadata    classifier.Metadata
	Report      Report
	EpochLosses []float64
	Duration    time.Duration

	TrainSize         int
	TestSize          int
	TrainDistribution map[string]int
	TestDistribution  map[string]int

	// ClassWeights are the loss weights per label index; nil when the
	// classes were not balanced.
	ClassWeights []float64

	// Truncated counts examples cut to the tokenizer's maximum length.
	Truncated int
}

// Trainer fine-tunes classifiers using a fixed tokenizer.
type Trainer struct {
	tok    *tokenizer.Tokenizer
	labels *LabelEncoder
	logger zerolog.Logger
}

// NewTrainer creates a trainer. The tokenizer's vocabulary is stored with every
// artifact the trainer produces.
func NewTrainer(tok *tokenizer.Tokenizer, logger zerolog.Logger) *Trainer {
	return &Trainer{
		tok:    tok,
		labels: ComplianceLabels(),
		logger: logger.With().Str("component", "trainer").Logger(),
	}
}

// Train fits a new classifier on examples. It splits the examples into a
// training and a held-out part, runs opts.Epochs passes of shuffled
// mini-batches, evaluates the held-out part and, if opts.OutputDir is set,
// persists the artifact. A non-finite loss aborts the run with a
// *model.TrainingError and nothing is written.
func (t *Trainer) Train(ctx context.Context, examples []model.LabeledExample, opts Options) (*Result, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training options: %w", err)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("no training examples")
	}

	texts := make([]string, len(examples))
	raw := make([]int, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Text
		raw[i] = ex.Label
	}
	y, err := t.labels.EncodeAll(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode labels: %w", err)
	}

	trainIdx, testIdx, err := Split(len(examples), opts.TestSplit, opts.Seed)
	if err != nil {
		return nil, err
	}

	encoded := t.tok.Encode(texts)

	cfg := classifier.Config{
		VocabSize:    t.tok.Vocab().Size(),
		EmbedDim:     opts.EmbedDim,
		HiddenDim:    opts.HiddenDim,
		NumLabels:    t.labels.Len(),
		Dropout:      opts.Dropout,
		Seed:         opts.Seed,
		TokenDropout: opts.TokenDropout,
	}
	m, err := classifier.New(cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Model:             m,
		Tokenizer:         t.tok,
		TrainSize:         len(trainIdx),
		TestSize:          len(testIdx),
		TrainDistribution: t.distribution(y, trainIdx),
		TestDistribution:  t.distribution(y, testIdx),
		Truncated:         len(encoded.Truncated),
	}
	if opts.BalanceClasses {
		result.ClassWeights = ClassWeights(y, trainIdx, t.labels.Len())
	}

	t.logger.Info().
		Int("examples", len(examples)).
		Int("train", result.TrainSize).
		Int("test", result.TestSize).
		Int("epochs", opts.Epochs).
		Int("batch_size", opts.BatchSize).
		Float64("learning_rate", opts.LearningRate).
		Floats64("class_weights", result.ClassWeights).
		Int("seq_len", encoded.SeqLen()).
		Msg("starting training")

	opt := classifier.NewAdam(m, opts.LearningRate, opts.WeightDecay)
	grads := m.NewGradients()
	rng := newRand(opts.Seed + 1)
	order := append([]int(nil), trainIdx...)

	m.SetMode(classifier.TrainMode)
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		batches := 0
		for lo := 0; lo < len(order); lo += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
			}

			rows := order[lo:min(lo+opts.BatchSize, len(order))]
			batchLabels := make([]int, len(rows))
			for i, r := range rows {
				batchLabels[i] = y[r]
			}

			grads.Reset()
			loss, err := m.ForwardBackward(encoded.Select(rows), batchLabels, result.ClassWeights, grads)
			if err != nil {
				return nil, &model.TrainingError{Epoch: epoch, Batch: batches + 1, Reason: "forward pass failed", Err: err}
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				t.logger.Error().Int("epoch", epoch).Int("batch", batches+1).Float64("loss", loss).Msg("non-finite loss")
				return nil, &model.TrainingError{Epoch: epoch, Batch: batches + 1, Reason: fmt.Sprintf("non-finite loss %v", loss)}
			}

			opt.Step(m, grads)
			if !m.Finite() {
				t.logger.Error().Int("epoch", epoch).Int("batch", batches+1).Msg("non-finite parameters")
				return nil, &model.TrainingError{Epoch: epoch, Batch: batches + 1, Reason: "parameters became non-finite"}
			}

			total += loss
			batches++
		}

		avg := total / float64(batches)
		result.EpochLosses = append(result.EpochLosses, avg)
		t.logger.Info().
			Int("epoch", epoch).
			Float64("avg_loss", avg).
			Msg("epoch completed")
	}
	m.SetMode(classifier.EvalMode)

	preds, err := m.Predict(ctx, encoded.Select(testIdx))
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	yTest := make([]int, len(testIdx))
	for i, r := range testIdx {
		yTest[i] = y[r]
	}
	result.Report, err = NewReport(yTest, preds, t.labels.Names())
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	result.Metadata = classifier.NewMetadata(t.tok)
	result.Duration = time.Since(start)

	t.logger.Info().
		Float64("accuracy", result.Report.Accuracy).
		Float64("macro_f1", result.Report.MacroAvg.F1).
		Dur("duration", result.Duration).
		Msg("training completed")

	if opts.OutputDir != "" {
		if err := classifier.Save(opts.OutputDir, m, t.tok, result.Metadata); err != nil {
			return nil, fmt.Errorf("failed to save model: %w", err)
		}
		t.logger.Info().
			Str("dir", opts.OutputDir).
			Str("model_id", result.Metadata.ID.String()).
			Msg("model artifact saved")
	}

	return result, nil
}

// ClassWeights returns one weight per class such that every class present in
// rows contributes the same total weight: len(rows) / (numClasses * count).
// A class absent from rows weighs 1.
func ClassWeights(y, rows []int, numClasses int) []float64 {
	counts := make([]int, numClasses)
	for _, r := range rows {
		counts[y[r]]++
	}
	weights := make([]float64, numClasses)
	for c, n := range counts {
		if n == 0 {
			weights[c] = 1
			continue
		}
		weights[c] = float64(len(rows)) / float64(numClasses*n)
	}
	return weights
}

func (t *Trainer) distribution(y, rows []int) map[string]int {
	dist := make(map[string]int, t.labels.Len())
	for _, name := range t.labels.Names() {
		dist[name] = 0
	}
	for _, r := range rows {
		name, _ := t.labels.Decode(y[r])
		dist[name]++
	}
	return dist
}
