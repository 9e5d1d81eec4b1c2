// Package classifier implements the compliance classifier: a subword embedding
// encoder with masked mean pooling, a ReLU pre-classifier layer and a linear
// classification head over two labels.
package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"food-compliance/internal/tokenizer"

	"gonum.org/v1/gonum/floats"
)

// NumLabels is the number of output classes: not compliant (0) and compliant (1).
const NumLabels = 2

// Mode selects training or evaluation behaviour.
type Mode int

const (
	// EvalMode is deterministic: dropout is disabled.
	EvalMode Mode = iota
	// TrainMode applies dropout and token dropout and is used only by the
	// training loop.
	TrainMode
)

func (m Mode) String() string {
	if m == TrainMode {
		return "train"
	}
	return "eval"
}

// embeddingInitStd is the standard deviation of the initial embedding rows.
// Rows of tokens never seen in training keep roughly this magnitude.
const embeddingInitStd = 0.02

// Config describes the model dimensions.
type Config struct {
	VocabSize int     `json:"vocab_size"`
	EmbedDim  int     `json:"embed_dim"`
	HiddenDim int     `json:"hidden_dim"`
	NumLabels int     `json:"num_labels"`
	Dropout   float64 `json:"dropout"`
	Seed      uint64  `json:"seed"`

	// TokenDropout is the probability of leaving a token out of the pooled
	// embedding in TrainMode. At least one token of a row is always kept.
	TokenDropout float64 `json:"token_dropout"`
}

// DefaultConfig returns the dimensions used for a vocabulary of vocabSize tokens.
func DefaultConfig(vocabSize int) Config {
	return Config{
		VocabSize: vocabSize,
		EmbedDim:  32,
		HiddenDim: 32,
		NumLabels: NumLabels,
		Dropout:   0.1,
		Seed:      42,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.VocabSize < 1 {
		return fmt.Errorf("vocab size must be positive, got %d", c.VocabSize)
	}
	if c.EmbedDim < 1 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbedDim)
	}
	if c.HiddenDim < 1 {
		return fmt.Errorf("hidden dimension must be positive, got %d", c.HiddenDim)
	}
	if c.NumLabels != NumLabels {
		return fmt.Errorf("classification head must have %d outputs, got %d", NumLabels, c.NumLabels)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %g", c.Dropout)
	}
	if c.TokenDropout < 0 || c.TokenDropout >= 1 {
		return fmt.Errorf("token dropout must be in [0, 1), got %g", c.TokenDropout)
	}
	return nil
}

// Params is the full parameter state. Matrices are row-major.
type Params struct {
	Embedding []float64 // VocabSize x EmbedDim
	W1        []float64 // HiddenDim x EmbedDim
	B1        []float64 // HiddenDim
	W2        []float64 // NumLabels x HiddenDim
	B2        []float64 // NumLabels
}

// slices returns the parameter tensors in a fixed order.
func (p *Params) slices() [][]float64 {
	return [][]float64{p.Embedding, p.W1, p.B1, p.W2, p.B2}
}

func newParamsLike(cfg Config) *Params {
	return &Params{
		Embedding: make([]float64, cfg.VocabSize*cfg.EmbedDim),
		W1:        make([]float64, cfg.HiddenDim*cfg.EmbedDim),
		B1:        make([]float64, cfg.HiddenDim),
		W2:        make([]float64, cfg.NumLabels*cfg.HiddenDim),
		B2:        make([]float64, cfg.NumLabels),
	}
}

// checkShapes verifies that every tensor matches cfg.
func (p *Params) checkShapes(cfg Config) error {
	want := newParamsLike(cfg)
	names := []string{"embedding", "pre_classifier.weight", "pre_classifier.bias", "classifier.weight", "classifier.bias"}
	got := p.slices()
	for i, w := range want.slices() {
		if len(got[i]) != len(w) {
			return fmt.Errorf("%s has %d values, expected %d", names[i], len(got[i]), len(w))
		}
	}
	return nil
}

// Model is the compliance classifier. A model in EvalMode is read-only and may
// be shared across goroutines; TrainMode is reserved for a single training loop.
type Model struct {
	cfg    Config
	params *Params
	mode   Mode
	rng    *rand.Rand
}

// New creates a randomly initialised model.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	p := newParamsLike(cfg)

	for i := range p.Embedding {
		p.Embedding[i] = rng.NormFloat64() * embeddingInitStd
	}
	xavier(rng, p.W1, cfg.EmbedDim, cfg.HiddenDim)
	xavier(rng, p.W2, cfg.HiddenDim, cfg.NumLabels)

	return &Model{cfg: cfg, params: p, mode: EvalMode, rng: rng}, nil
}

// FromParams wraps an existing parameter state, e.g. one read from disk.
func FromParams(cfg Config, p *Params) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("parameters are nil")
	}
	if err := p.checkShapes(cfg); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	return &Model{cfg: cfg, params: p, mode: EvalMode, rng: rng}, nil
}

func xavier(rng *rand.Rand, w []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

// Config returns the model dimensions.
func (m *Model) Config() Config {
	return m.cfg
}

// Params exposes the parameter state.
func (m *Model) Params() *Params {
	return m.params
}

// Mode returns the current mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// SetMode switches between training and evaluation.
func (m *Model) SetMode(mode Mode) {
	m.mode = mode
}

// activations holds per-row intermediate values needed for backpropagation.
type activations struct {
	ids    []int
	count  int
	pooled []float64
	z1     []float64
	keep   []float64 // dropout multipliers, nil in eval mode
	a1     []float64 // post-ReLU, post-dropout
	logits []float64
}

func (m *Model) checkBatch(batch tokenizer.EncodedBatch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	for i, row := range batch.InputIDs {
		for _, id := range row {
			if id < 0 || id >= m.cfg.VocabSize {
				return fmt.Errorf("row %d: token id %d outside vocabulary of %d", i, id, m.cfg.VocabSize)
			}
		}
	}
	return nil
}

func (m *Model) forwardRow(ids, mask []int, mode Mode) *activations {
	d, h := m.cfg.EmbedDim, m.cfg.HiddenDim
	p := m.params

	act := &activations{
		pooled: make([]float64, d),
		z1:     make([]float64, h),
		a1:     make([]float64, h),
		logits: make([]float64, m.cfg.NumLabels),
	}

	for t, id := range ids {
		if mask[t] != 0 {
			act.ids = append(act.ids, id)
		}
	}
	if mode == TrainMode && m.cfg.TokenDropout > 0 && len(act.ids) > 0 {
		kept := make([]int, 0, len(act.ids))
		for _, id := range act.ids {
			if m.rng.Float64() >= m.cfg.TokenDropout {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			kept = append(kept, act.ids[0])
		}
		act.ids = kept
	}
	for _, id := range act.ids {
		floats.Add(act.pooled, p.Embedding[id*d:(id+1)*d])
	}
	act.count = len(act.ids)
	if act.count > 0 {
		floats.Scale(1/float64(act.count), act.pooled)
	}

	for j := 0; j < h; j++ {
		act.z1[j] = floats.Dot(p.W1[j*d:(j+1)*d], act.pooled) + p.B1[j]
		act.a1[j] = math.Max(0, act.z1[j])
	}

	if mode == TrainMode && m.cfg.Dropout > 0 {
		act.keep = make([]float64, h)
		scale := 1 / (1 - m.cfg.Dropout)
		for j := range act.keep {
			if m.rng.Float64() >= m.cfg.Dropout {
				act.keep[j] = scale
			}
		}
		floats.Mul(act.a1, act.keep)
	}

	for l := range act.logits {
		act.logits[l] = floats.Dot(p.W2[l*h:(l+1)*h], act.a1) + p.B2[l]
	}

	return act
}

// Forward returns logits of shape [batch, NumLabels] using the current mode.
func (m *Model) Forward(ctx context.Context, batch tokenizer.EncodedBatch) ([][]float64, error) {
	return m.forward(ctx, batch, m.mode)
}

func (m *Model) forward(ctx context.Context, batch tokenizer.EncodedBatch, mode Mode) ([][]float64, error) {
	if err := m.checkBatch(batch); err != nil {
		return nil, err
	}

	logits := make([][]float64, batch.Len())
	for i := range batch.InputIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logits[i] = m.forwardRow(batch.InputIDs[i], batch.AttentionMask[i], mode).logits
	}
	return logits, nil
}

// Predict returns the arg-max label index of every row. It always evaluates in
// EvalMode, whatever the model's current mode. Ties resolve to the lower index.
func (m *Model) Predict(ctx context.Context, batch tokenizer.EncodedBatch) ([]int, error) {
	logits, err := m.forward(ctx, batch, EvalMode)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(logits))
	for i, row := range logits {
		out[i] = floats.MaxIdx(row)
	}
	return out, nil
}

// Probabilities returns the softmax of the eval-mode logits for every row.
func (m *Model) Probabilities(ctx context.Context, batch tokenizer.EncodedBatch) ([][]float64, error) {
	logits, err := m.forward(ctx, batch, EvalMode)
	if err != nil {
		return nil, err
	}
	for i, row := range logits {
		logits[i] = Softmax(row)
	}
	return logits, nil
}

// Softmax returns a numerically stable softmax of x.
func Softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	hi := floats.Max(x)
	var sum float64
	for i, v := range x {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	floats.Scale(1/sum, out)
	return out
}
