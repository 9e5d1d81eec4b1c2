package classifier

import (
	"fmt"
	"math"

	"food-compliance/internal/tokenizer"

	"gonum.org/v1/gonum/floats"
)

// Gradients has the same layout as Params.
type Gradients = Params

// NewGradients returns zeroed gradients matching the model.
func (m *Model) NewGradients() *Gradients {
	return newParamsLike(m.cfg)
}

// Reset zeroes every gradient.
func (p *Params) Reset() {
	for _, s := range p.slices() {
		for i := range s {
			s[i] = 0
		}
	}
}

// ForwardBackward runs the batch in the model's current mode, returns the
// weighted mean cross-entropy loss and accumulates its gradient into grads.
// classWeights holds one weight per label; each row counts with the weight of
// its label and the loss is normalised by the sum of the row weights. Nil
// classWeights weighs every row equally.
func (m *Model) ForwardBackward(batch tokenizer.EncodedBatch, labels []int, classWeights []float64, grads *Gradients) (float64, error) {
	if err := m.checkBatch(batch); err != nil {
		return 0, err
	}
	if len(labels) != batch.Len() {
		return 0, fmt.Errorf("batch has %d rows but %d labels", batch.Len(), len(labels))
	}
	if classWeights != nil && len(classWeights) != m.cfg.NumLabels {
		return 0, fmt.Errorf("have %d class weights for %d labels", len(classWeights), m.cfg.NumLabels)
	}
	for l, w := range classWeights {
		if !(w > 0) || math.IsInf(w, 0) {
			return 0, fmt.Errorf("class weight %d must be a positive number, got %g", l, w)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	d, h := m.cfg.EmbedDim, m.cfg.HiddenDim
	p := m.params

	weight := func(y int) float64 {
		if classWeights == nil {
			return 1
		}
		return classWeights[y]
	}

	var norm float64
	for i, y := range labels {
		if y < 0 || y >= m.cfg.NumLabels {
			return 0, fmt.Errorf("row %d: label %d outside [0, %d)", i, y, m.cfg.NumLabels)
		}
		norm += weight(y)
	}

	var loss float64
	dA1 := make([]float64, h)
	dPooled := make([]float64, d)

	for i := range batch.InputIDs {
		y := labels[i]
		w := weight(y)

		act := m.forwardRow(batch.InputIDs[i], batch.AttentionMask[i], m.mode)
		probs := Softmax(act.logits)
		loss -= w * math.Log(math.Max(probs[y], 1e-300))

		// dL/dlogits = w * (softmax - onehot) / norm
		dLogits := probs
		dLogits[y] -= 1
		floats.Scale(w/norm, dLogits)

		for j := range dA1 {
			dA1[j] = 0
		}
		for l, g := range dLogits {
			row := p.W2[l*h : (l+1)*h]
			floats.AddScaled(grads.W2[l*h:(l+1)*h], g, act.a1)
			grads.B2[l] += g
			floats.AddScaled(dA1, g, row)
		}

		if act.keep != nil {
			floats.Mul(dA1, act.keep)
		}
		for j := range dA1 {
			if act.z1[j] <= 0 {
				dA1[j] = 0
			}
		}

		for k := range dPooled {
			dPooled[k] = 0
		}
		for j, g := range dA1 {
			if g == 0 {
				continue
			}
			floats.AddScaled(grads.W1[j*d:(j+1)*d], g, act.pooled)
			grads.B1[j] += g
			floats.AddScaled(dPooled, g, p.W1[j*d:(j+1)*d])
		}

		if act.count == 0 {
			continue
		}
		inv := 1 / float64(act.count)
		for _, id := range act.ids {
			floats.AddScaled(grads.Embedding[id*d:(id+1)*d], inv, dPooled)
		}
	}

	return loss / norm, nil
}

// Loss returns the mean cross-entropy of the batch in EvalMode without
// touching any gradient.
func (m *Model) Loss(batch tokenizer.EncodedBatch, labels []int) (float64, error) {
	if err := m.checkBatch(batch); err != nil {
		return 0, err
	}
	if len(labels) != batch.Len() {
		return 0, fmt.Errorf("batch has %d rows but %d labels", batch.Len(), len(labels))
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	var loss float64
	for i := range batch.InputIDs {
		act := m.forwardRow(batch.InputIDs[i], batch.AttentionMask[i], EvalMode)
		probs := Softmax(act.logits)
		loss -= math.Log(math.Max(probs[labels[i]], 1e-300))
	}
	return loss / float64(batch.Len()), nil
}

// Finite reports whether every parameter is a finite number.
func (m *Model) Finite() bool {
	for _, s := range m.params.slices() {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Adam is the Adam optimiser with decoupled weight decay applied to weight
// matrices (not biases).
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64

	step int
	m    *Params
	v    *Params
}

// NewAdam creates an optimiser for model.
func NewAdam(model *Model, learningRate, weightDecay float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  weightDecay,
		m:            newParamsLike(model.cfg),
		v:            newParamsLike(model.cfg),
	}
}

// Step applies one update to model using grads.
func (a *Adam) Step(model *Model, grads *Gradients) {
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))

	params := model.params.slices()
	gs := grads.slices()
	ms := a.m.slices()
	vs := a.v.slices()

	for t := range params {
		decay := a.WeightDecay
		if t == 2 || t == 4 {
			decay = 0 // biases
		}
		p, g, m, v := params[t], gs[t], ms[t], vs[t]
		for i := range p {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g[i]
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g[i]*g[i]
			mHat := m[i] / c1
			vHat := v[i] / c2
			p[i] -= a.LearningRate * (mHat/(math.Sqrt(vHat)+a.Epsilon) + decay*p[i])
		}
	}
}
