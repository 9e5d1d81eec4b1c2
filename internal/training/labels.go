package training

import (
	"fmt"

	"food-compliance/internal/model"
)

// LabelEncoder maps raw label values to contiguous class indices and back.
// The mapping is fixed at construction and never depends on which labels
// happen to appear in a dataset.
type LabelEncoder struct {
	classes []int
	names   []string
	index   map[int]int
}

// NewLabelEncoder creates an encoder for the given raw label values and names.
func NewLabelEncoder(classes []int, names []string) (*LabelEncoder, error) {
	if len(classes) == 0 || len(classes) != len(names) {
		return nil, fmt.Errorf("need one name per class, got %d classes and %d names", len(classes), len(names))
	}
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate class %d", c)
		}
		index[c] = i
	}
	return &LabelEncoder{classes: classes, names: names, index: index}, nil
}

// ComplianceLabels returns the encoder for this domain: 0 is "not compliant"
// and 1 is "compliant".
func ComplianceLabels() *LabelEncoder {
	enc, _ := NewLabelEncoder(
		[]int{model.LabelNotCompliant, model.LabelCompliant},
		[]string{model.NotCompliant, model.Compliant},
	)
	return enc
}

// Encode returns the class index of a raw label.
func (e *LabelEncoder) Encode(label int) (int, error) {
	idx, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("unknown label %d", label)
	}
	return idx, nil
}

// EncodeAll encodes every label, failing on the first unknown one.
func (e *LabelEncoder) EncodeAll(labels []int) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, err := e.Encode(l)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		out[i] = idx
	}
	return out, nil
}

// Decode returns the name of a class index.
func (e *LabelEncoder) Decode(idx int) (string, error) {
	if idx < 0 || idx >= len(e.names) {
		return "", fmt.Errorf("class index %d out of range", idx)
	}
	return e.names[idx], nil
}

// Classes returns the raw label values in index order.
func (e *LabelEncoder) Classes() []int {
	return e.classes
}

// Names returns the class names in index order.
func (e *LabelEncoder) Names() []string {
	return e.names
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}
