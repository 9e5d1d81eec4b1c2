package model

import (
	"time"

	"github.com/google/uuid"
)

// ProductRecord is a single food product as supplied by a caller or read from a
// data file. Every field is optional; a nil field is treated as empty text.
type ProductRecord struct {
	ProductName     *string `json:"product_name,omitempty" csv:"product_name"`
	Brand           *string `json:"brand,omitempty" csv:"brand"`
	NutritionalInfo *string `json:"nutritional_info,omitempty" csv:"nutritional_info"`
	ExpirationDate  *string `json:"expiration_date,omitempty" csv:"expiration_date"`
	RegulatoryNotes *string `json:"regulatory_notes,omitempty" csv:"regulatory_notes"`
}

// NewProductRecord builds a record with every field present.
func NewProductRecord(name, brand, nutrition, expiration, notes string) ProductRecord {
	return ProductRecord{
		ProductName:     &name,
		Brand:           &brand,
		NutritionalInfo: &nutrition,
		ExpirationDate:  &expiration,
		RegulatoryNotes: &notes,
	}
}

// Value returns the dereferenced field or "" when the field is missing.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compliance labels.
const (
	LabelNotCompliant = 0
	LabelCompliant    = 1
)

// Label names returned to callers.
const (
	NotCompliant = "not compliant"
	Compliant    = "compliant"
)

// LabelName maps a class index to its label string.
func LabelName(idx int) string {
	if idx == LabelCompliant {
		return Compliant
	}
	return NotCompliant
}

// LabeledExample is the feature text of a product paired with its binary label.
type LabeledExample struct {
	Text  string
	Label int
}

// LabeledRecord is a product record with its ground-truth label, as produced by
// the synthetic generator or read from a training file.
type LabeledRecord struct {
	ProductRecord
	Label int `json:"label" csv:"label"`
}

// Prediction is the scored output for one record.
type Prediction struct {
	Text        string  `json:"text"`
	Label       string  `json:"label"`
	Index       int     `json:"index"`
	Probability float64 `json:"probability"`
}

// PredictionRecord is a persisted prediction for auditing.
type PredictionRecord struct {
	ID          uuid.UUID `json:"id" db:"id"`
	RequestID   uuid.UUID `json:"requestId" db:"request_id"`
	ModelID     uuid.UUID `json:"modelId" db:"model_id"`
	Position    int       `json:"position" db:"position"`
	FeatureText string    `json:"featureText" db:"feature_text"`
	Label       string    `json:"label" db:"label"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
