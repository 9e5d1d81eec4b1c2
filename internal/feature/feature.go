// Package feature turns structured product records into the free-text input
// consumed by the tokenizer. The same function is used when training and when
// scoring; artifacts record Version so that a model is never served with a
// different text layout than it was trained on.
package feature

import (
	"strings"

	"food-compliance/internal/model"
)

// Version identifies the text layout produced by BuildText. Bump it whenever
// the output of BuildText changes for any input.
const Version = "v1"

// BuildText concatenates product name, brand, nutritional info, expiration date
// and regulatory notes, in that order, separated by single spaces and lowercased.
// Missing fields contribute an empty string but keep their separator.
func BuildText(r model.ProductRecord) string {
	fields := [...]string{
		model.Value(r.ProductName),
		model.Value(r.Brand),
		model.Value(r.NutritionalInfo),
		model.Value(r.ExpirationDate),
		model.Value(r.RegulatoryNotes),
	}
	return strings.ToLower(strings.Join(fields[:], " "))
}

// BuildTexts applies BuildText to every record, preserving order.
func BuildTexts(records []model.ProductRecord) []string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = BuildText(r)
	}
	return texts
}

// BuildExamples pairs the feature text of each labeled record with its label.
func BuildExamples(records []model.LabeledRecord) []model.LabeledExample {
	examples := make([]model.LabeledExample, len(records))
	for i, r := range records {
		examples[i] = model.LabeledExample{
			Text:  BuildText(r.ProductRecord),
			Label: r.Label,
		}
	}
	return examples
}
