// Package dataset reads and writes product data files in CSV form.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"food-compliance/internal/model"

	"github.com/gocarina/gocsv"
)

// Column names.
const (
	ColProductName     = "product_name"
	ColBrand           = "brand"
	ColNutritionalInfo = "nutritional_info"
	ColExpirationDate  = "expiration_date"
	ColRegulatoryNotes = "regulatory_notes"
	ColLabel           = "label"
)

// ProductColumns are the columns every product file carries.
var ProductColumns = []string{ColProductName, ColBrand, ColNutritionalInfo, ColExpirationDate, ColRegulatoryNotes}

// PredictionRow is one line of a scored output file.
type PredictionRow struct {
	Text        string `csv:"text"`
	Predictions string `csv:"predictions"`
}

// ScoredRow is a PredictionRow carrying the probability of its label.
type ScoredRow struct {
	Text        string  `csv:"text"`
	Predictions string  `csv:"predictions"`
	Probability float64 `csv:"probability"`
}

// ReadProducts reads product records. Columns other than the product columns
// are ignored; a missing product column is an error.
func ReadProducts(r io.Reader) ([]model.ProductRecord, error) {
	data, err := readWithHeader(r, ProductColumns)
	if err != nil {
		return nil, err
	}
	var rows []model.ProductRecord
	if err := unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return rows, nil
}

// ReadLabeled reads labeled product records. Every label must be 0 or 1.
func ReadLabeled(r io.Reader) ([]model.LabeledRecord, error) {
	data, err := readWithHeader(r, append(slices.Clone(ProductColumns), ColLabel))
	if err != nil {
		return nil, err
	}
	var rows []model.LabeledRecord
	if err := unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode labeled products: %w", err)
	}
	for i, row := range rows {
		if row.Label != model.LabelNotCompliant && row.Label != model.LabelCompliant {
			return nil, fmt.Errorf("row %d: label must be 0 or 1, got %d", i+1, row.Label)
		}
	}
	return rows, nil
}

// WriteLabeled writes labeled records with a header row.
func WriteLabeled(w io.Writer, rows []model.LabeledRecord) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write labeled products: %w", err)
	}
	return nil
}

// WritePredictions writes scored rows with the header text,predictions.
func WritePredictions(w io.Writer, rows []PredictionRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}

// NewPredictionRows pairs feature texts with their predicted labels.
func NewPredictionRows(texts, labels []string) ([]PredictionRow, error) {
	if len(texts) != len(labels) {
		return nil, fmt.Errorf("have %d texts but %d labels", len(texts), len(labels))
	}
	rows := make([]PredictionRow, len(texts))
	for i := range texts {
		rows[i] = PredictionRow{Text: texts[i], Predictions: labels[i]}
	}
	return rows, nil
}

// WriteScored writes scored rows with the header text,predictions,probability.
func WriteScored(w io.Writer, rows []ScoredRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}

// NewScoredRows converts predictions into output rows.
func NewScoredRows(preds []model.Prediction) []ScoredRow {
	rows := make([]ScoredRow, len(preds))
	for i, p := range preds {
		rows[i] = ScoredRow{Text: p.Text, Predictions: p.Label, Probability: p.Probability}
	}
	return rows
}

// Head returns at most the first n rows.
func Head[T any](rows []T, n int) []T {
	if n < 0 {
		n = 0
	}
	return rows[:min(n, len(rows))]
}

// ReadProductsFile opens path and reads product records from it.
func ReadProductsFile(path string) ([]model.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadProducts(f)
}

// ReadLabeledFile opens path and reads labeled records from it.
func ReadLabeledFile(path string) ([]model.LabeledRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadLabeled(f)
}

// WriteFile creates path and writes to it with fn.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readWithHeader buffers the input and checks that its header row carries
// every required column.
func readWithHeader(r io.Reader, required []string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty csv input")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	var missing []string
	for _, col := range required {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header is missing columns: %s", strings.Join(missing, ", "))
	}
	return data, nil
}

func unmarshal[T any](data []byte, out *[]T) error {
	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		return err
	}
	if *out == nil {
		*out = []T{}
	}
	return nil
}
