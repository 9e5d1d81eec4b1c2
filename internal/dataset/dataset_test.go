package dataset

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"food-compliance/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labeledCSV = `product_name,brand,nutritional_info,expiration_date,regulatory_notes,label
Apple,Brand_3,"Fat: 2g, Sugar: 4g",2099-01-01,"FDA, WHO",1
Okra,Brand_9,"Fat: 15g, Sugar: 12g",2000-01-01,None,0
,,,,,0
`

func TestReadProducts(t *testing.T) {
	rows, err := ReadProducts(strings.NewReader(labeledCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Apple", model.Value(rows[0].ProductName))
	assert.Equal(t, "Fat: 2g, Sugar: 4g", model.Value(rows[0].NutritionalInfo))
	assert.Equal(t, "FDA, WHO", model.Value(rows[0].RegulatoryNotes))
	assert.Equal(t, "", model.Value(rows[2].Brand))
}

func TestReadProducts_ColumnOrderIgnored(t *testing.T) {
	in := "regulatory_notes,expiration_date,nutritional_info,brand,product_name\nEU,2030-01-01,Fat: 1g,Brand_1,Okra\n"
	rows, err := ReadProducts(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Okra", model.Value(rows[0].ProductName))
	assert.Equal(t, "EU", model.Value(rows[0].RegulatoryNotes))
}

func TestReadProducts_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "Empty", input: "", errorMsg: "empty csv input"},
		{name: "Missing column", input: "product_name,brand\nApple,Brand_1\n", errorMsg: "nutritional_info"},
		{name: "Ragged row", input: "product_name,brand,nutritional_info,expiration_date,regulatory_notes\nApple\n", errorMsg: "failed to decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadProducts(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestReadProducts_HeaderOnly(t *testing.T) {
	rows, err := ReadProducts(strings.NewReader("\ufeffproduct_name,brand,nutritional_info,expiration_date,regulatory_notes\n"))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReadLabeled(t *testing.T) {
	rows, err := ReadLabeled(strings.NewReader(labeledCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{1, 0, 0}, []int{rows[0].Label, rows[1].Label, rows[2].Label})
	assert.Equal(t, "Okra", model.Value(rows[1].ProductName))
}

func TestReadLabeled_Errors(t *testing.T) {
	_, err := ReadLabeled(strings.NewReader("product_name,brand,nutritional_info,expiration_date,regulatory_notes\nA,B,C,D,E\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label")

	_, err = ReadLabeled(strings.NewReader(strings.Replace(labeledCSV, "None,0", "None,2", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2: label must be 0 or 1")

	_, err = ReadLabeled(strings.NewReader(strings.Replace(labeledCSV, "None,0", "None,yes", 1)))
	assert.Error(t, err)
}

func TestWriteLabeled_RoundTrip(t *testing.T) {
	rows, err := ReadLabeled(strings.NewReader(labeledCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLabeled(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), "product_name,brand,nutritional_info,expiration_date,regulatory_notes,label\n"))

	again, err := ReadLabeled(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

func TestWritePredictions(t *testing.T) {
	rows, err := NewPredictionRows(
		[]string{"apple brand_3 fat: 2g, sugar: 4g 2099-01-01 fda, who", "    "},
		[]string{model.Compliant, model.NotCompliant},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, rows))

	want := "text,predictions\n" +
		"\"apple brand_3 fat: 2g, sugar: 4g 2099-01-01 fda, who\",compliant\n" +
		"\"    \",not compliant\n"
	assert.Equal(t, want, buf.String())

	_, err = NewPredictionRows([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestWriteScored(t *testing.T) {
	rows := NewScoredRows([]model.Prediction{
		{Text: "apple brand_3", Label: model.Compliant, Index: model.LabelCompliant, Probability: 0.875},
		{Text: "okra", Label: model.NotCompliant, Index: model.LabelNotCompliant, Probability: 0.5},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteScored(&buf, rows))

	want := "text,predictions,probability\n" +
		"apple brand_3,compliant,0.875\n" +
		"okra,not compliant,0.5\n"
	assert.Equal(t, want, buf.String())
}

func TestHead(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5, 6}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Head(rows, 5))
	assert.Equal(t, rows, Head(rows, 10))
	assert.Empty(t, Head(rows, -1))
	assert.Empty(t, Head([]int(nil), 3))
}

func TestFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "food_compliance_data.csv")
	rows, err := ReadLabeled(strings.NewReader(labeledCSV))
	require.NoError(t, err)

	require.NoError(t, WriteFile(path, func(w io.Writer) error { return WriteLabeled(w, rows) }))

	labeled, err := ReadLabeledFile(path)
	require.NoError(t, err)
	assert.Len(t, labeled, 3)

	products, err := ReadProductsFile(path)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	_, err = ReadProductsFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
