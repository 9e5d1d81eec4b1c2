package feature

import (
	"testing"

	"food-compliance/internal/model"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestBuildText(t *testing.T) {
	tests := []struct {
		name     string
		record   model.ProductRecord
		expected string
	}{
		{
			name:     "Compliant example",
			record:   model.NewProductRecord("Apple", "Brand_3", "Fat: 2g, Sugar: 4g", "2099-01-01", "FDA, WHO"),
			expected: "apple brand_3 fat: 2g, sugar: 4g 2099-01-01 fda, who",
		},
		{
			name:     "All fields missing",
			record:   model.ProductRecord{},
			expected: "    ",
		},
		{
			name: "Missing middle fields keep separators",
			record: model.ProductRecord{
				ProductName:     strPtr("Okra"),
				RegulatoryNotes: strPtr("None"),
			},
			expected: "okra    none",
		},
		{
			name: "Empty strings behave like missing",
			record: model.ProductRecord{
				ProductName: strPtr(""),
				Brand:       strPtr("BRAND_1"),
			},
			expected: " brand_1   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildText(tt.record))
		})
	}
}

func TestBuildText_Deterministic(t *testing.T) {
	r := model.NewProductRecord("Tomato", "Brand_7", "Fat: 12g, Sugar: 9g", "2000-01-01", "None")
	assert.Equal(t, BuildText(r), BuildText(r))
}

func TestBuildTexts_PreservesOrder(t *testing.T) {
	records := []model.ProductRecord{
		model.NewProductRecord("A", "", "", "", ""),
		model.NewProductRecord("B", "", "", "", ""),
		model.NewProductRecord("C", "", "", "", ""),
	}

	texts := BuildTexts(records)

	assert.Equal(t, []string{"a    ", "b    ", "c    "}, texts)
	assert.Empty(t, BuildTexts(nil))
}

func TestBuildExamples(t *testing.T) {
	records := []model.LabeledRecord{
		{ProductRecord: model.NewProductRecord("Apple", "Brand_1", "Fat: 1g, Sugar: 1g", "2099-01-01", "FDA"), Label: 1},
		{ProductRecord: model.NewProductRecord("Potato", "Brand_2", "Fat: 9g, Sugar: 9g", "2000-01-01", "None"), Label: 0},
	}

	examples := BuildExamples(records)

	assert.Len(t, examples, 2)
	assert.Equal(t, "apple brand_1 fat: 1g, sugar: 1g 2099-01-01 fda", examples[0].Text)
	assert.Equal(t, 1, examples[0].Label)
	assert.Equal(t, 0, examples[1].Label)
}
