package main

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"food-compliance/internal/classifier"
	"food-compliance/internal/dataset"
	"food-compliance/internal/training"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateTrainScore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end training in short mode")
	}

	dir := t.TempDir()
	data := filepath.Join(dir, "products.csv")
	modelDir := filepath.Join(dir, "compliance_doc_model")
	predictions := filepath.Join(dir, "compliance_predictions.csv")
	trainConfig := filepath.Join(dir, "train.yaml")

	out, err := execute(t, "generate", "--out", data, "--compliant", "40", "--non-compliant", "40", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "with 80 records generated successfully")

	require.NoError(t, os.WriteFile(trainConfig, []byte("epochs: 2\nembed_dim: 16\nhidden_dim: 16\n"), 0o644))

	out, err = execute(t, "train", "--data", data, "--model-dir", modelDir, "--config", trainConfig, "--batch-size", "16", "--max-length", "64")
	require.NoError(t, err)
	assert.Contains(t, out, "Epoch 2 completed. Average Loss:")
	assert.NotContains(t, out, "Epoch 3 completed")
	assert.Contains(t, out, "Training set class distribution:")
	assert.Contains(t, out, "Test set class distribution:")
	assert.Contains(t, out, "weighted avg")

	art, err := classifier.Load(modelDir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 16, art.Model.Config().EmbedDim)
	assert.Equal(t, 64, art.Tokenizer.Config().MaxLength)

	out, err = execute(t, "score", "--data", data, "--model-dir", modelDir, "--out", predictions, "--head", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "text,predictions", lines[0])
	assert.Contains(t, lines[4], "Predictions saved to")

	f, err := os.Open(predictions)
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "text,predictions\n"))
	records, err := dataset.ReadLabeledFile(data)
	require.NoError(t, err)
	assert.Equal(t, len(records)+1, strings.Count(string(content), "\n"))

	scored := filepath.Join(dir, "scored.csv")
	out, err = execute(t, "score", "--data", data, "--model-dir", modelDir, "--out", scored, "--head", "1", "--with-probability")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "text,predictions,probability\n"))

	sf, err := os.Open(scored)
	require.NoError(t, err)
	defer sf.Close()
	table, err := csv.NewReader(sf).ReadAll()
	require.NoError(t, err)
	require.Len(t, table, len(records)+1)
	assert.Equal(t, []string{"text", "predictions", "probability"}, table[0])
	plain, err := os.ReadFile(predictions)
	require.NoError(t, err)
	plainTable, err := csv.NewReader(bytes.NewReader(plain)).ReadAll()
	require.NoError(t, err)
	for i, row := range table[1:] {
		assert.Equal(t, plainTable[i+1][:2], row[:2], "row %d", i)
		p, err := strconv.ParseFloat(row[2], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 0.5)
		assert.LessOrEqual(t, p, 1.0)
	}

	// Serving above the trained ceiling would tokenize differently than training.
	t.Setenv("MODEL_MAX_LENGTH", "128")
	_, err = execute(t, "score", "--data", data, "--model-dir", modelDir+string(filepath.Separator), "--out", predictions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the trained ceiling of 64")

	t.Setenv("MODEL_MAX_LENGTH", "32")
	_, err = execute(t, "score", "--data", data, "--model-dir", modelDir+string(filepath.Separator), "--out", predictions)
	require.NoError(t, err)
}

func TestTrain_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		setup    func(t *testing.T) []string
		errMatch string
	}{
		{
			name: "Missing data file",
			setup: func(t *testing.T) []string {
				return []string{"train", "--data", filepath.Join(dir, "missing.csv"), "--model-dir", filepath.Join(dir, "m")}
			},
			errMatch: "failed to open",
		},
		{
			name: "Unknown config key",
			setup: func(t *testing.T) []string {
				path := filepath.Join(dir, "bad.yaml")
				require.NoError(t, os.WriteFile(path, []byte("epochz: 3\n"), 0o644))
				return []string{"train", "--config", path}
			},
			errMatch: "failed to parse training config",
		},
		{
			name: "Publish without S3",
			setup: func(t *testing.T) []string {
				return []string{"train", "--publish"}
			},
			errMatch: "--publish requires S3_ENABLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.setup(t)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMatch)
		})
	}
}

func TestScore_MissingModel(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "products.csv")

	_, err := execute(t, "generate", "--out", data, "--compliant", "2", "--non-compliant", "2")
	require.NoError(t, err)

	_, err = execute(t, "score", "--data", data, "--model-dir", filepath.Join(dir, "missing_model"), "--out", filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("learning_rate: 0.01\ndropout: 0.2\ntoken_dropout: 0\nbalance_classes: false\n"), 0o644))

	opts := training.DefaultOptions()
	require.NoError(t, loadOptions(path, &opts))

	assert.Equal(t, 0.01, opts.LearningRate)
	assert.Equal(t, 0.2, opts.Dropout)
	assert.Zero(t, opts.TokenDropout)
	assert.False(t, opts.BalanceClasses)
	assert.Equal(t, training.DefaultOptions().Epochs, opts.Epochs, "absent keys keep their value")
}
