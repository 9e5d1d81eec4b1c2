package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"food-compliance/internal/model"
	"food-compliance/internal/tokenizer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveTestArtifact(t *testing.T) (string, *Model, *tokenizer.Tokenizer, Metadata) {
	t.Helper()
	tok := newTestTokenizer(t)
	m := newTestModel(t, tok, 0.1)
	meta := NewMetadata(tok)
	dir := filepath.Join(t.TempDir(), "compliance_doc_model")

	require.NoError(t, Save(dir, m, tok, meta))
	return dir, m, tok, meta
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir, m, tok, meta := saveTestArtifact(t)
	ctx := context.Background()

	for _, name := range RequiredFiles {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	art, err := Load(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, meta.ID, art.Metadata.ID)
	assert.Equal(t, m.Config(), art.Model.Config())
	assert.Equal(t, EvalMode, art.Model.Mode())

	batch := tok.Encode(sampleTexts)
	want, err := m.Forward(ctx, batch)
	require.NoError(t, err)
	got, err := art.Model.Forward(ctx, art.Tokenizer.Encode(sampleTexts))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wantIdx, err := m.Predict(ctx, batch)
	require.NoError(t, err)
	gotIdx, err := art.Model.Predict(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, wantIdx, gotIdx)
}

func TestSave_ReplacesExistingArtifact(t *testing.T) {
	dir, m, tok, _ := saveTestArtifact(t)

	meta := NewMetadata(tok)
	require.NoError(t, Save(dir, m, tok, meta))

	art, err := Load(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, meta.ID, art.Metadata.ID)

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging and backup directories must be cleaned up")
}

func TestSave_RejectsMismatchedTokenizer(t *testing.T) {
	tok := newTestTokenizer(t)
	m := newTestModel(t, tok, 0)

	small, err := tokenizer.NewVocab([]string{tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken})
	require.NoError(t, err)
	other, err := tokenizer.New(small, tokenizer.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	err = Save(filepath.Join(t.TempDir(), "m"), m, other, NewMetadata(other))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model expects")
}

func rewriteConfig(t *testing.T, dir string, modify func(cfg *artifactConfig)) {
	t.Helper()
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg artifactConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	modify(&cfg)
	data, err = json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string) string
		reason string
	}{
		{
			name: "Missing directory",
			mutate: func(t *testing.T, dir string) string {
				return filepath.Join(dir, "does-not-exist")
			},
			reason: "artifact directory not found",
		},
		{
			name: "Missing weights",
			mutate: func(t *testing.T, dir string) string {
				require.NoError(t, os.Remove(filepath.Join(dir, WeightsFile)))
				return dir
			},
			reason: "incomplete artifact: missing model.gob",
		},
		{
			name: "Missing vocabulary",
			mutate: func(t *testing.T, dir string) string {
				require.NoError(t, os.Remove(filepath.Join(dir, tokenizer.VocabFile)))
				return dir
			},
			reason: "incomplete artifact: missing vocab.txt",
		},
		{
			name: "Wrong head size",
			mutate: func(t *testing.T, dir string) string {
				rewriteConfig(t, dir, func(cfg *artifactConfig) { cfg.Model.NumLabels = 3 })
				return dir
			},
			reason: "classification head has 3 outputs",
		},
		{
			name: "Swapped label map",
			mutate: func(t *testing.T, dir string) string {
				rewriteConfig(t, dir, func(cfg *artifactConfig) {
					cfg.ID2Label["0"], cfg.ID2Label["1"] = cfg.ID2Label["1"], cfg.ID2Label["0"]
				})
				return dir
			},
			reason: `label 0 is "compliant"`,
		},
		{
			name: "Feature version mismatch",
			mutate: func(t *testing.T, dir string) string {
				rewriteConfig(t, dir, func(cfg *artifactConfig) { cfg.Metadata.FeatureVersion = "v0" })
				return dir
			},
			reason: "feature version",
		},
		{
			name: "Vocabulary from another version",
			mutate: func(t *testing.T, dir string) string {
				rewriteConfig(t, dir, func(cfg *artifactConfig) { cfg.Metadata.VocabFingerprint = "deadbeef" })
				return dir
			},
			reason: "vocabulary does not match",
		},
		{
			name: "Weights shaped for another model",
			mutate: func(t *testing.T, dir string) string {
				rewriteConfig(t, dir, func(cfg *artifactConfig) { cfg.Model.HiddenDim = 4 })
				return dir
			},
			reason: "weights do not match model config",
		},
		{
			name: "Unknown format",
			mutate: func(t *testing.T, dir string) string {
				rewriteConfig(t, dir, func(cfg *artifactConfig) { cfg.Format = "something-else" })
				return dir
			},
			reason: "unsupported artifact format",
		},
		{
			name: "Corrupt config",
			mutate: func(t *testing.T, dir string) string {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("{"), 0o644))
				return dir
			},
			reason: "failed to decode model config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _, _, _ := saveTestArtifact(t)
			path := tt.mutate(t, dir)

			art, err := Load(path, zerolog.Nop())

			require.Error(t, err)
			assert.Nil(t, art)
			assert.True(t, IsLoadError(err))
			var le *model.LoadError
			require.True(t, errors.As(err, &le))
			assert.Contains(t, le.Reason, tt.reason)
		})
	}
}
