package classifier

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"food-compliance/internal/feature"
	"food-compliance/internal/model"
	"food-compliance/internal/tokenizer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Artifact file names.
const (
	ConfigFile  = "config.json"
	WeightsFile = "model.gob"
)

// FormatVersion identifies the on-disk layout of an artifact.
const FormatVersion = "compliance-classifier/v1"

// RequiredFiles lists every file an artifact directory must contain.
var RequiredFiles = []string{ConfigFile, WeightsFile, tokenizer.VocabFile, tokenizer.ConfigFile}

// Metadata identifies an artifact and the inputs it was trained against.
type Metadata struct {
	ID               uuid.UUID `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	FeatureVersion   string    `json:"feature_version"`
	VocabFingerprint string    `json:"vocab_fingerprint"`
}

// NewMetadata creates metadata for a model trained with tok.
func NewMetadata(tok *tokenizer.Tokenizer) Metadata {
	return Metadata{
		ID:               uuid.New(),
		CreatedAt:        time.Now().UTC(),
		FeatureVersion:   feature.Version,
		VocabFingerprint: tok.Vocab().Fingerprint(),
	}
}

// artifactConfig is the JSON document stored in config.json.
type artifactConfig struct {
	Format   string            `json:"format"`
	Model    Config            `json:"model"`
	ID2Label map[string]string `json:"id2label"`
	Label2ID map[string]int    `json:"label2id"`
	Metadata Metadata          `json:"metadata"`
}

// Artifact is a model paired with the tokenizer it was trained with.
type Artifact struct {
	Model     *Model
	Tokenizer *tokenizer.Tokenizer
	Metadata  Metadata
	Dir       string
}

// Save writes the model, its label mapping and its tokenizer into dir as one
// unit. Files are written to a temporary sibling directory which then replaces
// dir, so a reader never observes a half-written artifact.
func Save(dir string, m *Model, tok *tokenizer.Tokenizer, meta Metadata) (err error) {
	if m == nil || tok == nil {
		return fmt.Errorf("model and tokenizer are required")
	}
	if tok.Vocab().Size() != m.cfg.VocabSize {
		return fmt.Errorf("tokenizer has %d tokens but model expects %d", tok.Vocab().Size(), m.cfg.VocabSize)
	}
	if meta.VocabFingerprint != tok.Vocab().Fingerprint() {
		return fmt.Errorf("metadata vocabulary fingerprint does not match tokenizer")
	}

	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact parent directory: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	cfg := artifactConfig{
		Format:   FormatVersion,
		Model:    m.cfg,
		ID2Label: make(map[string]string, m.cfg.NumLabels),
		Label2ID: make(map[string]int, m.cfg.NumLabels),
		Metadata: meta,
	}
	for i := 0; i < m.cfg.NumLabels; i++ {
		cfg.ID2Label[strconv.Itoa(i)] = model.LabelName(i)
		cfg.Label2ID[model.LabelName(i)] = i
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model config: %w", err)
	}
	if err = os.WriteFile(filepath.Join(tmp, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write model config: %w", err)
	}

	if err = writeWeights(filepath.Join(tmp, WeightsFile), m.params); err != nil {
		return err
	}

	if err = tok.Save(tmp); err != nil {
		return err
	}

	var old string
	if _, statErr := os.Stat(dir); statErr == nil {
		old = dir + ".old-" + uuid.NewString()
		if err = os.Rename(dir, old); err != nil {
			return fmt.Errorf("failed to move previous artifact aside: %w", err)
		}
	}
	if err = os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("failed to install artifact: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}

	return nil
}

func writeWeights(path string, p *Params) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync weights file: %w", err)
	}
	return f.Close()
}

// Load reads an artifact written by Save. It returns a *model.LoadError when
// the directory is missing or incomplete, when the classification head does
// not have NumLabels outputs, or when the stored vocabulary or feature version
// does not match what the model was trained with.
func Load(dir string, logger zerolog.Logger) (*Artifact, error) {
	fail := func(reason string, err error) (*Artifact, error) {
		return nil, &model.LoadError{Path: dir, Reason: reason, Err: err}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fail("artifact directory not found", err)
	}
	if !info.IsDir() {
		return fail("artifact path is not a directory", nil)
	}
	for _, name := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return fail("incomplete artifact: missing "+name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return fail("failed to read model config", err)
	}
	var cfg artifactConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fail("failed to decode model config", err)
	}
	if cfg.Format != FormatVersion {
		return fail(fmt.Sprintf("unsupported artifact format %q", cfg.Format), nil)
	}
	if cfg.Model.NumLabels != NumLabels {
		return fail(fmt.Sprintf("classification head has %d outputs, expected %d", cfg.Model.NumLabels, NumLabels), nil)
	}
	for i := 0; i < NumLabels; i++ {
		if cfg.ID2Label[strconv.Itoa(i)] != model.LabelName(i) {
			return fail(fmt.Sprintf("label %d is %q, expected %q", i, cfg.ID2Label[strconv.Itoa(i)], model.LabelName(i)), nil)
		}
	}
	if cfg.Metadata.FeatureVersion != feature.Version {
		return fail(fmt.Sprintf("feature version %q does not match %q", cfg.Metadata.FeatureVersion, feature.Version), nil)
	}

	params, err := readWeights(filepath.Join(dir, WeightsFile))
	if err != nil {
		return fail("failed to read weights", err)
	}
	m, err := FromParams(cfg.Model, params)
	if err != nil {
		return fail("weights do not match model config", err)
	}

	tok, err := tokenizer.Load(dir, logger)
	if err != nil {
		return fail("failed to load tokenizer", err)
	}
	if tok.Vocab().Size() != cfg.Model.VocabSize {
		return fail(fmt.Sprintf("vocabulary has %d tokens, model expects %d", tok.Vocab().Size(), cfg.Model.VocabSize), nil)
	}
	if tok.Vocab().Fingerprint() != cfg.Metadata.VocabFingerprint {
		return fail("vocabulary does not match the one the model was trained with", nil)
	}

	logger.Info().
		Str("dir", dir).
		Str("model_id", cfg.Metadata.ID.String()).
		Str("feature_version", cfg.Metadata.FeatureVersion).
		Int("vocab_size", cfg.Model.VocabSize).
		Msg("model artifact loaded")

	return &Artifact{
		Model:     m,
		Tokenizer: tok,
		Metadata:  cfg.Metadata,
		Dir:       dir,
	}, nil
}

func readWeights(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Params
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IsLoadError reports whether err is a *model.LoadError.
func IsLoadError(err error) bool {
	var le *model.LoadError
	return errors.As(err, &le)
}
