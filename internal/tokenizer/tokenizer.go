// Package tokenizer encodes feature texts into padded token id batches using a
// fixed WordPiece vocabulary.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"food-compliance/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ConfigFile is the file name of the tokenizer settings inside an artifact directory.
const ConfigFile = "tokenizer_config.json"

// DefaultMaxLength is the longest sequence, special tokens included, the
// classifier accepts.
const DefaultMaxLength = 512

const maxWordRunes = 100

// Padding selects how rows of a batch are padded.
type Padding string

const (
	// PadLongest pads every row to the longest row of the batch.
	PadLongest Padding = "longest"
	// PadMaxLength pads every row to MaxLength regardless of content.
	PadMaxLength Padding = "max_length"
)

// Config holds tokenizer settings persisted next to the vocabulary.
type Config struct {
	MaxLength   int     `json:"max_length"`
	Padding     Padding `json:"padding"`
	DoLowerCase bool    `json:"do_lower_case"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		MaxLength:   DefaultMaxLength,
		Padding:     PadLongest,
		DoLowerCase: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxLength < 2 {
		return fmt.Errorf("max length must be at least 2, got %d", c.MaxLength)
	}
	if c.Padding != PadLongest && c.Padding != PadMaxLength {
		return fmt.Errorf("invalid padding %q (must be %s or %s)", c.Padding, PadLongest, PadMaxLength)
	}
	return nil
}

// Tokenizer is safe for concurrent use; it holds no mutable state.
type Tokenizer struct {
	vocab  *Vocab
	cfg    Config
	logger zerolog.Logger
}

// New creates a tokenizer over vocab.
func New(vocab *Vocab, cfg Config, logger zerolog.Logger) (*Tokenizer, error) {
	if vocab == nil {
		return nil, fmt.Errorf("vocabulary is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tokenizer config: %w", err)
	}
	return &Tokenizer{
		vocab:  vocab,
		cfg:    cfg,
		logger: logger.With().Str("component", "tokenizer").Logger(),
	}, nil
}

// Vocab returns the underlying vocabulary.
func (t *Tokenizer) Vocab() *Vocab {
	return t.vocab
}

// Config returns the tokenizer settings.
func (t *Tokenizer) Config() Config {
	return t.cfg
}

// Tokenize splits text into WordPiece tokens without special tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	var out []string
	for _, word := range t.basicTokenize(text) {
		out = append(out, t.wordPiece(word)...)
	}
	return out
}

// Encode converts texts into a rectangular batch. An empty input yields an
// empty batch. Rows longer than MaxLength are truncated and reported in
// EncodedBatch.Truncated.
func (t *Tokenizer) Encode(texts []string) EncodedBatch {
	batch := EncodedBatch{
		InputIDs:      make([][]int, len(texts)),
		AttentionMask: make([][]int, len(texts)),
	}
	if len(texts) == 0 {
		return batch
	}

	limit := t.cfg.MaxLength
	longest := 0
	for i, text := range texts {
		pieces := t.Tokenize(text)

		ids := make([]int, 0, min(len(pieces)+2, limit))
		ids = append(ids, t.vocab.ClsID())
		for _, p := range pieces {
			id, ok := t.vocab.ID(p)
			if !ok {
				id = t.vocab.UnkID()
			}
			ids = append(ids, id)
		}
		ids = append(ids, t.vocab.SepID())

		if len(ids) > limit {
			encErr := model.EncodingError{Row: i, Length: len(ids), Limit: limit}
			t.logger.Warn().
				Int("row", i).
				Int("length", len(ids)).
				Int("limit", limit).
				Msg("text exceeds maximum length, truncating")
			batch.Truncated = append(batch.Truncated, encErr)
			ids = append(ids[:limit-1], t.vocab.SepID())
		}

		batch.InputIDs[i] = ids
		longest = max(longest, len(ids))
	}

	width := longest
	if t.cfg.Padding == PadMaxLength {
		width = limit
	}

	for i, ids := range batch.InputIDs {
		mask := make([]int, width)
		for j := range ids {
			mask[j] = 1
		}
		for len(ids) < width {
			ids = append(ids, t.vocab.PadID())
		}
		batch.InputIDs[i] = ids
		batch.AttentionMask[i] = mask
	}

	return batch
}

// basicTokenize lowercases, strips accents and splits on whitespace and punctuation.
func (t *Tokenizer) basicTokenize(text string) []string {
	if t.cfg.DoLowerCase {
		text = strings.ToLower(text)
		if stripped, _, err := transform.String(stripAccents(), text); err == nil {
			text = stripped
		}
	}

	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			cur = append(cur, r)
		}
	}
	flush()

	return words
}

// wordPiece splits a single word using greedy longest-match-first.
func (t *Tokenizer) wordPiece(word string) []string {
	chars := []rune(word)
	if len(chars) > maxWordRunes {
		return []string{UnkToken}
	}

	var pieces []string
	start := 0
	for start < len(chars) {
		end := len(chars)
		match := ""
		for start < end {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab.ID(sub); ok {
				match = sub
				break
			}
			end--
		}
		if match == "" {
			return []string{UnkToken}
		}
		pieces = append(pieces, match)
		start = end
	}

	return pieces
}

func stripAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// Save writes vocab.txt and tokenizer_config.json into dir.
func (t *Tokenizer) Save(dir string) error {
	vf, err := os.Create(filepath.Join(dir, VocabFile))
	if err != nil {
		return fmt.Errorf("failed to create vocabulary file: %w", err)
	}
	if _, err := t.vocab.WriteTo(vf); err != nil {
		vf.Close()
		return fmt.Errorf("failed to write vocabulary: %w", err)
	}
	if err := vf.Close(); err != nil {
		return fmt.Errorf("failed to close vocabulary file: %w", err)
	}

	data, err := json.MarshalIndent(t.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokenizer config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write tokenizer config: %w", err)
	}

	return nil
}

// Load reads a tokenizer saved by Save.
func Load(dir string, logger zerolog.Logger) (*Tokenizer, error) {
	vocab, err := LoadVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode tokenizer config: %w", err)
	}

	return New(vocab, cfg, logger)
}

// WithMaxLength returns a copy of t using a different truncation ceiling.
func (t *Tokenizer) WithMaxLength(n int) (*Tokenizer, error) {
	cfg := t.cfg
	cfg.MaxLength = n
	return t.withConfig(cfg)
}

// WithPadding returns a copy of t using a different padding strategy.
func (t *Tokenizer) WithPadding(p Padding) (*Tokenizer, error) {
	cfg := t.cfg
	cfg.Padding = p
	return t.withConfig(cfg)
}

func (t *Tokenizer) withConfig(cfg Config) (*Tokenizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tokenizer config: %w", err)
	}
	return &Tokenizer{vocab: t.vocab, cfg: cfg, logger: t.logger}, nil
}
