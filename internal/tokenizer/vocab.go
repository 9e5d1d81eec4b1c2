package tokenizer

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Special tokens. Every vocabulary must contain them.
const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// VocabFile is the file name of a vocabulary inside an artifact directory.
const VocabFile = "vocab.txt"

//go:embed vocab.txt
var defaultVocab []byte

// Vocab is an ordered, immutable subword vocabulary. A token's id is its line
// number in vocab.txt.
type Vocab struct {
	tokens      []string
	ids         map[string]int
	fingerprint string

	padID int
	unkID int
	clsID int
	sepID int
}

// NewVocab builds a vocabulary from an ordered token list.
func NewVocab(tokens []string) (*Vocab, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}

	ids := make(map[string]int, len(tokens))
	h := sha256.New()
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("vocabulary line %d is empty", i+1)
		}
		if _, dup := ids[tok]; dup {
			return nil, fmt.Errorf("duplicate vocabulary token %q at line %d", tok, i+1)
		}
		ids[tok] = i
		h.Write([]byte(tok))
		h.Write([]byte{'\n'})
	}

	v := &Vocab{
		tokens:      tokens,
		ids:         ids,
		fingerprint: hex.EncodeToString(h.Sum(nil)),
	}

	for _, sp := range []struct {
		tok string
		dst *int
	}{
		{PadToken, &v.padID},
		{UnkToken, &v.unkID},
		{ClsToken, &v.clsID},
		{SepToken, &v.sepID},
	} {
		id, ok := ids[sp.tok]
		if !ok {
			return nil, fmt.Errorf("vocabulary is missing special token %s", sp.tok)
		}
		*sp.dst = id
	}

	return v, nil
}

// ReadVocab reads a vocabulary with one token per line.
func ReadVocab(r io.Reader) (*Vocab, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return NewVocab(tokens)
}

// LoadVocab reads a vocabulary file from disk.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary %s: %w", path, err)
	}
	defer f.Close()

	return ReadVocab(f)
}

// DefaultVocab returns the bundled pretrained vocabulary.
func DefaultVocab() *Vocab {
	v, err := ReadVocab(bytes.NewReader(defaultVocab))
	if err != nil {
		panic(fmt.Sprintf("bundled vocabulary is invalid: %v", err))
	}
	return v
}

// Size returns the number of tokens.
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// ID returns the id of tok.
func (v *Vocab) ID(tok string) (int, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Token returns the token with the given id, or [UNK] when out of range.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnkToken
	}
	return v.tokens[id]
}

// PadID returns the id of [PAD].
func (v *Vocab) PadID() int { return v.padID }

// UnkID returns the id of [UNK].
func (v *Vocab) UnkID() int { return v.unkID }

// ClsID returns the id of [CLS].
func (v *Vocab) ClsID() int { return v.clsID }

// SepID returns the id of [SEP].
func (v *Vocab) SepID() int { return v.sepID }

// Fingerprint identifies the exact vocabulary contents. Artifacts store it so
// that a model is never paired with a different vocabulary.
func (v *Vocab) Fingerprint() string {
	return v.fingerprint
}

// WriteTo writes the vocabulary in vocab.txt format.
func (v *Vocab) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, tok := range v.tokens {
		written, err := bw.WriteString(tok + "\n")
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
