package tokenizer

import (
	"fmt"

	"food-compliance/internal/model"
)

// EncodedBatch is a rectangular batch of token ids with a parallel attention
// mask. Every row has the same length; mask entries are 1 for real tokens and
// 0 for padding.
type EncodedBatch struct {
	InputIDs      [][]int
	AttentionMask [][]int

	// Truncated lists rows that were cut to the maximum length.
	Truncated []model.EncodingError
}

// Len returns the number of rows.
func (b EncodedBatch) Len() int {
	return len(b.InputIDs)
}

// SeqLen returns the shared row length, or 0 for an empty batch.
func (b EncodedBatch) SeqLen() int {
	if len(b.InputIDs) == 0 {
		return 0
	}
	return len(b.InputIDs[0])
}

// Validate checks that the batch is rectangular and that ids and masks agree.
func (b EncodedBatch) Validate() error {
	if len(b.InputIDs) != len(b.AttentionMask) {
		return fmt.Errorf("batch has %d id rows but %d mask rows", len(b.InputIDs), len(b.AttentionMask))
	}
	width := b.SeqLen()
	for i := range b.InputIDs {
		if len(b.InputIDs[i]) != width {
			return fmt.Errorf("row %d has length %d, expected %d", i, len(b.InputIDs[i]), width)
		}
		if len(b.AttentionMask[i]) != width {
			return fmt.Errorf("row %d mask has length %d, expected %d", i, len(b.AttentionMask[i]), width)
		}
	}
	return nil
}

// Select returns a batch made of the given rows, in the given order. Rows are
// shared with b, not copied.
func (b EncodedBatch) Select(rows []int) EncodedBatch {
	out := EncodedBatch{
		InputIDs:      make([][]int, len(rows)),
		AttentionMask: make([][]int, len(rows)),
	}
	for i, r := range rows {
		out.InputIDs[i] = b.InputIDs[r]
		out.AttentionMask[i] = b.AttentionMask[r]
	}
	return out
}

// RealLength returns the number of unmasked tokens in row i.
func (b EncodedBatch) RealLength(i int) int {
	n := 0
	for _, m := range b.AttentionMask[i] {
		n += m
	}
	return n
}
