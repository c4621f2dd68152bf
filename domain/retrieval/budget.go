package retrieval

import (
	"fmt"
	"unicode/utf8"
)

// DefaultBatchSize is the default number of values per embedding call.
const DefaultBatchSize = 100

// Budget constrains embedding batches to stay within model limits: each batch's
// total (truncated) text must not exceed maxChars and each batch holds at most
// maxBatchSize records.
type Budget struct {
	maxChars     int
	maxBatchSize int
}

// NewBudget creates a Budget with the given character limit. maxChars must be
// positive.
func NewBudget(maxChars int) (Budget, error) {
	if maxChars <= 0 {
		return Budget{}, fmt.Errorf("NewBudget: maxChars must be positive, got %d", maxChars)
	}
	return Budget{maxChars: maxChars, maxBatchSize: DefaultBatchSize}, nil
}

// DefaultBudget returns a 16 000 character budget, safe for 8 192-token
// embedding models.
func DefaultBudget() Budget {
	b, _ := NewBudget(16000)
	return b
}

// WithMaxBatchSize returns a copy with the given maximum records per batch.
// Values <= 0 are clamped to 1.
func (b Budget) WithMaxBatchSize(n int) Budget {
	if n <= 0 {
		n = 1
	}
	b.maxBatchSize = n
	return b
}

// MaxBatchSize returns the maximum records per batch.
func (b Budget) MaxBatchSize() int { return b.maxBatchSize }

// Truncate caps text to the character (rune) limit.
func (b Budget) Truncate(text string) string {
	if utf8.RuneCountInString(text) <= b.maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:b.maxChars])
}

// Batches partitions records into groups whose total truncated character
// count stays within the budget. A record that alone exceeds the budget is
// placed in its own batch.
func (b Budget) Batches(records []ValueRecord) [][]ValueRecord {
	if len(records) == 0 {
		return nil
	}

	var batches [][]ValueRecord
	i := 0
	for i < len(records) {
		start := i
		chars := 0
		for i < len(records) {
			if i-start >= b.maxBatchSize {
				break
			}
			n := min(utf8.RuneCountInString(records[i].Text()), b.maxChars)
			if chars+n > b.maxChars && i > start {
				break
			}
			chars += n
			i++
		}
		batch := make([]ValueRecord, i-start)
		copy(batch, records[start:i])
		batches = append(batches, batch)
	}
	return batches
}
