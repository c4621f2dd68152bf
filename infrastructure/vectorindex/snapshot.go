package vectorindex

import (
	"fmt"
	"sort"
	"time"

	"github.com/helixml/ticketsql/domain/retrieval"
)

// Snapshot is an immutable set of embedded values. A nil *Snapshot is an
// empty index.
type Snapshot struct {
	records []retrieval.ValueRecord
	vectors [][]float64
	builtAt time.Time
}

// NewSnapshot pairs records with their vectors. Both slices are copied.
func NewSnapshot(records []retrieval.ValueRecord, vectors [][]float64, builtAt time.Time) (*Snapshot, error) {
	if len(records) != len(vectors) {
		return nil, fmt.Errorf("snapshot: %d records but %d vectors", len(records), len(vectors))
	}
	recs := make([]retrieval.ValueRecord, len(records))
	copy(recs, records)
	vecs := make([][]float64, len(vectors))
	for i, v := range vectors {
		vecs[i] = make([]float64, len(v))
		copy(vecs[i], v)
	}
	return &Snapshot{records: recs, vectors: vecs, builtAt: builtAt}, nil
}

// Len returns the number of indexed values.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// BuiltAt returns when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// Records returns a copy of the indexed records in insertion order.
func (s *Snapshot) Records() []retrieval.ValueRecord {
	if s == nil {
		return []retrieval.ValueRecord{}
	}
	out := make([]retrieval.ValueRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Dimensions returns the vector width, zero when empty.
func (s *Snapshot) Dimensions() int {
	if s.Len() == 0 {
		return 0
	}
	return len(s.vectors[0])
}

// Columns returns how many distinct columns the snapshot covers.
func (s *Snapshot) Columns() int {
	seen := map[string]struct{}{}
	for _, r := range s.Records() {
		seen[r.Ref().String()] = struct{}{}
	}
	return len(seen)
}

// Nearest returns up to k hits ordered by ascending distance. Equal
// distances keep insertion order.
func (s *Snapshot) Nearest(query []float64, k int) []retrieval.Hit {
	if s.Len() == 0 || k <= 0 {
		return []retrieval.Hit{}
	}

	hits := make([]retrieval.Hit, len(s.records))
	for i, rec := range s.records {
		hits[i] = retrieval.NewHit(rec, Distance(query, s.vectors[i]))
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score < hits[j].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}
