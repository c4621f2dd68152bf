package vectorindex

import (
	"context"
	"log/slog"
	"strings"

	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
)

// Sampler reads distinct values of a column.
type Sampler interface {
	DistinctValues(ctx context.Context, ref schema.ColumnRef, limit int) ([]string, error)
}

// Corpus is the set of values collected for indexing.
type Corpus struct {
	Records []retrieval.ValueRecord
	Skipped []schema.ColumnRef
}

// Collect samples up to limit distinct values from each column. Blank values
// and repeats within a column are dropped; other values are kept verbatim. A column whose sampling fails is
// logged and recorded in Skipped; only context cancellation aborts.
func Collect(ctx context.Context, sampler Sampler, columns []schema.ColumnRef, limit int, logger *slog.Logger) (Corpus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	corpus := Corpus{Records: []retrieval.ValueRecord{}}
	for _, ref := range columns {
		if err := ctx.Err(); err != nil {
			return Corpus{}, err
		}

		values, err := sampler.DistinctValues(ctx, ref, limit)
		if err != nil {
			logger.WarnContext(ctx, "value sampling failed, skipping column",
				slog.String("table", ref.Table),
				slog.String("column", ref.Column),
				slog.Any("error", err),
			)
			corpus.Skipped = append(corpus.Skipped, ref)
			continue
		}

		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			corpus.Records = append(corpus.Records, retrieval.NewValueRecord(ref.Table, ref.Column, v))
		}
	}
	return corpus, nil
}
