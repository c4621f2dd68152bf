package schema

import (
	"context"
	"log/slog"
)

// Source supplies the catalog columns. Implementations either introspect a
// live database or read a persisted snapshot.
type Source interface {
	Columns(ctx context.Context) ([]Column, error)
}

// Store answers schema questions from a Source chosen at construction.
type Store struct {
	source Source
	logger *slog.Logger
}

// NewStore creates a Store over source.
func NewStore(source Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{source: source, logger: logger}
}

// Source returns the underlying Source.
func (s *Store) Source() Source { return s.source }

// FetchSchema returns the catalog columns. A failing source yields an empty
// schema; the failure is logged and callers carry on without schema context.
func (s *Store) FetchSchema(ctx context.Context) []Column {
	if s.source == nil {
		return []Column{}
	}
	columns, err := s.source.Columns(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "schema introspection failed, continuing without schema", slog.Any("error", err))
		return []Column{}
	}
	return columns
}

// TextLikeColumns returns the text-like columns of the current schema.
func (s *Store) TextLikeColumns(ctx context.Context) []ColumnRef {
	return TextLikeColumns(s.FetchSchema(ctx))
}

// CompactSchemaForTables re-fetches the schema and renders the given tables.
func (s *Store) CompactSchemaForTables(ctx context.Context, tables []string) string {
	return CompactSummary(s.FetchSchema(ctx), tables)
}

// FullSchema re-fetches the schema and renders every table.
func (s *Store) FullSchema(ctx context.Context) string {
	return FullSummary(s.FetchSchema(ctx))
}
