package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/helixml/ticketsql/domain/schema"
)

// ErrNoSnapshot indicates the snapshot file does not exist.
var ErrNoSnapshot = errors.New("schema snapshot not found")

// SnapshotDocument is the on-disk form of a captured catalog.
type SnapshotDocument struct {
	Namespace  string          `json:"namespace"`
	CapturedAt time.Time       `json:"captured_at"`
	Columns    []schema.Column `json:"columns"`
}

// Snapshot serves columns from a JSON file, for running without access to
// the live database.
type Snapshot struct {
	path string
}

// NewSnapshot creates a Snapshot source reading path.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string { return s.path }

// Columns reads the snapshot on every call so edits are picked up.
func (s *Snapshot) Columns(_ context.Context) ([]schema.Column, error) {
	doc, err := LoadSnapshot(s.path)
	if err != nil {
		return nil, err
	}
	return doc.Columns, nil
}

// LoadSnapshot reads a snapshot document.
func LoadSnapshot(path string) (SnapshotDocument, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return SnapshotDocument{}, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
	}
	if err != nil {
		return SnapshotDocument{}, fmt.Errorf("read snapshot: %w", err)
	}

	var doc SnapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return SnapshotDocument{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return doc, nil
}

// Capture reads the current columns from source and writes them to path.
func Capture(ctx context.Context, source schema.Source, namespace, path string) (SnapshotDocument, error) {
	columns, err := source.Columns(ctx)
	if err != nil {
		return SnapshotDocument{}, fmt.Errorf("capture columns: %w", err)
	}

	doc := SnapshotDocument{
		Namespace:  namespace,
		CapturedAt: time.Now().UTC(),
		Columns:    columns,
	}
	if err := SaveSnapshot(path, doc); err != nil {
		return SnapshotDocument{}, err
	}
	return doc, nil
}

// SaveSnapshot writes doc to path, creating parent directories.
func SaveSnapshot(path string, doc SnapshotDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

var _ schema.Source = (*Snapshot)(nil)
