package vectorindex

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/internal/database"
)

// Float64Slice stores a vector as a JSON array column.
type Float64Slice []float64

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	b, err := json.Marshal([]float64(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ValueRecordEntity is one embedded value in the artifact.
type ValueRecordEntity struct {
	ID           int64        `gorm:"column:id;primaryKey;autoIncrement"`
	Position     int          `gorm:"column:position;not null;index"`
	SourceTable  string       `gorm:"column:table_name;not null"`
	SourceColumn string       `gorm:"column:column_name;not null"`
	Value        string       `gorm:"column:value;not null"`
	Embedding    Float64Slice `gorm:"column:embedding;type:json;not null"`
}

// TableName returns the artifact table name.
func (ValueRecordEntity) TableName() string { return "value_records" }

// ArtifactMetaEntity records when the artifact was built.
type ArtifactMetaEntity struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	BuiltAt    time.Time `gorm:"column:built_at"`
	Records    int       `gorm:"column:records"`
	Dimensions int       `gorm:"column:dimensions"`
}

// TableName returns the metadata table name.
func (ArtifactMetaEntity) TableName() string { return "value_index_meta" }

// Store persists snapshots as a SQLite file.
type Store struct {
	path string
}

// NewStore creates a Store for the artifact at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the artifact path.
func (s *Store) Path() string { return s.path }

// Exists reports whether an artifact has been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save writes snap to a temporary file and renames it over the artifact.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp := s.path + ".tmp"
	_ = os.Remove(tmp)

	if err := write(ctx, tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

func write(ctx context.Context, path string, snap *Snapshot) (err error) {
	db, err := database.NewDatabase(ctx, database.SQLiteURL(path))
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close artifact: %w", cerr)
		}
	}()

	if err := db.Session(ctx).AutoMigrate(&ValueRecordEntity{}, &ArtifactMetaEntity{}); err != nil {
		return fmt.Errorf("migrate artifact: %w", err)
	}

	records := snap.Records()
	entities := make([]ValueRecordEntity, len(records))
	for i, r := range records {
		entities[i] = ValueRecordEntity{
			Position:     i,
			SourceTable:  r.Table,
			SourceColumn: r.Column,
			Value:        r.Value,
			Embedding:    Float64Slice(snap.vectors[i]),
		}
	}

	return database.WithTransaction(ctx, db, func(tx *gorm.DB) error {
		if len(entities) > 0 {
			if err := tx.CreateInBatches(entities, 500).Error; err != nil {
				return fmt.Errorf("write records: %w", err)
			}
		}
		meta := ArtifactMetaEntity{
			ID:         1,
			BuiltAt:    snap.BuiltAt(),
			Records:    len(entities),
			Dimensions: snap.Dimensions(),
		}
		if err := tx.Create(&meta).Error; err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		return nil
	})
}

// Load reads the artifact. A missing artifact is an empty snapshot.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if !s.Exists() {
		return NewSnapshot(nil, nil, time.Time{})
	}

	db, err := database.NewDatabase(ctx, database.SQLiteURL(s.path))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = db.Close() }()

	var meta ArtifactMetaEntity
	if err := db.Session(ctx).First(&meta).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var entities []ValueRecordEntity
	if err := db.Session(ctx).Order("position").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	records := make([]retrieval.ValueRecord, len(entities))
	vectors := make([][]float64, len(entities))
	for i, e := range entities {
		records[i] = retrieval.NewValueRecord(e.SourceTable, e.SourceColumn, e.Value)
		vectors[i] = e.Embedding
	}
	return NewSnapshot(records, vectors, meta.BuiltAt)
}
