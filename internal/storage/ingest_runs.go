package storage

import (
	"time"

	"github.com/google/uuid"

	"infradesk/internal/domain"
)

// IngestRunStore implements domain.IngestRunStore on SQLite.
type IngestRunStore struct {
	db *DB
}

// NewIngestRunStore creates a new IngestRunStore.
func NewIngestRunStore(db *DB) *IngestRunStore {
	return &IngestRunStore{db: db}
}

// CreateRun inserts run, assigning an ID when it has none.
func (s *IngestRunStore) CreateRun(run *domain.IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO ingest_runs (id, dataset, source, started_at, finished_at, status,
		 total_rows, new_rows, duplicates, sheets, identities, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Source, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Status,
		run.Stats.TotalRows, run.Stats.NewRows, run.Stats.Duplicates,
		run.Stats.SheetsProcessed, run.Stats.IdentitiesGenerated, run.Error,
	)
	return err
}

// ListRuns returns the most recent runs, newest first. An empty dataset
// lists runs across all datasets.
func (s *IngestRunStore) ListRuns(dataset string, limit int) ([]domain.IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.Query(
		`SELECT id, dataset, source, started_at, finished_at, status,
		 total_rows, new_rows, duplicates, sheets, identities, error
		 FROM ingest_runs WHERE (? = '' OR dataset = ?)
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		dataset, dataset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.IngestRun
	for rows.Next() {
		var r domain.IngestRun
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Dataset, &r.Source, &started, &finished, &r.Status,
			&r.Stats.TotalRows, &r.Stats.NewRows, &r.Stats.Duplicates,
			&r.Stats.SheetsProcessed, &r.Stats.IdentitiesGenerated, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		r.Stats.Dataset = r.Dataset
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

var _ domain.IngestRunStore = (*IngestRunStore)(nil)
