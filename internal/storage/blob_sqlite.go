package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"infradesk/internal/domain"
)

// SQLiteBlobStore keeps dataset blobs in the blobs table.
type SQLiteBlobStore struct {
	db *DB
}

// NewSQLiteBlobStore creates a blob store on db.
func NewSQLiteBlobStore(db *DB) *SQLiteBlobStore {
	return &SQLiteBlobStore{db: db}
}

func (s *SQLiteBlobStore) Read(name string) ([]byte, error) {
	var data []byte
	err := s.db.conn.QueryRow(`SELECT data FROM blobs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, name)
	}
	return data, err
}

func (s *SQLiteBlobStore) Write(name string, data []byte) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO blobs (name, data, size, modified_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, size = excluded.size, modified_at = excluded.modified_at`,
		name, data, len(data), time.Now().UnixMilli(),
	)
	return err
}

func (s *SQLiteBlobStore) Stat(name string) (domain.BlobInfo, error) {
	var info domain.BlobInfo
	var modified int64
	err := s.db.conn.QueryRow(`SELECT name, size, modified_at FROM blobs WHERE name = ?`, name).
		Scan(&info.Name, &info.Size, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, name)
	}
	info.ModifiedAt = time.UnixMilli(modified).UTC()
	return info, err
}

func (s *SQLiteBlobStore) List() ([]domain.BlobInfo, error) {
	rows, err := s.db.conn.Query(`SELECT name, size, modified_at FROM blobs ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BlobInfo
	for rows.Next() {
		var info domain.BlobInfo
		var modified int64
		if err := rows.Scan(&info.Name, &info.Size, &modified); err != nil {
			return nil, err
		}
		info.ModifiedAt = time.UnixMilli(modified).UTC()
		result = append(result, info)
	}
	return result, rows.Err()
}

func (s *SQLiteBlobStore) Delete(name string) error {
	res, err := s.db.conn.Exec(`DELETE FROM blobs WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, name)
	}
	return nil
}

var _ domain.BlobStore = (*SQLiteBlobStore)(nil)
