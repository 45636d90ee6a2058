package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"infradesk/internal/domain"
	"infradesk/internal/logging"
)

// Table is a decoded dataset file: its header and rows.
type Table struct {
	Columns []string
	Records []*domain.Record
}

// TableCodec reads and writes dataset tables as comma-delimited blobs with a
// header row.
type TableCodec struct {
	blobs domain.BlobStore
	log   *logrus.Entry
}

// NewTableCodec creates a codec over blobs.
func NewTableCodec(blobs domain.BlobStore, log *logrus.Entry) *TableCodec {
	return &TableCodec{blobs: blobs, log: logging.OrDiscard(log)}
}

// Blobs returns the underlying blob store.
func (c *TableCodec) Blobs() domain.BlobStore { return c.blobs }

// Load reads the named blob. A missing blob is an empty table. A blob that
// cannot be parsed also loads as an empty table (logged). Read failures are
// returned wrapped in ErrPersistenceFailed.
func (c *TableCodec) Load(name string) (*Table, error) {
	data, err := c.blobs.Read(name)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrPersistenceFailed, name, err)
	}
	t, err := Decode(data)
	if err != nil {
		c.log.WithError(err).WithField("blob", name).Warn("malformed table, loading as empty")
		return &Table{}, nil
	}
	return t, nil
}

// Save fully replaces the named blob with a header of columns followed by
// one line per record. An empty record list still writes the header.
func (c *TableCodec) Save(name string, records []*domain.Record, columns []string) error {
	data, err := Encode(records, columns)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrPersistenceFailed, name, err)
	}
	if err := c.blobs.Write(name, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrPersistenceFailed, name, err)
	}
	return nil
}

// Decode parses delimited bytes. Bare quotes inside unquoted cells are kept
// literally. Rows shorter than the header leave the
// missing fields absent; cells beyond the header are dropped. Blank header
// cells drop their column.
func Decode(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return &Table{}, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	t := &Table{}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		cols[i] = h
		t.Columns = append(t.Columns, h)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	for _, row := range rows {
		rec := domain.NewRecord()
		for i, col := range cols {
			if col == "" || i >= len(row) {
				continue
			}
			rec.Set(col, row[i])
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Encode renders records under the given column order. Absent fields are
// written as empty cells.
func Encode(records []*domain.Record, columns []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	line := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			v, ok := rec.Get(col)
			if !ok || v == nil {
				line[i] = ""
				continue
			}
			line[i] = cast.ToString(v)
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
