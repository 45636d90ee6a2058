package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"infradesk/internal/domain"
	"infradesk/internal/identity"
	"infradesk/internal/logging"
	"infradesk/internal/registry"
	"infradesk/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Record Service — row operations over delimited dataset files
// ─────────────────────────────────────────────────────────────

// RecordService implements dataset CRUD. Every write is a locked
// load→mutate→save over the whole dataset file. Listing may also write:
// records whose identity needs reassignment are repaired and saved first.
type RecordService struct {
	codec    *storage.TableCodec
	registry *registry.Registry
	clock    domain.Clock
	emitter  EventEmitter
	log      *logrus.Entry

	locks datasetLocks
}

// NewRecordService creates a RecordService.
func NewRecordService(
	codec *storage.TableCodec,
	reg *registry.Registry,
	clock domain.Clock,
	emitter EventEmitter,
	log *logrus.Entry,
) *RecordService {
	if clock == nil {
		clock = domain.SystemClock
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &RecordService{
		codec:    codec,
		registry: reg,
		clock:    clock,
		emitter:  emitter,
		log:      logging.OrDiscard(log),
	}
}

// Schema returns the resolved schema of a dataset.
func (s *RecordService) Schema(dataset string) domain.Schema {
	return s.registry.Resolve(dataset)
}

// ── Enumeration ────────────────────────────────────────────

// ListDatasets describes every stored dataset, sorted by name.
func (s *RecordService) ListDatasets(ctx context.Context) ([]domain.DatasetInfo, error) {
	blobs, err := s.codec.Blobs().List()
	if err != nil {
		return nil, fmt.Errorf("%w: list datasets: %w", domain.ErrPersistenceFailed, err)
	}
	infos := make([]domain.DatasetInfo, 0, len(blobs))
	for _, b := range blobs {
		name, ok := DatasetFromBlob(b.Name)
		if !ok {
			continue
		}
		info, err := s.describe(name, b)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// GetDataset describes one dataset. ErrNotFound if it has no file.
func (s *RecordService) GetDataset(ctx context.Context, dataset string) (*domain.DatasetInfo, error) {
	blob, err := BlobName(dataset)
	if err != nil {
		return nil, err
	}
	b, err := s.codec.Blobs().Stat(blob)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return nil, fmt.Errorf("dataset %s: %w", dataset, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrPersistenceFailed, dataset, err)
	}
	return s.describe(dataset, b)
}

func (s *RecordService) describe(dataset string, b domain.BlobInfo) (*domain.DatasetInfo, error) {
	table, err := s.codec.Load(b.Name)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", dataset, err)
	}
	schema := s.registry.Resolve(dataset)
	return &domain.DatasetInfo{
		Name:          dataset,
		DisplayName:   schema.DisplayName,
		IdentityField: schema.IdentityField,
		Columns:       domain.ColumnUnion(schema.IdentityField, table.Columns, table.Records),
		RecordCount:   len(table.Records),
		Size:          b.Size,
		ModifiedAt:    b.ModifiedAt,
	}, nil
}

// ── Reads ──────────────────────────────────────────────────

// List returns filtered, sorted and optionally paginated records. Records
// needing a new identity are repaired and the dataset is saved before the
// listing is computed.
func (s *RecordService) List(ctx context.Context, dataset string, q ListQuery) (*ListResult, error) {
	blob, err := BlobName(dataset)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(dataset)
	defer unlock()

	table, err := s.codec.Load(blob)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dataset, err)
	}
	schema := s.registry.Resolve(dataset)
	columns := domain.ColumnUnion(schema.IdentityField, table.Columns, table.Records)

	changed, err := s.repair(schema, table.Records)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dataset, err)
	}
	if changed > 0 {
		columns = domain.ColumnUnion(schema.IdentityField, table.Columns, table.Records)
		if err := s.codec.Save(blob, table.Records, columns); err != nil {
			return nil, fmt.Errorf("list %s: %w", dataset, err)
		}
		s.log.WithFields(logrus.Fields{"dataset": dataset, "repaired": changed}).Info("repaired identities while listing")
		s.emit(ctx, EventDatasetUpdated, dataset, "repair")
	}

	rows, total := applyQuery(table.Records, q)
	return &ListResult{Rows: rows, Total: total, Columns: columns}, nil
}

// GetByPosition returns the record at the 0-based position.
func (s *RecordService) GetByPosition(ctx context.Context, dataset string, index int) (*domain.Record, error) {
	table, _, err := s.read(dataset)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", dataset, err)
	}
	if err := checkPosition(dataset, index, len(table.Records)); err != nil {
		return nil, err
	}
	return table.Records[index], nil
}

// GetByIdentity returns the record whose identity field equals id.
func (s *RecordService) GetByIdentity(ctx context.Context, dataset, id string) (*domain.Record, error) {
	table, schema, err := s.read(dataset)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", dataset, err)
	}
	i, err := findIdentity(dataset, schema, table.Records, id)
	if err != nil {
		return nil, err
	}
	return table.Records[i], nil
}

// ExportRaw returns the stored dataset file unchanged.
func (s *RecordService) ExportRaw(ctx context.Context, dataset string) ([]byte, error) {
	blob, err := BlobName(dataset)
	if err != nil {
		return nil, err
	}
	data, err := s.codec.Blobs().Read(blob)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return nil, fmt.Errorf("export %s: %w", dataset, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: export %s: %w", domain.ErrPersistenceFailed, dataset, err)
	}
	return data, nil
}

// ── Writes ─────────────────────────────────────────────────

// Insert appends a record with a freshly generated identity. Any identity
// or audit value in fields is ignored.
func (s *RecordService) Insert(ctx context.Context, dataset string, fields *domain.Record) (*domain.Record, error) {
	var inserted *domain.Record
	err := s.mutate(ctx, dataset, "insert", func(schema domain.Schema, table *storage.Table, now nowStamp) (*storage.Table, error) {
		seq := len(table.Records) + 1
		candidate := identity.Generate(schema, now.millis, seq)
		id, err := identity.ResolveCollision(schema, candidate, identity.Set(schema.IdentityField, table.Records), now.millis, seq)
		if err != nil {
			return nil, err
		}

		rec := domain.NewRecord(schema.IdentityField, id)
		if fields != nil {
			fields.Each(func(k string, v any) {
				if isManagedField(schema, k) {
					return
				}
				rec.Set(k, domain.SanitizeValue(v))
			})
		}
		rec.Set(domain.FieldCreatedAt, now.text)
		rec.Set(domain.FieldUpdatedAt, now.text)
		inserted = rec

		return &storage.Table{
			Columns: domain.ColumnUnion(schema.IdentityField, table.Columns, []*domain.Record{rec}),
			Records: append(table.Records, rec),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// UpdateByPosition merges fields over the record at the 0-based position.
func (s *RecordService) UpdateByPosition(ctx context.Context, dataset string, index int, fields *domain.Record) (*domain.Record, error) {
	return s.update(ctx, dataset, fields, func(_ domain.Schema, records []*domain.Record) (int, error) {
		return index, checkPosition(dataset, index, len(records))
	})
}

// UpdateByIdentity merges fields over the record with identity id.
func (s *RecordService) UpdateByIdentity(ctx context.Context, dataset, id string, fields *domain.Record) (*domain.Record, error) {
	return s.update(ctx, dataset, fields, func(schema domain.Schema, records []*domain.Record) (int, error) {
		return findIdentity(dataset, schema, records, id)
	})
}

// DeleteByPosition removes and returns the record at the 0-based position.
func (s *RecordService) DeleteByPosition(ctx context.Context, dataset string, index int) (*domain.Record, error) {
	return s.remove(ctx, dataset, func(_ domain.Schema, records []*domain.Record) (int, error) {
		return index, checkPosition(dataset, index, len(records))
	})
}

// DeleteByIdentity removes and returns the record with identity id.
func (s *RecordService) DeleteByIdentity(ctx context.Context, dataset, id string) (*domain.Record, error) {
	return s.remove(ctx, dataset, func(schema domain.Schema, records []*domain.Record) (int, error) {
		return findIdentity(dataset, schema, records, id)
	})
}

// DeleteDataset removes the dataset file. ErrNotFound if it does not exist.
func (s *RecordService) DeleteDataset(ctx context.Context, dataset string) error {
	blob, err := BlobName(dataset)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(dataset)
	defer unlock()

	err = s.codec.Blobs().Delete(blob)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return fmt.Errorf("delete dataset %s: %w", dataset, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: delete dataset %s: %w", domain.ErrPersistenceFailed, dataset, err)
	}
	s.log.WithField("dataset", dataset).Info("dataset deleted")
	s.emitter.Emit(ctx, EventDatasetDeleted, map[string]any{"dataset": dataset})
	return nil
}

// ── Identity maintenance ───────────────────────────────────

// RepairIdentities regenerates every identity that needs reassignment and
// saves the dataset when anything changed.
func (s *RecordService) RepairIdentities(ctx context.Context, dataset string) (*domain.RepairResult, error) {
	result := &domain.RepairResult{Dataset: dataset}
	err := s.mutate(ctx, dataset, "repair", func(schema domain.Schema, table *storage.Table, _ nowStamp) (*storage.Table, error) {
		result.Total = len(table.Records)
		changed, err := s.repair(schema, table.Records)
		if err != nil {
			return nil, err
		}
		result.Updated = changed
		if changed == 0 {
			return nil, nil
		}
		return &storage.Table{
			Columns: domain.ColumnUnion(schema.IdentityField, table.Columns, table.Records),
			Records: table.Records,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if result.Updated > 0 {
		s.log.WithFields(logrus.Fields{"dataset": dataset, "updated": result.Updated, "total": result.Total}).Info("identities repaired")
	}
	return result, nil
}

// RepairAll runs RepairIdentities over every dataset, a few at a time.
func (s *RecordService) RepairAll(ctx context.Context) ([]domain.RepairResult, error) {
	infos, err := s.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]domain.RepairResult, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, info := range infos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.RepairIdentities(gctx, info.Name)
			if err != nil {
				return err
			}
			results[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ── internals ──────────────────────────────────────────────

type nowStamp struct {
	millis int64
	text   string
}

func (s *RecordService) now() nowStamp {
	t := s.clock.Now()
	return nowStamp{millis: t.UnixMilli(), text: domain.FormatTimestamp(t)}
}

// repair is the identity repair step shared by List and RepairIdentities.
func (s *RecordService) repair(schema domain.Schema, records []*domain.Record) (int, error) {
	now := s.now()
	return identity.Repair(schema, records, now.millis, now.text)
}

func (s *RecordService) read(dataset string) (*storage.Table, domain.Schema, error) {
	blob, err := BlobName(dataset)
	if err != nil {
		return nil, domain.Schema{}, err
	}
	unlock := s.locks.Lock(dataset)
	defer unlock()
	table, err := s.codec.Load(blob)
	if err != nil {
		return nil, domain.Schema{}, err
	}
	return table, s.registry.Resolve(dataset), nil
}

// mutateFunc returns the table to save, or nil to skip saving.
type mutateFunc func(schema domain.Schema, table *storage.Table, now nowStamp) (*storage.Table, error)

// mutate runs fn inside the dataset lock and saves its result.
func (s *RecordService) mutate(ctx context.Context, dataset, op string, fn mutateFunc) error {
	blob, err := BlobName(dataset)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(dataset)
	defer unlock()

	table, err := s.codec.Load(blob)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, dataset, err)
	}
	next, err := fn(s.registry.Resolve(dataset), table, s.now())
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, dataset, err)
	}
	if next == nil {
		return nil
	}
	if err := s.codec.Save(blob, next.Records, next.Columns); err != nil {
		return fmt.Errorf("%s %s: %w", op, dataset, err)
	}
	s.emit(ctx, EventDatasetUpdated, dataset, op)
	return nil
}

type locateFunc func(schema domain.Schema, records []*domain.Record) (int, error)

func (s *RecordService) update(ctx context.Context, dataset string, fields *domain.Record, locate locateFunc) (*domain.Record, error) {
	var updated *domain.Record
	err := s.mutate(ctx, dataset, "update", func(schema domain.Schema, table *storage.Table, now nowStamp) (*storage.Table, error) {
		i, err := locate(schema, table.Records)
		if err != nil {
			return nil, err
		}
		original := table.Records[i]
		merged := original.Clone()
		if fields != nil {
			fields.Each(func(k string, v any) {
				merged.Set(k, domain.SanitizeValue(v))
			})
		}

		// Identity and creation time are never changed by an update.
		if id, ok := original.Get(schema.IdentityField); ok {
			merged.Set(schema.IdentityField, id)
		} else {
			merged.Delete(schema.IdentityField)
		}
		if created, ok := original.Get(domain.FieldCreatedAt); ok && created != "" {
			merged.Set(domain.FieldCreatedAt, created)
		} else {
			merged.Set(domain.FieldCreatedAt, now.text)
		}
		merged.Set(domain.FieldUpdatedAt, now.text)

		table.Records[i] = merged
		updated = merged
		return &storage.Table{
			Columns: domain.ColumnUnion(schema.IdentityField, nil, table.Records),
			Records: table.Records,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RecordService) remove(ctx context.Context, dataset string, locate locateFunc) (*domain.Record, error) {
	var removed *domain.Record
	err := s.mutate(ctx, dataset, "delete", func(schema domain.Schema, table *storage.Table, _ nowStamp) (*storage.Table, error) {
		i, err := locate(schema, table.Records)
		if err != nil {
			return nil, err
		}
		removed = table.Records[i]
		records := append(table.Records[:i:i], table.Records[i+1:]...)

		// An emptied dataset keeps the removed record's columns as its header.
		source := records
		if len(records) == 0 {
			source = []*domain.Record{removed}
		}
		return &storage.Table{
			Columns: domain.ColumnUnion(schema.IdentityField, nil, source),
			Records: records,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *RecordService) emit(ctx context.Context, event, dataset, action string) {
	s.emitter.Emit(ctx, event, map[string]any{"dataset": dataset, "action": action})
}

func isManagedField(schema domain.Schema, k string) bool {
	return k == schema.IdentityField || k == domain.FieldCreatedAt || k == domain.FieldUpdatedAt
}

func checkPosition(dataset string, index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: position %d in %s (%d records)", domain.ErrNotFound, index, dataset, n)
	}
	return nil
}

func findIdentity(dataset string, schema domain.Schema, records []*domain.Record, id string) (int, error) {
	if id != "" {
		for i, r := range records {
			if r.String(schema.IdentityField) == id {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: %s %q in %s", domain.ErrNotFound, schema.IdentityField, id, dataset)
}
