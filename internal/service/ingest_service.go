package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"infradesk/internal/domain"
	"infradesk/internal/ingest"
	"infradesk/internal/logging"
	"infradesk/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Ingest Service — workbook imports into datasets
// ─────────────────────────────────────────────────────────────

// IngestWorkbook merges a parsed workbook into dataset, creating the
// dataset if absent, and saves once at the end.
func (s *RecordService) IngestWorkbook(ctx context.Context, dataset string, wb *ingest.Workbook, opts ingest.Options) (*domain.UploadStats, error) {
	var stats domain.UploadStats
	err := s.mutate(ctx, dataset, "ingest", func(schema domain.Schema, table *storage.Table, now nowStamp) (*storage.Table, error) {
		batch, err := ingest.Ingest(schema, table.Records, table.Columns, wb, opts, now.millis, now.text)
		if err != nil {
			return nil, err
		}
		stats = batch.Stats
		stats.Dataset = dataset
		return &storage.Table{Columns: batch.Columns, Records: batch.Records}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"dataset":    dataset,
		"sheets":     stats.SheetsProcessed,
		"rows":       stats.TotalRows,
		"new":        stats.NewRows,
		"duplicates": stats.Duplicates,
	}).Info("workbook ingested")
	return &stats, nil
}

// IngestRequest names what to import and where.
type IngestRequest struct {
	Dataset string `json:"dataset"`

	// SourceType selects a registered source. Empty picks one from the
	// extension of Path.
	SourceType string              `json:"sourceType,omitempty"`
	Path       string              `json:"path,omitempty"`
	Config     ingest.SourceConfig `json:"config,omitempty"`

	// Options override the dataset's configured profile when set.
	Options *ingest.Options `json:"options,omitempty"`
}

// IngestService reads workbooks from sources, merges them through the
// RecordService and keeps a run log.
type IngestService struct {
	records  *RecordService
	fs       afero.Fs
	runs     domain.IngestRunStore
	profiles map[string]ingest.Options
	log      *logrus.Entry
}

// NewIngestService creates an IngestService. runs may be nil to skip the
// run log.
func NewIngestService(
	records *RecordService,
	fs afero.Fs,
	runs domain.IngestRunStore,
	profiles map[string]ingest.Options,
	log *logrus.Entry,
) *IngestService {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &IngestService{
		records:  records,
		fs:       fs,
		runs:     runs,
		profiles: profiles,
		log:      logging.OrDiscard(log),
	}
}

// Profile returns the configured header map and key columns of dataset.
// Profile keys are matched case-insensitively.
func (s *IngestService) Profile(dataset string) ingest.Options {
	if p, ok := s.profiles[dataset]; ok {
		return p
	}
	return s.profiles[strings.ToLower(dataset)]
}

// ListSources returns the available workbook source descriptors.
func (s *IngestService) ListSources() []ingest.SourceSpec {
	return ingest.ListSources()
}

// ListRuns returns the most recent runs of dataset (all datasets when empty).
func (s *IngestService) ListRuns(dataset string, limit int) ([]domain.IngestRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(dataset, limit)
}

// Ingest reads the requested source and merges it into the dataset. Any
// failure to obtain a workbook is reported as ErrIngestionFailed; nothing
// is written in that case.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*domain.UploadStats, error) {
	if err := ValidateDatasetName(req.Dataset); err != nil {
		return nil, err
	}

	run := &domain.IngestRun{
		Dataset:   req.Dataset,
		Source:    sourceLabel(req),
		StartedAt: s.records.clock.Now(),
	}

	stats, err := s.ingest(ctx, req)
	run.FinishedAt = s.records.clock.Now()
	if err != nil {
		run.Status = "error"
		run.Error = err.Error()
	} else {
		run.Status = "success"
		run.Stats = *stats
	}
	s.recordRun(run)

	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"dataset": req.Dataset, "source": run.Source}).Warn("ingestion failed")
		return nil, err
	}
	s.records.emitter.Emit(ctx, EventIngestFinished, stats)
	return stats, nil
}

func (s *IngestService) ingest(ctx context.Context, req IngestRequest) (*domain.UploadStats, error) {
	wb, err := s.readWorkbook(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s into %s: %w", domain.ErrIngestionFailed, sourceLabel(req), req.Dataset, err)
	}

	opts := s.Profile(req.Dataset)
	if req.Options != nil {
		opts = *req.Options
	}
	return s.records.IngestWorkbook(ctx, req.Dataset, wb, opts)
}

func (s *IngestService) readWorkbook(ctx context.Context, req IngestRequest) (*ingest.Workbook, error) {
	var (
		src ingest.Source
		err error
	)
	if req.SourceType != "" {
		src, err = ingest.GetSource(req.SourceType)
	} else {
		src, err = ingest.SourceForPath(req.Path)
	}
	if err != nil {
		return nil, err
	}

	in := ingest.Input{Name: req.Path, Config: req.Config}
	if req.Path != "" {
		f, err := s.fs.Open(req.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", req.Path, err)
		}
		defer f.Close()
		in.Reader = f
	}

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	return src.Read(readCtx, in)
}

func (s *IngestService) recordRun(run *domain.IngestRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.CreateRun(run); err != nil {
		s.log.WithError(err).WithField("dataset", run.Dataset).Warn("failed to record ingest run")
	}
}

func sourceLabel(req IngestRequest) string {
	switch {
	case req.Path != "":
		return filepath.Base(req.Path)
	case req.SourceType != "":
		if conn, ok := req.Config["connection"]; ok {
			return fmt.Sprintf("%s:%v", req.SourceType, conn)
		}
		return req.SourceType
	default:
		return "workbook"
	}
}
