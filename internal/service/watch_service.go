package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"infradesk/internal/ingest"
	"infradesk/internal/logging"
)

// ─────────────────────────────────────────────────────────────
// Watch Service — inbox ingestion and scheduled maintenance
// ─────────────────────────────────────────────────────────────

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	defaultDebounce = 500 * time.Millisecond
)

// WatchConfig configures the inbox watcher and the repair schedule.
type WatchConfig struct {
	Inbox          string        `mapstructure:"inbox"`
	Debounce       time.Duration `mapstructure:"debounce"`
	RepairSchedule string        `mapstructure:"repair_schedule"`
}

// WatchService drops files from an inbox directory into datasets and runs
// identity repair on a cron schedule.
type WatchService struct {
	ingest  *IngestService
	records *RecordService
	fs      afero.Fs
	cfg     WatchConfig
	log     *logrus.Entry
	running runningGuard

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewWatchService creates a WatchService. Nothing runs until Start.
func NewWatchService(ingestSvc *IngestService, records *RecordService, fs afero.Fs, cfg WatchConfig, log *logrus.Entry) *WatchService {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	return &WatchService{
		ingest:  ingestSvc,
		records: records,
		fs:      fs,
		cfg:     cfg,
		log:     logging.OrDiscard(log),
	}
}

// DatasetForInboxFile maps an inbox file name to its target dataset.
// "<dataset>.<ext>" and "<dataset>__<suffix>.<ext>" are accepted when ext
// belongs to a registered source.
func DatasetForInboxFile(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	if _, err := ingest.SourceForPath(base); err != nil {
		return "", false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(stem, "__"); i >= 0 {
		stem = stem[:i]
	}
	if ValidateDatasetName(stem) != nil {
		return "", false
	}
	return stem, true
}

// ── Lifecycle ──────────────────────────────────────────────

// Start tears down any previous watcher/cron and rebuilds them from the
// configuration. Files already waiting in the inbox are processed first.
func (s *WatchService) Start(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.RepairSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(s.cfg.RepairSchedule, func() {
			s.log.Info("cron: repairing identities")
			results, err := s.records.RepairAll(ctx)
			if err != nil {
				s.log.WithError(err).Warn("cron: repair failed")
				return
			}
			for _, r := range results {
				if r.Updated > 0 {
					s.log.WithFields(logrus.Fields{"dataset": r.Dataset, "updated": r.Updated}).Info("cron: identities repaired")
				}
			}
		})
		if err != nil {
			return fmt.Errorf("repair schedule %q: %w", s.cfg.RepairSchedule, err)
		}
		c.Start()
		s.cronSched = c
		s.log.WithField("schedule", s.cfg.RepairSchedule).Info("cron: repair scheduled")
	}

	if s.cfg.Inbox == "" {
		return nil
	}

	inbox, err := filepath.Abs(s.cfg.Inbox)
	if err != nil {
		return fmt.Errorf("inbox %q: %w", s.cfg.Inbox, err)
	}
	s.cfg.Inbox = inbox
	for _, dir := range []string{inbox, filepath.Join(inbox, ProcessedDir), filepath.Join(inbox, FailedDir)} {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	s.ScanInbox(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(inbox); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", inbox, err)
	}
	s.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel

	go s.loop(watchCtx, watcher)

	s.log.WithField("inbox", inbox).Info("watcher: watching inbox")
	return nil
}

func (s *WatchService) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Dir(event.Name) != s.cfg.Inbox {
				continue
			}
			if _, ok := DatasetForInboxFile(event.Name); !ok {
				continue
			}
			path := event.Name
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(s.cfg.Debounce, func() {
				s.log.WithField("file", path).Debug("watcher: file settled")
				s.ProcessFile(ctx, path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("watcher: error")
		}
	}
}

// ScanInbox processes every eligible file currently in the inbox.
func (s *WatchService) ScanInbox(ctx context.Context) {
	entries, err := afero.ReadDir(s.fs, s.cfg.Inbox)
	if err != nil {
		s.log.WithError(err).Warn("watcher: failed to list inbox")
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := DatasetForInboxFile(e.Name()); !ok {
			continue
		}
		s.ProcessFile(ctx, filepath.Join(s.cfg.Inbox, e.Name()))
	}
}

// ProcessFile ingests one inbox file and moves it to processed/ or failed/.
// It is a no-op when the file is already being handled or has vanished.
func (s *WatchService) ProcessFile(ctx context.Context, path string) {
	dataset, ok := DatasetForInboxFile(path)
	if !ok {
		return
	}
	if !s.running.TryLock(path) {
		return
	}
	defer s.running.Unlock(path)

	if _, err := s.fs.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).WithField("file", path).Warn("watcher: stat failed")
		}
		return
	}

	entry := s.log.WithFields(logrus.Fields{"file": filepath.Base(path), "dataset": dataset})
	stats, err := s.ingest.Ingest(ctx, IngestRequest{Dataset: dataset, Path: path})
	target := ProcessedDir
	if err != nil {
		target = FailedDir
		entry.WithError(err).Warn("watcher: ingestion failed")
	} else {
		entry.WithField("new", stats.NewRows).Info("watcher: file ingested")
	}

	dest := filepath.Join(filepath.Dir(path), target,
		fmt.Sprintf("%d_%s", s.records.clock.Now().UnixMilli(), filepath.Base(path)))
	if err := s.fs.Rename(path, dest); err != nil {
		entry.WithError(err).Warn("watcher: failed to move file")
	}
}

// Wait blocks until in-flight files finish or ctx is cancelled.
func (s *WatchService) Wait(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down the watcher and the scheduler. Safe to call repeatedly.
func (s *WatchService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
