package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/yaya56vv/cortex/pkg/models"
)

// maxIngestBytes caps the size of files the watcher will ingest.
const maxIngestBytes = 4 << 20

// WatcherConfig assembles a drop-folder Watcher.
type WatcherConfig struct {
	// Service receives the ingested documents. Required.
	Service *Service

	// Dir is the folder to watch. Created if missing.
	Dir string

	// Dataset is the tag for files dropped directly into Dir.
	// Defaults to scratchpad.
	Dataset string

	// Debounce is the quiet period after the last write before a file is
	// ingested. Defaults to 2s.
	Debounce time.Duration

	// Logger receives watcher logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher ingests files dropped into a folder. Files placed directly in the
// root go to the configured default dataset; files inside a subdirectory go
// to the dataset named by the first path element, aliases included. Files
// stay in place after ingest; unchanged content is skipped, so restarts do
// not inflate document versions.
type Watcher struct {
	service  *Service
	dir      string
	dataset  string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a Watcher; Start begins watching.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("rag: watcher needs a service")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("rag: watcher needs a directory")
	}
	if cfg.Dataset == "" {
		cfg.Dataset = string(models.DatasetScratchpad)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		service:  cfg.Service,
		dir:      cfg.Dir,
		dataset:  cfg.Dataset,
		debounce: cfg.Debounce,
		logger:   cfg.Logger.With("component", "rag_watcher"),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start creates the folder if needed, ingests files already present, and
// begins watching for new ones until ctx ends or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	if err := w.addWatches(); err != nil {
		w.logger.Warn("initial watch setup incomplete", "error", err)
	}
	w.scanExisting()

	w.wg.Add(1)
	go w.loop(watchCtx)
	w.logger.Info("watching drop folder", "dir", w.dir, "default_dataset", w.dataset)
	return nil
}

// Close stops watching and waits for the event loop to drain.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	watcher := w.watcher
	w.watcher = nil
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	w.wg.Wait()
	return nil
}

// addWatches registers the root and every existing subdirectory.
func (w *Watcher) addWatches() error {
	return filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.mu.Lock()
		watcher := w.watcher
		w.mu.Unlock()
		if watcher == nil {
			return nil
		}
		return watcher.Add(path)
	})
}

// scanExisting schedules ingest of files already in the folder.
func (w *Watcher) scanExisting() {
	_ = filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		w.scheduleIngest(path)
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.scheduleIngest(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// scheduleIngest (re)arms the per-file debounce timer, so a file being
// written in several bursts is ingested once, after the last write.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingest(context.Background(), path)
	})
}

// ingest reads one dropped file and adds it to the routed dataset. Binary
// and oversized files are skipped with a warning.
func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if info.Size() > maxIngestBytes {
		w.logger.Warn("skipping oversized file", "path", path, "bytes", info.Size())
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading dropped file failed", "path", path, "error", err)
		return
	}
	if !utf8.Valid(data) {
		w.logger.Warn("skipping non-text file", "path", path)
		return
	}

	dataset, filename := w.route(path)
	content := string(data)

	// Unchanged content would only bump the version; skip it.
	id := DocumentID(CanonicalDataset(dataset), filename, content)
	if existing, err := w.service.GetDocument(ctx, id); err == nil && existing != nil && existing.Content == content {
		w.logger.Debug("file unchanged, skipping", "path", path)
		return
	}

	doc, err := w.service.AddDocument(ctx, AddDocumentRequest{
		Dataset:  dataset,
		Filename: filename,
		Content:  content,
		Metadata: models.DocumentMetadata{Source: "watcher"},
	})
	if err != nil {
		w.logger.Warn("ingesting dropped file failed", "path", path, "error", err)
		return
	}
	w.logger.Info("dropped file ingested",
		"path", path, "dataset", doc.Dataset, "document_id", doc.ID, "version", doc.Version)
}

// route derives (dataset tag, filename) from a path inside the drop folder.
// The first path element below the root names the dataset; files at the root
// use the default.
func (w *Watcher) route(path string) (dataset, filename string) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return w.dataset, filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i], rel[i+1:]
	}
	return w.dataset, rel
}
