package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a dropped file must stay unchanged before
// it is ingested.
const DefaultSettleDelay = 500 * time.Millisecond

// DefaultRetryDelay is how long a batch that failed for a reason other than
// its content waits before it is tried again.
const DefaultRetryDelay = 30 * time.Second

// Watcher ingests JSON batches dropped into a directory. Ingested files move
// to the processed directory, rejected ones to the failed directory next to
// a .err file holding the reason. A batch that fails on the store side stays
// in the drop directory and is retried.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	ingester     *Ingester
	dir          string
	processedDir string
	failedDir    string
	settle       time.Duration
	retry        time.Duration
	logger       *logging.Logger
	onResult     func(path string, res *Result, err error)

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	procMu  sync.Mutex
	wg      sync.WaitGroup
}

type WatcherOption func(*Watcher)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.settle = d
	}
}

// WithRetryDelay overrides DefaultRetryDelay. A zero delay disables retries;
// the batch is then picked up on the next start.
func WithRetryDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.retry = d
	}
}

// WithResultHook registers fn to be called after every processed file.
func WithResultHook(fn func(path string, res *Result, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// NewWatcher creates a watcher on dir, creating the three directories if
// needed.
func NewWatcher(ingester *Ingester, dir, processedDir, failedDir string, logger *logging.Logger, opts ...WatcherOption) (*Watcher, error) {
	for _, d := range []string{dir, processedDir, failedDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("unable to create %s: %w", d, err)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	w := &Watcher{
		fsWatcher:    fsWatcher,
		ingester:     ingester,
		dir:          dir,
		processedDir: processedDir,
		failedDir:    failedDir,
		settle:       DefaultSettleDelay,
		retry:        DefaultRetryDelay,
		logger:       logger,
		pending:      make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	return w, nil
}

// Start processes files already waiting in the directory, then handles new
// ones until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("watcher", "Watching drop directory", logging.F("dir", w.dir))
	if err := w.ProcessExisting(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.wg.Wait()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isBatchFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name, w.settle)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher", "Watcher error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// ProcessExisting ingests every batch file currently in the directory.
func (w *Watcher) ProcessExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("unable to list %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !isBatchFile(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		w.ProcessFile(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// ProcessFile ingests one batch file and moves it out of the drop directory.
// A batch that cannot be decoded goes to the failed directory; any other
// error leaves it in place for a later retry.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (*Result, error) {
	w.procMu.Lock()
	defer w.procMu.Unlock()

	if _, err := os.Stat(path); err != nil {
		// Already handled by an earlier event.
		return nil, err
	}

	res, err := w.ingester.IngestFile(ctx, path)
	switch {
	case errors.Is(err, ErrInvalidBatch):
		w.logger.Error("watcher", "Batch rejected", err, logging.F("file", filepath.Base(path)))
		if moveErr := w.moveFailed(path, err); moveErr != nil {
			w.logger.Error("watcher", "Unable to move rejected batch", moveErr, logging.F("file", path))
		}
	case err != nil:
		w.logger.Error("watcher", "Batch not ingested, leaving it in place", err,
			logging.F("file", filepath.Base(path)),
			logging.F("retry_in", w.retry.String()))
		if w.retry > 0 && ctx.Err() == nil {
			w.schedule(ctx, path, w.retry)
		}
	default:
		w.logger.Info("watcher", "Batch ingested",
			logging.F("file", filepath.Base(path)),
			logging.F("inserted", res.Inserted),
			logging.F("already_present", res.AlreadyPresent))
		if _, moveErr := moveInto(path, w.processedDir); moveErr != nil {
			w.logger.Error("watcher", "Unable to move ingested batch", moveErr, logging.F("file", path))
		}
	}

	if w.onResult != nil {
		w.onResult(path, res, err)
	}
	return res, err
}

// schedule (re)arms the timer for path so a file is only read once writes
// to it have stopped for delay.
func (w *Watcher) schedule(ctx context.Context, path string, delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(delay)
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(delay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ProcessFile(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) moveFailed(path string, cause error) error {
	dest, err := moveInto(path, w.failedDir)
	if err != nil {
		return err
	}
	return os.WriteFile(dest+".err", []byte(cause.Error()+"\n"), 0644)
}

// moveInto renames path into dir, suffixing a timestamp if the name is taken.
func moveInto(path, dir string) (string, error) {
	base := filepath.Base(path)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		stamp := time.Now().UTC().Format("20060102T150405.000000000")
		dest = filepath.Join(dir, fmt.Sprintf("%s-%s%s", strings.TrimSuffix(base, ext), stamp, ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func isBatchFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".json")
}
