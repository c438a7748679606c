package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/model"
)

// BatchHandler dispatches one parsed lead batch.
type BatchHandler func(ctx context.Context, leads []model.Lead)

// Watcher monitors a directory for dropped lead files and hands each
// parsed batch to its handler.
type Watcher struct {
	dir     string
	handler BatchHandler
	watcher *fsnotify.Watcher
	// settle is how long to wait after a create event before reading,
	// so the writer has finished.
	settle time.Duration
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher on dir, creating the directory if it
// does not exist.
func NewWatcher(dir string, handler BatchHandler) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "ingest: create watch dir")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, eris.Wrap(err, "ingest: add watch path")
	}

	return &Watcher{
		dir:     dir,
		handler: handler,
		watcher: fw,
		settle:  time.Second,
	}, nil
}

// Run blocks processing create events until ctx is cancelled, then
// waits for in-progress batches before returning.
func (w *Watcher) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("dir", w.dir))
	log.Info("watching for lead files")

	for {
		select {
		case <-ctx.Done():
			log.Info("waiting for in-progress batches")
			w.wg.Wait()
			log.Info("watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.wg.Wait()
				return eris.New("ingest: watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) || !isLeadFile(event.Name) {
				continue
			}

			log.Info("new lead file detected", zap.String("file", event.Name))
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				w.process(ctx, path)
			}(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.wg.Wait()
				return eris.New("ingest: watcher errors channel closed")
			}
			log.Error("watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) process(ctx context.Context, path string) {
	log := zap.L().With(zap.String("file", path))

	// Let the writer finish before reading.
	timer := time.NewTimer(w.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	leads, err := ParseLeads(path)
	if err != nil {
		log.Error("parse lead file failed", zap.Error(err))
		return
	}
	if len(leads) == 0 {
		log.Warn("no valid leads found")
		return
	}

	log.Info("processing leads", zap.Int("count", len(leads)))
	w.handler(ctx, leads)
}

func isLeadFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}
