package lexical

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/rankd/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher reloads an Expander whenever its lexicon file changes.
// The built-in base lexicon is merged under the file's contents on every reload.
type Watcher struct {
	path     string
	base     *Lexicon
	expander *Expander
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	reloads int
}

// NewWatcher creates a watcher for the lexicon file at path.
func NewWatcher(path string, base *Lexicon, expander *Expander, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		base:     base,
		expander: expander,
		debounce: defaultDebounce,
		logger:   utils.LoggerOrNop(logger).With(zap.String("lexicon", path)),
	}
}

// Reload reads the lexicon file and swaps it into the expander.
// On error the current dictionary is kept.
func (w *Watcher) Reload() error {
	lex, err := LoadLexicon(w.path)
	if err != nil {
		return err
	}
	w.expander.Load(w.base.Merge(lex))
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	w.logger.Info("lexicon reloaded", zap.Int("terms", w.expander.Size()))
	return nil
}

// Reloads returns how many successful reloads have happened.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Run watches the file's directory until ctx is cancelled. Editors often
// replace files instead of writing them, so the directory is watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Debug("lexicon watcher started")

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.scheduleReload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("lexicon watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.Reload(); err != nil {
			w.logger.Warn("lexicon reload failed", zap.Error(err))
		}
	})
}
