package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/app/queue"
)

// debounceWindow suppresses repeated events for the same file.
const debounceWindow = 100 * time.Millisecond

// Watcher appends files created under directory sources to the queue.
// Removed files stay queued; their handles fail on the next play.
type Watcher struct {
	watcher *fsnotify.Watcher
	sources []*DirectorySource
	opener  Opener
	queue   Queue
	filter  TrackFilter
	onError func(error)

	last      map[string]time.Time
	closeOnce sync.Once
}

// NewWatcher starts watching the directories of the given sources.
// Non-directory sources are ignored. filter may be nil.
func NewWatcher(sources []Source, opener Opener, q Queue, filter TrackFilter, onError func(error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}

	watcher := &Watcher{
		watcher: w,
		opener:  opener,
		queue:   q,
		filter:  filter,
		onError: onError,
		last:    make(map[string]time.Time),
	}

	for _, src := range sources {
		ds, ok := src.(*DirectorySource)
		if !ok {
			continue
		}
		if err := watcher.addTree(ds.Path(), ds.Recursive()); err != nil {
			_ = w.Close()
			return nil, err
		}
		watcher.sources = append(watcher.sources, ds)
	}

	return watcher, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zlog.Error().Msgf("library: fsnotify error: %v", err)
			w.report(errors.Wrap(err, "fsnotify error"))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

// handle reacts to a single fsnotify event.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	src := w.sourceFor(event.Name)
	if src == nil {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if src.Filter().Matches(event.Name) {
			zlog.Info().Msgf("library: file removed, queued entry kept: path=%s", event.Name)
		}
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if src.Recursive() {
			if err := w.addTree(event.Name, true); err != nil {
				w.report(err)
			}
		}
		return
	}
	if !src.Filter().Matches(event.Name) {
		return
	}

	now := time.Now()
	if t, ok := w.last[event.Name]; ok && now.Sub(t) < debounceWindow {
		return
	}
	w.last[event.Name] = now

	t := FileTrack(event.Name)
	h, err := w.opener.Open(t)
	if err != nil {
		zlog.Warn().Msgf("library: cannot open new file path=%s: %v", event.Name, err)
		return
	}
	if w.filter != nil {
		if res := w.filter.Execute(ctx, h.Track(), w.queue.Tracks()); !res.Accepted {
			zlog.Info().Msgf("library: new file filtered: path=%s result=%s", event.Name, res)
			_ = h.Release()
			return
		}
	}
	if err := w.queue.Add(h); err != nil {
		if errors.Is(err, queue.ErrDuplicateID) {
			zlog.Debug().Msgf("library: file already queued: path=%s", event.Name)
			return
		}
		w.report(err)
		return
	}
	zlog.Info().Msgf("library: queued new file: path=%s id=%s", event.Name, t.ID)
}

// sourceFor returns the directory source that contains path.
func (w *Watcher) sourceFor(path string) *DirectorySource {
	for _, src := range w.sources {
		rel, err := filepath.Rel(src.Path(), path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !src.Recursive() && filepath.Dir(path) != src.Path() && path != src.Path() {
			continue
		}
		return src
	}
	return nil
}

// addTree watches root and, when recursive, every directory below it.
// A missing root is skipped.
func (w *Watcher) addTree(root string, recursive bool) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		zlog.Warn().Msgf("library: not watching missing directory: path=%s", root)
		return nil
	}

	if !recursive {
		return errors.Wrapf(w.watcher.Add(root), "failed to watch %s", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

func (w *Watcher) report(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
