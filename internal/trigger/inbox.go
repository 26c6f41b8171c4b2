package trigger

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before it is handled.
const DefaultSettle = 500 * time.Millisecond

// Inbox watches a directory tree for telemetry exports.
type Inbox struct {
	root   string
	ext    string
	settle time.Duration
	handle Handler

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// NewInbox creates an Inbox over root that calls handle with the
// slash-separated path of each settled file relative to root.
func NewInbox(root string, settle time.Duration, handle Handler) *Inbox {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Inbox{
		root:    root,
		ext:     ".csv",
		settle:  settle,
		handle:  handle,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		done:    make(chan struct{}),
	}
}

// Run watches until ctx is cancelled. Files already present when Run starts
// are not handled. Run must be called at most once.
func (in *Inbox) Run(ctx context.Context) error {
	defer close(in.done)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger: inbox: %w", err)
	}
	defer watcher.Close()

	if err := in.addTree(watcher, in.root, false); err != nil {
		return fmt.Errorf("trigger: inbox: watch %s: %w", in.root, err)
	}
	slog.Info("trigger: inbox watching", "root", in.root)

	defer in.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			in.onEvent(watcher, event)

		case p := <-in.ready:
			key, err := in.key(p)
			if err != nil {
				slog.Warn("trigger: inbox: ignoring file", "path", p, "err", err)
				continue
			}
			if err := in.handle(ctx, key); err != nil {
				slog.Warn("trigger: inbox: handler failed", "key", key, "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("trigger: inbox: watcher error", "err", err)
		}
	}
}

func (in *Inbox) onEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ev.Has(fsnotify.Create) && isDir(ev.Name) {
		// Files may land in a new directory before its watch is added.
		if err := in.addTree(w, ev.Name, true); err != nil {
			slog.Warn("trigger: inbox: watch new directory", "path", ev.Name, "err", err)
		}
		return
	}
	if !in.wants(ev.Name) {
		return
	}
	in.schedule(ev.Name)
}

func (in *Inbox) wants(p string) bool {
	return strings.EqualFold(filepath.Ext(p), in.ext)
}

// schedule (re)starts the settle timer for p.
func (in *Inbox) schedule(p string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[p]; ok {
		t.Reset(in.settle)
		return
	}
	in.pending[p] = time.AfterFunc(in.settle, func() {
		in.mu.Lock()
		delete(in.pending, p)
		in.mu.Unlock()
		select {
		case in.ready <- p:
		case <-in.done:
		}
	})
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for p, t := range in.pending {
		t.Stop()
		delete(in.pending, p)
	}
}

func (in *Inbox) key(p string) (string, error) {
	rel, err := filepath.Rel(in.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("outside %s", in.root)
	}
	return filepath.ToSlash(rel), nil
}

// addTree watches dir and every directory below it. With queue set,
// matching files already in the tree are scheduled as well.
func (in *Inbox) addTree(w *fsnotify.Watcher, dir string, queue bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		if queue && d.Type().IsRegular() && in.wants(p) {
			in.schedule(p)
		}
		return nil
	})
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
