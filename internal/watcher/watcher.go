// Package watcher reports new voucher images that appear under a set of
// directories, such as a phone's screenshot folder synced to disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultExts are the extensions emitted when Config.AllowedExts is nil
// (lowercase, without '.').
var DefaultExts = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
}

// Config configures a watch
type Config struct {
	Roots       []string            // directories to watch (recursive)
	AllowedExts map[string]struct{} // nil means DefaultExts
	InitialScan bool                // emit files that already exist
	Debounce    time.Duration       // quiet period before pending paths are emitted
}

// Start watches cfg.Roots until ctx is done. New or rewritten files with an
// allowed extension are sent on the returned path channel once no further
// event arrived for cfg.Debounce. Both channels are closed on return.
func Start(ctx context.Context, cfg Config) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = DefaultExts
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	var existing []string
	for _, root := range cfg.Roots {
		files, err := addTree(w, root, cfg.AllowedExts)
		if err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("watching %s: %w", root, err)
		}
		if cfg.InitialScan {
			existing = append(existing, files...)
		}
	}
	slog.Info("Watching for gifticon images", "roots", cfg.Roots, "existing", len(existing))

	paths := make(chan string, 256)
	errs := make(chan error, 1)
	go run(ctx, w, cfg, existing, paths, errs)

	return paths, errs, nil
}

func run(ctx context.Context, w *fsnotify.Watcher, cfg Config, existing []string, paths chan<- string, errs chan<- error) {
	defer close(paths)
	defer close(errs)
	defer w.Close()

	send := func(p string) bool {
		select {
		case paths <- p:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, p := range existing {
		if !send(p) {
			return
		}
	}

	pending := map[string]struct{}{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	flush := func() bool {
		names := make([]string, 0, len(pending))
		for p := range pending {
			names = append(names, p)
		}
		sort.Strings(names)
		clear(pending)
		for _, p := range names {
			// Temporary files are often gone by the time the burst settles.
			if info, err := os.Stat(p); err != nil || info.IsDir() {
				continue
			}
			if !send(p) {
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if e.Has(fsnotify.Create) {
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					// Files copied in together with their directory never
					// produce events of their own.
					files, err := addTree(w, e.Name, cfg.AllowedExts)
					if err != nil {
						slog.Warn("Failed to watch new directory", "path", e.Name, "error", err)
					}
					for _, f := range files {
						pending[f] = struct{}{}
					}
				}
			}
			if allowed(e.Name, cfg.AllowedExts) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
				pending[e.Name] = struct{}{}
			}
			if len(pending) == 0 {
				continue
			}
			if cfg.Debounce <= 0 {
				if !flush() {
					return
				}
				continue
			}
			timer.Reset(cfg.Debounce)

		case <-timer.C:
			if !flush() {
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Error("Watcher error", "error", err)
			select {
			case errs <- err:
			default:
			}
		}
	}
}

// addTree watches root and every directory below it, returning the allowed
// files it passed.
func addTree(w *fsnotify.Watcher, root string, exts map[string]struct{}) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if allowed(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func allowed(path string, exts map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}
