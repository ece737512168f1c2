package nexec

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Editors rewrite files in bursts; collapse them into one reload.
const watchDebounce = 250 * time.Millisecond

// WatchConfig applies path's config now and again on every change,
// blocking until ctx ends. Editors often replace files instead of
// rewriting them, so the watch covers the directory and filters events
// by basename. Malformed intermediate states are skipped with a
// warning, and a rewrite with identical content is not re-applied.
//
// Run it on its own goroutine next to a pool:
//
//	go nexec.WatchConfig(ctx, "nexec.yaml", log, pool.ApplyConfig)
func WatchConfig(ctx context.Context, path string, log zerolog.Logger, apply func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("nexec: config watch: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("nexec: config watch %s: %w", dir, err)
	}
	base := filepath.Base(path)

	var (
		mu     sync.Mutex
		last   Config
		loaded bool
	)
	reload := func() {
		cfg, err := LoadConfig(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config reload skipped")
			return
		}
		mu.Lock()
		if loaded && cfg == last {
			mu.Unlock()
			return
		}
		last, loaded = cfg, true
		mu.Unlock()

		apply(cfg)
		log.Info().Str("path", path).Msg("config applied")
	}
	reload()

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, reload)
	}
	// No reload may fire after return.
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("config watch error")
		}
	}
}
