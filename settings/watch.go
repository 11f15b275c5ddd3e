// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package settings

import (
	"log/slog"
	"path/filepath"

	"cogentcore.org/core/base/errors"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a settings file when it changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// Watch watches the given settings file and calls fun with the newly
// loaded settings every time it is written or replaced. Files that fail
// to load are logged and skipped. The directory of the file is watched,
// so that editors that save by renaming are seen. fun is called on the
// watcher goroutine.
func Watch(filename string, fun func(s *Settings)) (*Watcher, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{watcher: fw, done: make(chan struct{}), stopped: make(chan struct{})}
	go w.run(abs, fun)
	return w, nil
}

func (w *Watcher) run(filename string, fun func(s *Settings)) {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s, err := Load(filename)
			if errors.Log(err) != nil {
				continue
			}
			slog.Info("settings: reloaded", "file", filename)
			fun(s)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			errors.Log(err)
		}
	}
}

// Close stops watching and waits for the watcher goroutine to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}
