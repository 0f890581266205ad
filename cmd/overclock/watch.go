// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/petenewcomb/overclock-go/config"
	"go.uber.org/zap"
)

// watchConfig reloads the configuration at path whenever it changes and hands
// every successfully parsed version to reload. A version that fails to load
// is logged and otherwise ignored. It returns when ctx is done.
//
// The containing directory is watched rather than the file so that editors
// which save by renaming a new file into place are noticed.
func watchConfig(ctx context.Context, log *zap.Logger, path string, debounce time.Duration, reload func(*config.File)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case <-fire:
			f, err := config.Load(path)
			if err != nil {
				log.Warn("config reload failed, keeping current tasks", zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", path), zap.Int("tasks", len(f.Tasks)))
			reload(f)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
