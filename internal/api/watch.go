package api

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchFiles reloads and refreshes when a CSV file in the watched directory
// is written, created or renamed into place.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.watchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.watchDir, err)
	}
	s.logger.Info("watching silver directory", slog.String("dir", s.watchDir))

	trigger := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSilverChange(event) {
				continue
			}
			s.logger.Debug("silver file changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(s.debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			report, err := s.loadAndRefresh(ctx, refreshRequest{Load: true})
			switch {
			case err != nil && report == nil:
				s.logger.Error("watch refresh failed", slog.String("error", err.Error()))
			case err != nil:
				s.logger.Warn("watch refresh incomplete",
					slog.String("run_id", report.RunID),
					slog.String("status", string(report.Status)),
					slog.String("error", err.Error()))
			default:
				s.logger.Info("watch refresh completed", slog.String("run_id", report.RunID))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func isSilverChange(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".csv")
}
