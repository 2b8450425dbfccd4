package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/pkg/logger"
)

// ChangeHandler receives a resource event for each out-of-band edit to the
// flat-file directory.
type ChangeHandler func(action model.ResourceAction, resource, id string)

// Watch observes the flat-file directory with fsnotify and reports external
// creates, writes, and removes so they can be rebroadcast to connected
// workspace clients. Blocks until ctx is done.
func Watch(ctx context.Context, dir string, log *logger.Logger, onChange ChangeHandler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	log.Info("watching data dir", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			resource, id := classify(event.Name)
			if resource == "" {
				continue
			}

			switch {
			case event.Has(fsnotify.Create):
				onChange(model.ResourceCreated, resource, id)
			case event.Has(fsnotify.Write):
				onChange(model.ResourceUpdated, resource, id)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				onChange(model.ResourceDeleted, resource, id)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("data dir watch error", "error", err)
		}
	}
}

// classify maps a file path to its resource kind and entity id. Temp files
// from atomic writes and anything not named by a UUID are ignored.
func classify(path string) (resource, id string) {
	name := filepath.Base(path)

	var ext string
	switch {
	case strings.HasSuffix(name, ".json"):
		resource, ext = "thing", ".json"
	case strings.HasSuffix(name, ".md"):
		resource, ext = "document", ".md"
	default:
		return "", ""
	}

	id = strings.TrimSuffix(name, ext)
	if _, err := uuid.Parse(id); err != nil {
		return "", ""
	}
	return resource, id
}
