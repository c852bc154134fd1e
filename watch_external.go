package tether

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/capitan"
)

// WatchExternal begins watching the bound file and returns a channel that
// emits its raw contents whenever something other than this document
// writes it. Writes performed by the document's own saves are suppressed
// by comparing the file contents against the last snapshot written.
//
// This is a notification surface only: the document never merges external
// edits into its tree. Callers who want to adopt the external content can
// decode the emitted bytes and apply them via Replace.
//
// The channel closes when the context is canceled.
func (d *Document) WatchExternal(ctx context.Context) (<-chan []byte, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(d.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch file %s: %w", d.path, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				// Only react to write or create events.
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				data, err := os.ReadFile(d.path)
				if err != nil {
					continue
				}

				// Skip our own saves.
				if bytes.Equal(data, d.lastWritten()) {
					continue
				}

				capitan.Emit(ctx, DocumentExternalChange,
					KeyPath.Field(d.path),
					KeyBytes.Field(len(data)),
				)

				select {
				case out <- data:
				case <-ctx.Done():
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Continue watching despite errors.
			}
		}
	}()

	return out, nil
}
