package events

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Terminal reports whether ev ends a run.
func Terminal(ev Event) bool {
	switch ev.Type {
	case TypeRunCompleted, TypeRunCancelled, TypeRunFailed:
		return true
	}
	return false
}

// Follow streams events from path to fn: first everything already written,
// then new lines as they are appended. It returns after delivering a
// terminal event, when ctx is done, or when the file is removed.
func Follow(ctx context.Context, path string, fn func(Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	t := &tailer{r: bufio.NewReader(f), fn: fn}
	done, err := t.drain()
	if err != nil || done {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				done, err := t.drain()
				if err != nil || done {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching event log: %w", err)
		}
	}
}

// tailer reassembles lines that arrive across several writes.
type tailer struct {
	r       *bufio.Reader
	pending []byte
	fn      func(Event)
}

func (t *tailer) drain() (bool, error) {
	for {
		chunk, err := t.r.ReadBytes('\n')
		t.pending = append(t.pending, chunk...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, fmt.Errorf("reading event log: %w", err)
		}

		line := t.pending
		t.pending = nil
		if ev, ok := decodeLine(line); ok {
			t.fn(ev)
			if Terminal(ev) {
				return true, nil
			}
		}
	}
}
