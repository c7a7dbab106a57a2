package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay debounces bursts of file events.
const DefaultWatchDelay = 300 * time.Millisecond

// Store keeps a snapshot in a JSON file.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	lastWrite []byte
}

// NewStore returns a store for path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, logger: logger}
}

// Path returns the file path.
func (st *Store) Path() string { return st.path }

// Load reads the snapshot. A missing file returns an error wrapping
// os.ErrNotExist.
func (st *Store) Load() (Snapshot, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", st.path, err)
	}
	return snap, nil
}

// Save writes snap.
func (st *Store) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	st.lastWrite = data
	return nil
}

// Watch calls onChange with the reloaded snapshot whenever the file is
// changed by another writer, until ctx is done. Writes made by Save are
// not reported.
func (st *Store) Watch(ctx context.Context, delay time.Duration, onChange func(Snapshot)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(st.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(st.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(delay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			st.reload(onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			st.logger.Warn("state watcher error", "error", err)
		}
	}
}

func (st *Store) reload(onChange func(Snapshot)) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		st.logger.Debug("state file unreadable", "path", st.path, "error", err)
		return
	}
	st.mu.Lock()
	own := bytes.Equal(data, st.lastWrite)
	st.mu.Unlock()
	if own {
		return
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		st.logger.Warn("ignoring invalid state file", "path", st.path, "error", err)
		return
	}
	st.logger.Info("state file changed, reloading", "path", st.path)
	onChange(snap)
}
