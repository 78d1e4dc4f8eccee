// Package provider serves container documents from a directory and keeps
// them current as files change.
package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gyaneshwarpardhi/tagmanager/internal/config"
	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/metrics"
)

// Store holds the validated container documents found in a directory
// (*.json, *.yaml, *.yml), keyed by containerId.
type Store struct {
	dir      string
	logger   *slog.Logger
	mu       sync.RWMutex
	docs     map[string]*container.Doc
	onChange []func(ids []string)
}

// NewStore creates a Store and performs the initial load. Invalid documents
// are logged and left out; an unreadable directory is an error.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: dir, logger: logger, docs: make(map[string]*container.Doc)}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the document for id.
func (s *Store) Get(id string) (*container.Doc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	return d, ok
}

// IDs returns the loaded container ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for id := range s.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OnChange registers a callback invoked after every reload.
func (s *Store) OnChange(fn func(ids []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload re-reads the directory. A document that fails validation keeps its
// previously loaded version, if any. It returns the number of containers
// now served.
func (s *Store) Reload() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read containers dir %s: %w", s.dir, err)
	}

	s.mu.RLock()
	prev := s.docs
	s.mu.RUnlock()

	next := make(map[string]*container.Doc, len(entries))
	source := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isContainerFile(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		doc, err := readDoc(path)
		if err != nil {
			s.logger.Warn("container document skipped", "path", path, "err", err)
			if old, ok := prev[idFromFile(e.Name())]; ok {
				next[old.ContainerID] = old
			}
			continue
		}
		if first, dup := source[doc.ContainerID]; dup {
			s.logger.Warn("duplicate containerId, keeping first", "container_id", doc.ContainerID, "path", path, "first", first)
			continue
		}
		source[doc.ContainerID] = path
		next[doc.ContainerID] = doc
	}

	s.mu.Lock()
	s.docs = next
	callbacks := make([]func([]string), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	metrics.ContainersLoaded.Set(float64(len(next)))
	ids := s.IDs()
	for _, fn := range callbacks {
		fn(ids)
	}
	return len(next), nil
}

// Watch hot-reloads the store on directory changes until stop is called.
func (s *Store) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("containers watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("containers watcher add %s: %w", s.dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isContainerFile(ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					n, err := s.Reload()
					if err != nil {
						s.logger.Warn("containers reload failed", "err", err)
						continue
					}
					s.logger.Info("containers reloaded", "count", n, "trigger", ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("containers watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

func readDoc(path string) (*container.Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := config.ReadDoc(path, data)
	if err != nil {
		return nil, err
	}
	if err := container.Validate(doc); err != nil {
		return nil, err
	}
	if doc.ContainerID != idFromFile(filepath.Base(path)) {
		return nil, errors.New("containerId does not match file name")
	}
	return doc, nil
}

func isContainerFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func idFromFile(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
