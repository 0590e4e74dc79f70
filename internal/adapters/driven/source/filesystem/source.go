// Package filesystem provides a DocumentSource over a directory of
// plain-text research papers.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quaero-cli/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.DocumentSource = (*Source)(nil)

// textExtensions are the file types treated as ingestible documents.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Source reads documents from a directory tree. Document IDs are the
// file names without extension, so two files with the same base name in
// different subdirectories collide; the first one in walk order wins.
type Source struct {
	rootPath string
}

// New creates a filesystem source rooted at rootPath.
func New(rootPath string) *Source {
	return &Source{rootPath: rootPath}
}

// List returns the IDs of every text document under the root.
func (s *Source) List(ctx context.Context) ([]string, error) {
	paths, err := s.collectPaths(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		id := domain.DocumentIDFromPath(path)
		if seen[id] {
			logger.Warn("duplicate document ID %q, keeping first occurrence", id)
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Fetch reads one document by ID.
func (s *Source) Fetch(ctx context.Context, id string) (*domain.Document, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}

	return &domain.Document{
		ID:        id,
		Text:      normaliseText(string(data)),
		Metadata:  domain.Metadata{Extra: map[string]any{"source_path": path}},
		CreatedAt: info.ModTime(),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Watch reports document IDs as files appear or change under the root.
// Write bursts are debounced so a file being copied in emits one event.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	// Watch every directory in the tree; fsnotify is not recursive.
	err = filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", s.rootPath, err)
	}

	out := make(chan string)
	go s.watchLoop(ctx, watcher, out)
	return out, nil
}

func (s *Source) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- string) {
	defer close(out)
	defer watcher.Close()

	debounce := make(map[string]*time.Timer)
	pending := make(chan string)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				// New subdirectories need their own watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("watching new directory %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !textExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}

			name := event.Name
			if timer, exists := debounce[name]; exists {
				timer.Stop()
			}
			debounce[name] = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case pending <- name:
				case <-ctx.Done():
				}
			})

		case name := <-pending:
			delete(debounce, name)
			select {
			case out <- domain.DocumentIDFromPath(name):
			case <-ctx.Done():
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error: %v", err)
		}
	}
}

// collectPaths walks the root and returns every text file path.
func (s *Source) collectPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.rootPath {
				return filepath.SkipDir
			}
			return nil
		}
		if textExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.rootPath, err)
	}
	return paths, nil
}

// resolve maps a document ID back to its file path.
func (s *Source) resolve(ctx context.Context, id string) (string, error) {
	paths, err := s.collectPaths(ctx)
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		if domain.DocumentIDFromPath(path) == id {
			return path, nil
		}
	}
	return "", fmt.Errorf("document %q: %w", id, domain.ErrNotFound)
}

// normaliseText collapses Windows line endings and trims the document.
func normaliseText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
