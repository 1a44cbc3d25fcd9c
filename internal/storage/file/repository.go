// --- File: internal/storage/file/repository.go ---
// Package file is the reference registry.Repository: the whole registry is a
// single JSON object on disk, mapping each interest to a token or a list of tokens.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

// defaultMode is applied to a newly created document. An existing document
// keeps its own mode across rewrites.
const defaultMode fs.FileMode = 0o644

// DefaultPath is used when no path is configured. It is relative to the
// working directory of the process.
const DefaultPath = "storage/tokens.json"

// document is the in-memory form of the registry file.
type document map[string]registry.Tokens

// Repository persists the registry as one JSON document.
//
// Every call loads the whole file, applies one change and writes the whole
// file back. There is no locking: two writers running at the same time lose
// one of the updates (last writer wins). Wrap the repository with
// registry.Serialized for in-process callers, or keep a single writer process.
type Repository struct {
	path   string
	logger *slog.Logger
}

var _ registry.Repository = (*Repository)(nil)

// NewRepository creates a file repository at path, or DefaultPath when path is empty.
// The file itself is created on first use.
func NewRepository(path string, logger *slog.Logger) *Repository {
	if path == "" {
		path = DefaultPath
	}
	return &Repository{
		path:   path,
		logger: logger.With("component", "FileRepository", "path", path),
	}
}

// Path returns the location of the backing document.
func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) Store(ctx context.Context, interest, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	doc, err := r.load()
	if err != nil {
		return false, err
	}

	doc[interest] = doc[interest].With(token)

	if err := r.save(doc); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	if err := ctx.Err(); err != nil {
		return registry.Tokens{}, false, err
	}
	doc, err := r.load()
	if err != nil {
		return registry.Tokens{}, false, err
	}

	value, found := doc[interest]
	return value, found, nil
}

func (r *Repository) Forget(ctx context.Context, interest, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	doc, err := r.load()
	if err != nil {
		return false, err
	}

	current, found := doc[interest]
	next, change, forgotten := registry.PlanForget(current, found, token)

	switch change {
	case registry.Unchanged:
		return forgotten, nil
	case registry.Replace:
		doc[interest] = next
	case registry.Delete:
		delete(doc, interest)
	}

	if err := r.save(doc); err != nil {
		return false, err
	}
	return forgotten, nil
}

// load reads and parses the whole document, creating an empty one if the
// file does not exist yet.
func (r *Repository) load() (document, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("Token storage file not found, creating it")
		if err := r.create(); err != nil {
			return nil, err
		}
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token storage %s: %w", r.path, err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return document{}, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		r.logger.Error("Token storage file is not a valid registry document", "err", err)
		return nil, fmt.Errorf("%w: %s: %v", registry.ErrCorruptStore, r.path, err)
	}
	if doc == nil {
		doc = document{}
	}
	for interest, value := range doc {
		if value.IsZero() {
			delete(doc, interest)
		}
	}
	return doc, nil
}

func (r *Repository) create() error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create token storage directory %s: %w", dir, err)
		}
	}
	return r.write([]byte("{}"))
}

func (r *Repository) save(doc document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode token storage: %w", err)
	}
	return r.write(raw)
}

// write replaces the file in one step: a sibling temp file renamed over the target.
func (r *Repository) write(contents []byte) error {
	mode := defaultMode
	if info, err := os.Stat(r.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write token storage %s: %w", r.path, err)
	}
	tmpName := tmp.Name()

	// CreateTemp always uses 0600.
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write token storage %s: %w", r.path, err)
	}

	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write token storage %s: %w", r.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write token storage %s: %w", r.path, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace token storage %s: %w", r.path, err)
	}
	return nil
}
