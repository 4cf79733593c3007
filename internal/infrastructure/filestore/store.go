package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/muhammadchandra19/tickstore/pkg/dtf"
)

// Ext is the extension of DTF files.
const Ext = ".dtf"

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid file key")

// Store keeps DTF files under a root directory, addressed by slash-separated
// keys. Writes to one path are serialized and land atomically via rename.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("file store root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create file store root: %w", err)
	}
	return &Store{root: abs, locks: make(map[string]*sync.Mutex)}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// Path resolves key to a file path under the root.
func (s *Store) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, clean), nil
}

// Key returns the key of a path under the root.
func (s *Store) Key(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidKey, path, s.root)
	}
	return filepath.ToSlash(rel), nil
}

func (s *Store) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Write stores data under key, replacing any previous content, and returns
// the file path.
func (s *Store) Write(key string, data []byte) (string, error) {
	path, err := s.Path(key)
	if err != nil {
		return "", err
	}
	defer s.lock(path)()

	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Append adds records to the file at key, creating it for symbolCode when it
// does not exist yet. It returns the file path and the new metadata.
func (s *Store) Append(key string, symbolCode uint32, records []dtf.Update, opts ...dtf.EncodeOption) (string, dtf.Metadata, error) {
	path, err := s.Path(key)
	if err != nil {
		return "", dtf.Metadata{}, err
	}
	defer s.lock(path)()

	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		existing = dtf.EncodeEmpty(symbolCode)
	case err != nil:
		return "", dtf.Metadata{}, err
	}

	data, err := dtf.Append(existing, records, opts...)
	if err != nil {
		return "", dtf.Metadata{}, fmt.Errorf("append to %s: %w", key, err)
	}
	meta, err := dtf.ReadMetadata(data)
	if err != nil {
		return "", dtf.Metadata{}, err
	}
	if err := writeAtomic(path, data); err != nil {
		return "", dtf.Metadata{}, err
	}
	return path, meta, nil
}

// Open opens the DTF file at path. Closing the returned file closes the
// underlying os.File.
func (s *Store) Open(path string) (*dtf.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	file, err := dtf.Open(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Scan lists every DTF file under the root in lexical order.
func (s *Store) Scan(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == Ext {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
