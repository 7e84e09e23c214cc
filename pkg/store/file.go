package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/errors"
)

// FileStore is a file-based snapshot store for CLI use. Snapshots are
// stored as JSON files, one directory per document.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based snapshot store.
// If baseDir is empty, defaults to ~/.config/svgpress/snapshots/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "get home dir")
		}
		baseDir = filepath.Join(home, ".config", "svgpress", "snapshots")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "create snapshot dir")
	}
	return &FileStore{baseDir: baseDir}, nil
}

// docDir hashes the document id into a directory name so arbitrary ids
// never hit filesystem naming rules.
func (s *FileStore) docDir(docID string) string {
	return filepath.Join(s.baseDir, cache.Hash([]byte(docID))[:16])
}

func (s *FileStore) snapPath(docID, id string) string {
	return filepath.Join(s.docDir(docID), id+".json")
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.docDir(snap.DocID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "create snapshot dir")
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "marshal snapshot")
	}
	// Write-then-rename keeps readers from observing partial snapshots.
	tmp, err := os.CreateTemp(dir, ".snap-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "write snapshot")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "write snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "write snapshot")
	}
	if err := os.Rename(tmp.Name(), s.snapPath(snap.DocID, snap.ID)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "write snapshot")
	}
	return nil
}

// Get implements Store. It scans document directories since the id alone
// does not determine the path.
func (s *FileStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "read snapshot dir")
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(s.baseDir, d.Name(), id+".json")
		snap, err := readSnapshot(path)
		if err == nil {
			return snap, nil
		}
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "read snapshot %s", id)
		}
	}
	return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %s not found", id)
}

// Latest implements Store.
func (s *FileStore) Latest(ctx context.Context, docID string) (*Snapshot, error) {
	snaps, err := s.List(ctx, docID)
	if err != nil {
		return nil, err
	}
	return snaps[0], nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, docID string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.docDir(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshots for document %s", docID)
		}
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "read snapshot dir")
	}

	var snaps []*Snapshot
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		snap, err := readSnapshot(filepath.Join(s.docDir(docID), e.Name()))
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	if len(snaps) == 0 {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshots for document %s", docID)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	return snaps, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirs, err := os.ReadDir(s.baseDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "read snapshot dir")
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(s.baseDir, d.Name(), id+".json")
		if err := os.Remove(path); err == nil {
			return nil
		} else if !os.IsNotExist(err) {
			return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "delete snapshot %s", id)
		}
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close(ctx context.Context) error { return nil }

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
