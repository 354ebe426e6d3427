// Package bytestore implements the opaque-ID byte store contract backing
// media blobs. Callers hold IDs only; bytes are touched just for waveform
// decoding and playback.
package bytestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when an ID has no stored bytes (or they were
// evicted). Callers treat this as recoverable and fall back to transient
// in-memory references where possible.
var ErrNotFound = errors.New("bytestore: id not found")

// Usage reports occupancy against the configured limit.
type Usage struct {
	UsedBytes  int64 `json:"usedBytes"`
	TotalBytes int64 `json:"totalBytes"`
}

// Store is the byte store contract.
type Store interface {
	Store(data []byte) (string, error)
	Retrieve(id string) ([]byte, error)
	Delete(id string) error
	Usage() (Usage, error)
	SetLimit(bytes int64) error
}

// DiskStore keeps each blob as one file named by its ID. Exceeding the
// limit evicts oldest blobs first.
type DiskStore struct {
	mu    sync.Mutex
	log   zerolog.Logger
	dir   string
	limit int64
}

// NewDiskStore creates the backing directory if needed.
func NewDiskStore(log zerolog.Logger, dir string, limit int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &DiskStore{
		log:   log.With().Str("component", "bytestore").Logger(),
		dir:   dir,
		limit: limit,
	}, nil
}

// Store writes the blob and returns its opaque ID.
func (s *DiskStore) Store(data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	if err := os.WriteFile(s.path(id), data, 0644); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	if err := s.evictLocked(); err != nil {
		s.log.Warn().Err(err).Msg("eviction failed")
	}
	return id, nil
}

// Retrieve reads a blob back, or ErrNotFound.
func (s *DiskStore) Retrieve(id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing ID is a no-op.
func (s *DiskStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	return nil
}

// Usage sums stored blob sizes against the limit.
func (s *DiskStore) Usage() (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used, _, err := s.scanLocked()
	if err != nil {
		return Usage{}, err
	}
	return Usage{UsedBytes: used, TotalBytes: s.limit}, nil
}

// SetLimit changes the cap and evicts immediately if now over it.
func (s *DiskStore) SetLimit(bytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = bytes
	return s.evictLocked()
}

func (s *DiskStore) path(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+".bin")
}

type blobInfo struct {
	path string
	size int64
	mod  int64
}

func (s *DiskStore) scanLocked() (int64, []blobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to scan store: %w", err)
	}
	var total int64
	var blobs []blobInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bin" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		blobs = append(blobs, blobInfo{
			path: filepath.Join(s.dir, e.Name()),
			size: info.Size(),
			mod:  info.ModTime().UnixNano(),
		})
	}
	return total, blobs, nil
}

// evictLocked drops oldest blobs until usage fits the limit. A limit of
// zero means unlimited.
func (s *DiskStore) evictLocked() error {
	if s.limit <= 0 {
		return nil
	}
	total, blobs, err := s.scanLocked()
	if err != nil {
		return err
	}
	if total <= s.limit {
		return nil
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].mod < blobs[j].mod })
	for _, b := range blobs {
		if total <= s.limit {
			break
		}
		if err := os.Remove(b.path); err != nil {
			s.log.Warn().Err(err).Str("path", b.path).Msg("failed to evict blob")
			continue
		}
		total -= b.size
		s.log.Info().Str("path", filepath.Base(b.path)).Int64("size", b.size).Msg("evicted blob")
	}
	return nil
}
