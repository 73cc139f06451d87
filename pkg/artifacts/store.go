// Package artifacts implements the temporary report store: rendered PDFs
// are persisted under unguessable tokens, stay retrievable until their
// TTL elapses (or until first download in single-use mode), and are
// reclaimed best-effort afterwards. The backing medium is a plain
// directory; there is no database.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dataSuffix = ".pdf"
	metaSuffix = ".json"
	tmpSuffix  = ".tmp"
)

// Metadata describes a stored artifact beyond its raw bytes.
type Metadata struct {
	CreatedAt time.Time
	Filename  string
	Size      int64
}

// sidecarRecord is the on-disk companion of each artifact. The creation
// timestamp lives here, not in filesystem metadata: mtime gets rewritten
// by backups and copies, which would silently stretch or shrink the TTL.
type sidecarRecord struct {
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size"`
}

// Store is the storage contract consumed by the HTTP surface.
type Store interface {
	// Write persists data under a fresh token and returns the token. The
	// artifact is durable and visible before Write returns.
	Write(ctx context.Context, data []byte, meta Metadata) (string, error)
	// Read returns the bytes and metadata of a live artifact. Malformed
	// tokens fail with ErrInvalidToken before any I/O; absent, expired
	// and consumed artifacts all fail with ErrNotFound.
	Read(ctx context.Context, token string) ([]byte, Metadata, error)
	// ReclaimExpired deletes artifacts older than the TTL. Per-artifact
	// failures are aggregated into the result, never returned as the
	// error; the error covers only a failure to enumerate at all.
	ReclaimExpired(ctx context.Context) (ReclaimResult, error)
}

// ReclaimResult reports the outcome of one sweep.
type ReclaimResult struct {
	Scanned  int
	Removed  int
	Failures []ReclaimFailure
}

// ReclaimFailure records one artifact a sweep could not remove.
type ReclaimFailure struct {
	Token string
	Err   error
}

// StoreConfig carries the settings the store reads. It is built once at
// startup and injected; the store never consults the environment itself.
type StoreConfig struct {
	// Dir is the backing directory, created if absent.
	Dir string
	// TTL is how long an artifact stays retrievable after creation.
	TTL time.Duration
	// SingleUse deletes each artifact after its first successful read.
	SingleUse bool
}

// FileStore is the directory-backed Store implementation. Writes are
// atomic (temp file plus rename), so a reader observes either the
// complete artifact or nothing. Distinct tokens are independent files;
// no in-process lock is held across operations.
type FileStore struct {
	dir       string
	ttl       time.Duration
	singleUse bool
	logger    *slog.Logger

	now func() time.Time // injected by tests
}

// NewFileStore creates the store and ensures the backing directory
// exists. A nil logger falls back to slog.Default.
func NewFileStore(cfg StoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("artifact store: directory not configured")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("artifact store: TTL must be positive, got %s", cfg.TTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{
		dir:       cfg.Dir,
		ttl:       cfg.TTL,
		singleUse: cfg.SingleUse,
		logger:    logger,
		now:       time.Now,
	}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Write(ctx context.Context, data []byte, meta Metadata) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", &StorageError{Op: "write", Err: err}
	}

	token := NewToken()
	if err := writeFileAtomic(s.dataPath(token), data); err != nil {
		return "", &StorageError{Op: "write", Token: token, Err: err}
	}

	rec := sidecarRecord{
		CreatedAt: s.now().Unix(),
		Filename:  meta.Filename,
		Size:      int64(len(data)),
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		_ = os.Remove(s.dataPath(token))
		return "", &StorageError{Op: "write", Token: token, Err: err}
	}
	// The sidecar lands last: it is the visibility anchor, so a reader
	// never finds it without the complete data file already in place.
	if err := writeFileAtomic(s.metaPath(token), buf); err != nil {
		_ = os.Remove(s.dataPath(token))
		return "", &StorageError{Op: "write", Token: token, Err: err}
	}
	return token, nil
}

func (s *FileStore) Read(ctx context.Context, token string) ([]byte, Metadata, error) {
	if err := ValidateToken(token); err != nil {
		return nil, Metadata{}, err
	}

	rec, err := s.readSidecar(token)
	if err != nil {
		return nil, Metadata{}, err
	}
	meta := Metadata{
		CreatedAt: time.Unix(rec.CreatedAt, 0),
		Filename:  rec.Filename,
		Size:      rec.Size,
	}

	if s.now().Sub(meta.CreatedAt) > s.ttl {
		// Expired but not yet swept. Callers must not see it; removing
		// it now also keeps the next sweep shorter.
		if err := s.remove(token); err != nil {
			s.logger.Warn("failed to remove expired artifact", "token", token, "error", err)
		}
		return nil, Metadata{}, ErrNotFound
	}

	data, err := os.ReadFile(s.dataPath(token))
	if err != nil {
		if os.IsNotExist(err) {
			// Lost the race against a reclaim or a single-use delete.
			return nil, Metadata{}, ErrNotFound
		}
		return nil, Metadata{}, &StorageError{Op: "read", Token: token, Err: err}
	}

	if s.singleUse {
		if err := s.remove(token); err != nil {
			// The read already succeeded; the caller still gets bytes.
			s.logger.Warn("single-use delete failed", "token", token, "error", err)
		}
	}
	return data, meta, nil
}

func (s *FileStore) ReclaimExpired(ctx context.Context) (ReclaimResult, error) {
	var res ReclaimResult
	if err := s.ensureDir(); err != nil {
		return res, &StorageError{Op: "reclaim", Err: err}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return res, &StorageError{Op: "reclaim", Err: err}
	}
	now := s.now()

	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		token := strings.TrimSuffix(name, metaSuffix)
		if ValidateToken(token) != nil {
			// Not one of ours; leave foreign files alone.
			continue
		}
		res.Scanned++

		rec, err := s.readSidecar(token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Vanished between ReadDir and here; nothing to do.
				continue
			}
			res.Failures = append(res.Failures, ReclaimFailure{Token: token, Err: err})
			continue
		}
		if now.Sub(time.Unix(rec.CreatedAt, 0)) <= s.ttl {
			continue
		}
		if err := s.remove(token); err != nil {
			res.Failures = append(res.Failures, ReclaimFailure{Token: token, Err: err})
			continue
		}
		res.Removed++
	}

	s.removeResidue(entries, now, &res)
	return res, nil
}

// removeResidue clears crash leftovers: data files whose sidecar never
// landed, and stale temp files. Ageing these by mtime is acceptable
// since they are invisible to readers either way.
func (s *FileStore) removeResidue(entries []os.DirEntry, now time.Time, res *ReclaimResult) {
	for _, ent := range entries {
		name := ent.Name()
		switch {
		case strings.HasSuffix(name, tmpSuffix):
		case strings.HasSuffix(name, dataSuffix):
			token := strings.TrimSuffix(name, dataSuffix)
			if ValidateToken(token) != nil {
				continue
			}
			if _, err := os.Stat(s.metaPath(token)); err == nil {
				continue // anchored; the sidecar pass owns it
			}
		default:
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= s.ttl {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			res.Failures = append(res.Failures, ReclaimFailure{Token: name, Err: err})
		}
	}
}

func (s *FileStore) readSidecar(token string) (sidecarRecord, error) {
	var rec sidecarRecord
	buf, err := os.ReadFile(s.metaPath(token))
	if err != nil {
		if os.IsNotExist(err) {
			return rec, ErrNotFound
		}
		return rec, &StorageError{Op: "read", Token: token, Err: err}
	}
	if err := json.Unmarshal(buf, &rec); err != nil {
		return rec, &StorageError{Op: "read", Token: token, Err: fmt.Errorf("corrupt sidecar: %w", err)}
	}
	return rec, nil
}

// remove deletes an artifact's files, data first so the sidecar anchor
// disappears last. Deleting an already-deleted artifact is not an error.
func (s *FileStore) remove(token string) error {
	if err := os.Remove(s.dataPath(token)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.metaPath(token)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) ensureDir() error {
	//nolint:gosec // G301: 0755 is intentional for the artifact directory
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("ensure artifact dir: %w", err)
	}
	return nil
}

func (s *FileStore) dataPath(token string) string {
	return filepath.Join(s.dir, token+dataSuffix)
}

func (s *FileStore) metaPath(token string) string {
	return filepath.Join(s.dir, token+metaSuffix)
}

// writeFileAtomic writes to a temp name in the same directory and
// renames into place, so the final path never holds partial content.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + tmpSuffix
	//nolint:gosec // G306: 0644 is intentional for served artifact files
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit file: %w", err)
	}
	return nil
}
