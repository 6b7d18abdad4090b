package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coresuz/tangabot/core/logger"
)

// Fetcher downloads the raw bytes of an uploaded file by its transport id.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Manager owns wizard image files. A staged file lives under
// <dir>/staging until the owning wizard commits; Promote moves it to
// <dir>/public, Discard removes it. File names carry the owner id and
// a timestamp so cleanup for one session can never touch another
// owner's asset.
type Manager struct {
	dir      string
	maxBytes int64
	fetcher  Fetcher
	now      func() time.Time
}

// NewManager creates the staging and public directories under dir.
func NewManager(dir string, maxBytes int64, fetcher Fetcher) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("assets: empty dir")
	}
	for _, sub := range []string{"staging", "public"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("assets: mkdir %s: %w", sub, err)
		}
	}
	return &Manager{dir: dir, maxBytes: maxBytes, fetcher: fetcher, now: time.Now}, nil
}

// ErrTooLarge is returned when an upload exceeds the configured bound.
var ErrTooLarge = errors.New("assets: image exceeds size limit")

// Stage downloads the upload into the staging area and returns its
// reference (a path relative to the asset root).
func (m *Manager) Stage(ctx context.Context, ownerID int64, fileID string) (string, error) {
	if m.fetcher == nil {
		return "", errors.New("assets: no fetcher configured")
	}
	src, err := m.fetcher.Fetch(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("assets: fetch: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%d_podcast_%d.jpg", ownerID, m.now().Unix())
	ref := filepath.Join("staging", name)
	full := filepath.Join(m.dir, ref)

	dst, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("assets: create: %w", err)
	}

	var reader io.Reader = src
	if m.maxBytes > 0 {
		reader = io.LimitReader(src, m.maxBytes+1)
	}
	n, err := io.Copy(dst, reader)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("assets: write: %w", err)
	}
	if m.maxBytes > 0 && n > m.maxBytes {
		_ = os.Remove(full)
		return "", ErrTooLarge
	}

	logger.AST.Debug("asset staged",
		slog.String("event", "asset.staged"),
		slog.Int64("user_id", ownerID),
		slog.String("asset", ref),
		slog.Int64("bytes", n),
	)
	return ref, nil
}

// Promote moves a staged asset into the public area, making it durable
// beyond session lifetime. Returns the new reference.
func (m *Manager) Promote(ref string) (string, error) {
	if !strings.HasPrefix(ref, "staging"+string(filepath.Separator)) && !strings.HasPrefix(ref, "staging/") {
		return "", fmt.Errorf("assets: %q is not a staged reference", ref)
	}
	name := filepath.Base(ref)
	newRef := filepath.Join("public", name)
	if err := os.Rename(filepath.Join(m.dir, ref), filepath.Join(m.dir, newRef)); err != nil {
		return "", fmt.Errorf("assets: promote: %w", err)
	}
	logger.AST.Debug("asset promoted",
		slog.String("event", "asset.promoted"),
		slog.String("asset", newRef),
	)
	return newRef, nil
}

// Discard removes a staged asset. A missing file is not an error so
// cancel paths can call it unconditionally.
func (m *Manager) Discard(ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(filepath.Join(m.dir, ref))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets: discard: %w", err)
	}
	logger.AST.Debug("asset discarded",
		slog.String("event", "asset.discarded"),
		slog.String("asset", ref),
	)
	return nil
}

// Path returns the absolute filesystem path for a reference.
func (m *Manager) Path(ref string) string {
	return filepath.Join(m.dir, ref)
}

// PruneStaging removes staged files older than cutoff. Promoted assets
// are never touched. Returns the number of files removed.
func (m *Manager) PruneStaging(cutoff time.Time) (int, error) {
	dir := filepath.Join(m.dir, "staging")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("assets: prune: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
