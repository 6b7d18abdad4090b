package assets

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeFetcher struct {
	data string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.data)), nil
}

func newTestManager(t *testing.T, fetcher Fetcher, maxBytes int64) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), maxBytes, fetcher)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestStagePromoteDiscard(t *testing.T) {
	m := newTestManager(t, &fakeFetcher{data: "jpegbytes"}, 0)

	ref, err := m.Stage(context.Background(), 42, "file-1")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !strings.HasPrefix(ref, "staging") {
		t.Fatalf("expected staging ref, got %s", ref)
	}
	if !strings.Contains(ref, "42_podcast_") {
		t.Fatalf("ref not scoped to owner: %s", ref)
	}
	if _, err := os.Stat(m.Path(ref)); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	pub, err := m.Promote(ref)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !strings.HasPrefix(pub, "public") {
		t.Fatalf("expected public ref, got %s", pub)
	}
	if _, err := os.Stat(m.Path(ref)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("staged file must be gone after promote")
	}
	data, err := os.ReadFile(m.Path(pub))
	if err != nil || string(data) != "jpegbytes" {
		t.Fatalf("promoted content: %q %v", data, err)
	}

	// Promoting a public ref must fail.
	if _, err := m.Promote(pub); err == nil {
		t.Fatal("promote of non-staged ref must fail")
	}
}

func TestDiscardIsIdempotent(t *testing.T) {
	m := newTestManager(t, &fakeFetcher{data: "x"}, 0)

	ref, err := m.Stage(context.Background(), 7, "file-1")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := m.Discard(ref); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if err := m.Discard(ref); err != nil {
		t.Fatalf("second discard: %v", err)
	}
	if err := m.Discard(""); err != nil {
		t.Fatalf("empty discard: %v", err)
	}
}

func TestStageEnforcesSizeLimit(t *testing.T) {
	m := newTestManager(t, &fakeFetcher{data: strings.Repeat("a", 100)}, 10)

	if _, err := m.Stage(context.Background(), 1, "big"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	// Nothing left behind.
	entries, err := os.ReadDir(filepath.Join(m.dir, "staging"))
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("oversized upload left residue: %d files", len(entries))
	}
}

func TestPruneStagingSkipsPublic(t *testing.T) {
	m := newTestManager(t, &fakeFetcher{data: "x"}, 0)

	staged, err := m.Stage(context.Background(), 1, "f")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	promotedSrc, err := m.Stage(context.Background(), 2, "f")
	if err != nil {
		t.Fatalf("stage second: %v", err)
	}
	pub, err := m.Promote(promotedSrc)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}

	removed, err := m.PruneStaging(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(m.Path(staged)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("stale staged file must be pruned")
	}
	if _, err := os.Stat(m.Path(pub)); err != nil {
		t.Fatalf("promoted file must survive prune: %v", err)
	}
}
