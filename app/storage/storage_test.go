package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.up.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migration files found")
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("apply %s: %v", f, err)
		}
	}
	return New(db)
}

func TestSessionPutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Sessions.Get(ctx, 42, "podcast"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	sess := &Session{AdminID: 42, Kind: "podcast", Step: "title", Payload: []byte(`{"title":"hi"}`)}
	if err := s.Sessions.Put(ctx, sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Sessions.Get(ctx, 42, "podcast")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Step != "title" || string(got.Payload) != `{"title":"hi"}` {
		t.Fatalf("unexpected session: %+v", got)
	}

	// Replacement overwrites wholesale.
	sess.Step = "content"
	sess.Payload = []byte(`{"title":"hi","content":"body"}`)
	sess.UpdatedAt = time.Now().Unix() + 1
	if err := s.Sessions.Put(ctx, sess); err != nil {
		t.Fatalf("put replace: %v", err)
	}
	got, err = s.Sessions.Get(ctx, 42, "podcast")
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if got.Step != "content" {
		t.Fatalf("expected step content, got %s", got.Step)
	}

	if err := s.Sessions.Delete(ctx, 42, "podcast"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Sessions.Get(ctx, 42, "podcast"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting again is fine.
	if err := s.Sessions.Delete(ctx, 42, "podcast"); err != nil {
		t.Fatalf("double delete: %v", err)
	}
}

func TestSessionGetActivePrefersNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &Session{AdminID: 7, Kind: "admin", Step: "await_id", UpdatedAt: 100}
	fresh := &Session{AdminID: 7, Kind: "podcast", Step: "title", UpdatedAt: 200}
	if err := s.Sessions.Put(ctx, old); err != nil {
		t.Fatalf("put old: %v", err)
	}
	if err := s.Sessions.Put(ctx, fresh); err != nil {
		t.Fatalf("put fresh: %v", err)
	}

	got, err := s.Sessions.GetActive(ctx, 7)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.Kind != "podcast" {
		t.Fatalf("expected podcast session, got %s", got.Kind)
	}
}

func TestSessionDeleteStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Sessions.Put(ctx, &Session{AdminID: 1, Kind: "podcast", Step: "title", UpdatedAt: 50})
	_ = s.Sessions.Put(ctx, &Session{AdminID: 2, Kind: "podcast", Step: "title", UpdatedAt: 500})

	n, err := s.Sessions.DeleteStale(ctx, 100)
	if err != nil {
		t.Fatalf("delete stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if _, err := s.Sessions.Get(ctx, 2, "podcast"); err != nil {
		t.Fatalf("fresh session must survive: %v", err)
	}
}

func TestUserUpsertKeepsAuthKeyAndReferrer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &User{ID: 10, Username: "alice", FirstName: "Alice", AuthKey: "k1", ReferrerID: 99}
	if err := s.Users.Upsert(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Second contact with new profile data and a different key must not
	// rotate the stored key or referrer.
	again := &User{ID: 10, Username: "alice2", FirstName: "Alice", AuthKey: "k2", ReferrerID: 0}
	if err := s.Users.Upsert(ctx, again); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := s.Users.Get(ctx, 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AuthKey != "k1" {
		t.Fatalf("auth key rotated: %s", got.AuthKey)
	}
	if got.ReferrerID != 99 {
		t.Fatalf("referrer overwritten: %d", got.ReferrerID)
	}
	if got.Username != "alice2" {
		t.Fatalf("username not refreshed: %s", got.Username)
	}
}

func TestUserListIDsActiveSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []User{
		{ID: 3, AuthKey: "a", LastSeenAt: 100, CreatedAt: 1},
		{ID: 1, AuthKey: "b", LastSeenAt: 300, CreatedAt: 1},
		{ID: 2, AuthKey: "c", LastSeenAt: 200, CreatedAt: 1},
	}
	for i := range seed {
		if err := s.Users.Upsert(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := s.Users.ListIDs(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0] != 1 || all[1] != 2 || all[2] != 3 {
		t.Fatalf("unexpected order: %v", all)
	}

	recent, err := s.Users.ListIDs(ctx, 200)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent, got %v", recent)
	}

	n, err := s.Users.CountActiveSince(ctx, 250)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 active, got %d", n)
	}
}

func TestAdminRolesAndGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Admins.EnsurePrimary(ctx, 1000); err != nil {
		t.Fatalf("ensure primary: %v", err)
	}
	// Idempotent.
	if err := s.Admins.EnsurePrimary(ctx, 1000); err != nil {
		t.Fatalf("ensure primary twice: %v", err)
	}

	if err := s.Admins.Add(ctx, 2000, 1000); err != nil {
		t.Fatalf("add delegated: %v", err)
	}
	// Adding the primary again must not demote it.
	if err := s.Admins.Add(ctx, 1000, 1000); err != nil {
		t.Fatalf("re-add primary: %v", err)
	}
	if ok, _ := s.Admins.IsPrimary(ctx, 1000); !ok {
		t.Fatal("primary demoted by Add")
	}

	ok, err := s.Admins.IsAdmin(ctx, 2000)
	if err != nil || !ok {
		t.Fatalf("delegated not admin: %v %v", ok, err)
	}
	if ok, _ := s.Admins.IsPrimary(ctx, 2000); ok {
		t.Fatal("delegated reported primary")
	}
	if ok, _ := s.Admins.IsAdmin(ctx, 3000); ok {
		t.Fatal("stranger reported admin")
	}

	if err := s.Admins.Remove(ctx, 1000); !errors.Is(err, ErrPrimaryImmutable) {
		t.Fatalf("expected ErrPrimaryImmutable, got %v", err)
	}
	if err := s.Admins.Remove(ctx, 2000); err != nil {
		t.Fatalf("remove delegated: %v", err)
	}
	if ok, _ := s.Admins.IsAdmin(ctx, 2000); ok {
		t.Fatal("delegated still admin after remove")
	}
}

func TestPodcastInsertAndTally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Podcast{
		AuthorID: 1000,
		Title:    "Launch",
		Content:  "We are live",
		Target:   "all",
	}
	if err := s.Podcasts.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if p.ID == "" {
		t.Fatal("id not assigned")
	}

	if err := s.Podcasts.MarkSent(ctx, p.ID, 10, 10, 2); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	got, err := s.Podcasts.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != PodcastStatusSent || got.Attempted != 10 || got.Failed != 2 {
		t.Fatalf("unexpected tally: %+v", got)
	}

	n, err := s.Podcasts.CountSent(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count sent: %d %v", n, err)
	}
}

func TestSettingsSetManyAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Settings.Get(ctx, SettingFirebaseURL); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	err := s.Settings.SetMany(ctx, map[string]string{
		SettingFirebaseURL:    "https://db.example.com",
		SettingFirebaseSecret: "s3cr3t",
		SettingMiniAppURL:     "https://app.example.com",
	}, 100)
	if err != nil {
		t.Fatalf("set many: %v", err)
	}

	all, err := s.Settings.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 || all[SettingMiniAppURL] != "https://app.example.com" {
		t.Fatalf("unexpected settings: %v", all)
	}

	// Overwrite a single key as a different admin.
	if err := s.Settings.SetMany(ctx, map[string]string{SettingMiniAppURL: "https://app2.example.com"}, 200); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := s.Settings.Get(ctx, SettingMiniAppURL)
	if err != nil || v != "https://app2.example.com" {
		t.Fatalf("get after overwrite: %s %v", v, err)
	}

	// Each row remembers who last touched it.
	by, err := s.Settings.UpdatedBy(ctx, SettingMiniAppURL)
	if err != nil || by != 200 {
		t.Fatalf("updated_by after overwrite: %d %v", by, err)
	}
	by, err = s.Settings.UpdatedBy(ctx, SettingFirebaseURL)
	if err != nil || by != 100 {
		t.Fatalf("updated_by untouched key: %d %v", by, err)
	}
}

func TestActivityJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 7; i++ {
		if err := s.Activity.Record(ctx, i, "start"); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, err := s.Activity.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(recent))
	}
	for _, e := range recent {
		if e.ID == "" || e.Action != "start" || e.CreatedAt == 0 {
			t.Fatalf("malformed entry: %+v", e)
		}
	}

	// Nothing is old enough to prune yet.
	n, err := s.Activity.DeleteBefore(ctx, time.Now().Add(-time.Hour).Unix())
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 pruned, got %d", n)
	}

	n, err = s.Activity.DeleteBefore(ctx, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 pruned, got %d", n)
	}
}
