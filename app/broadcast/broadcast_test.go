package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDirectory struct {
	users map[int64]int64 // id -> last seen
	err   error
}

func (f *fakeDirectory) ListIDs(_ context.Context, activeSince int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []int64
	for id, seen := range f.users {
		if activeSince == 0 || seen >= activeSince {
			out = append(out, id)
		}
	}
	return out, nil
}

func TestResolveRecentDayWindow(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	dir := &fakeDirectory{users: map[int64]int64{
		1: now.Unix(),          // just now
		2: now.Unix() - 86400,  // exactly on the boundary, included
		3: now.Unix() - 86401,  // one second too old
		4: now.Unix() - 604800, // a week ago
	}}
	r := NewResolver(dir)
	r.now = func() time.Time { return now }

	ids, err := r.Resolve(context.Background(), TargetLastDay, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := make(map[int64]bool, len(ids))
	for _, id := range ids {
		got[id] = true
	}
	if !got[1] || !got[2] {
		t.Fatalf("recent users missing: %v", ids)
	}
	if got[3] || got[4] {
		t.Fatalf("stale users included: %v", ids)
	}
}

func TestResolveSelectors(t *testing.T) {
	now := time.Unix(10_000_000, 0)
	dir := &fakeDirectory{users: map[int64]int64{
		1: now.Unix(),
		2: now.Unix() - 100000,  // within week and month
		3: now.Unix() - 1000000, // within month only
		4: now.Unix() - 9000000, // beyond all windows
	}}
	r := NewResolver(dir)
	r.now = func() time.Time { return now }

	cases := []struct {
		selector string
		want     int
	}{
		{TargetAll, 4},
		{TargetLastDay, 1},
		{TargetLastWeek, 2},
		{TargetLastMonth, 3},
	}
	for _, tc := range cases {
		ids, err := r.Resolve(context.Background(), tc.selector, 0)
		if err != nil {
			t.Fatalf("%s: %v", tc.selector, err)
		}
		if len(ids) != tc.want {
			t.Fatalf("%s: expected %d recipients, got %v", tc.selector, tc.want, ids)
		}
	}
}

func TestResolveSpecificSkipsExistenceCheck(t *testing.T) {
	r := NewResolver(&fakeDirectory{users: map[int64]int64{}})
	ids, err := r.Resolve(context.Background(), TargetSpecific, 12345)
	if err != nil {
		t.Fatalf("resolve specific: %v", err)
	}
	if len(ids) != 1 || ids[0] != 12345 {
		t.Fatalf("expected singleton [12345], got %v", ids)
	}

	if _, err := r.Resolve(context.Background(), TargetSpecific, 0); err == nil {
		t.Fatal("specific without id must fail")
	}
	if _, err := r.Resolve(context.Background(), "bogus", 0); err == nil {
		t.Fatal("unknown selector must fail")
	}
}

type fakeSender struct {
	sent    []int64
	photos  []int64
	failFor map[int64]error
}

func (f *fakeSender) SendText(_ context.Context, recipient int64, _ string, _ *Button) error {
	if err := f.failFor[recipient]; err != nil {
		return err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func (f *fakeSender) SendPhoto(_ context.Context, recipient int64, _, _ string, _ *Button) error {
	if err := f.failFor[recipient]; err != nil {
		return err
	}
	f.photos = append(f.photos, recipient)
	return nil
}

func TestDispatchIsolatesFailures(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]error{3: errors.New("blocked")}}
	d := NewDispatcher(sender, 0)

	recipients := []int64{1, 2, 3, 4, 5}
	tally := d.Dispatch(context.Background(), Message{Text: "hello"}, recipients)

	if tally.Attempted != 5 {
		t.Fatalf("expected 5 attempts, got %d", tally.Attempted)
	}
	if tally.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", tally.Failed)
	}
	if len(sender.sent) != 4 {
		t.Fatalf("expected 4 deliveries, got %v", sender.sent)
	}
}

func TestDispatchChoosesPhotoWhenImageSet(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 0)

	d.Dispatch(context.Background(), Message{Text: "caption", ImagePath: "/tmp/a.jpg"}, []int64{7})
	if len(sender.photos) != 1 || len(sender.sent) != 0 {
		t.Fatalf("expected photo delivery, got sent=%v photos=%v", sender.sent, sender.photos)
	}

	d.Dispatch(context.Background(), Message{Text: "plain"}, []int64{7})
	if len(sender.sent) != 1 {
		t.Fatalf("expected text delivery, got %v", sender.sent)
	}
}

func TestDispatchStopsOnCancelledContext(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tally := d.Dispatch(ctx, Message{Text: "x"}, []int64{1, 2, 3})
	if tally.Attempted != 0 {
		t.Fatalf("cancelled run must not attempt, got %d", tally.Attempted)
	}
}
