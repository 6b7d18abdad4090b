package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/coresuz/tangabot/app/broadcast"
	"github.com/coresuz/tangabot/app/storage"
)

type sessionKey struct {
	owner int64
	kind  string
}

type fakeSessions struct {
	rows    map[sessionKey]*storage.Session
	seq     int64
	putErr  error
	puts    int
	deletes int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[sessionKey]*storage.Session{}}
}

func (f *fakeSessions) Get(_ context.Context, owner int64, kind string) (*storage.Session, error) {
	s, ok := f.rows[sessionKey{owner, kind}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) GetActive(_ context.Context, owner int64) (*storage.Session, error) {
	var newest *storage.Session
	for k, s := range f.rows {
		if k.owner != owner {
			continue
		}
		if newest == nil || s.UpdatedAt > newest.UpdatedAt {
			newest = s
		}
	}
	if newest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeSessions) Put(_ context.Context, s *storage.Session) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.seq++
	cp := *s
	cp.UpdatedAt = f.seq
	f.rows[sessionKey{s.AdminID, s.Kind}] = &cp
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, owner int64, kind string) error {
	f.deletes++
	delete(f.rows, sessionKey{owner, kind})
	return nil
}

type fakeAdmins struct {
	roles     map[int64]string
	removeErr error
}

func (f *fakeAdmins) IsAdmin(_ context.Context, id int64) (bool, error) {
	_, ok := f.roles[id]
	return ok, nil
}

func (f *fakeAdmins) IsPrimary(_ context.Context, id int64) (bool, error) {
	return f.roles[id] == storage.RolePrimary, nil
}

func (f *fakeAdmins) Add(_ context.Context, id, _ int64) error {
	if _, ok := f.roles[id]; !ok {
		f.roles[id] = storage.RoleDelegated
	}
	return nil
}

func (f *fakeAdmins) Remove(_ context.Context, id int64) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	role, ok := f.roles[id]
	if !ok {
		return storage.ErrNotFound
	}
	if role == storage.RolePrimary {
		return storage.ErrPrimaryImmutable
	}
	delete(f.roles, id)
	return nil
}

type fakeRecords struct {
	inserted  []*storage.Podcast
	insertErr error
	marked    bool
}

func (f *fakeRecords) Insert(_ context.Context, p *storage.Podcast) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("rec-%d", len(f.inserted)+1)
	}
	cp := *p
	f.inserted = append(f.inserted, &cp)
	return nil
}

func (f *fakeRecords) MarkSent(_ context.Context, _ string, _, _, _ int64) error {
	f.marked = true
	return nil
}

type fakeSettings struct {
	values  map[string]string
	actorID int64
}

func (f *fakeSettings) SetMany(_ context.Context, values map[string]string, actorID int64) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	for k, v := range values {
		f.values[k] = v
	}
	f.actorID = actorID
	return nil
}

type fakeAssets struct {
	staged    []string
	discarded []string
	promoted  []string
	stageErr  error
}

func (f *fakeAssets) Stage(_ context.Context, owner int64, fileID string) (string, error) {
	if f.stageErr != nil {
		return "", f.stageErr
	}
	ref := fmt.Sprintf("staging/%d_%s.jpg", owner, fileID)
	f.staged = append(f.staged, ref)
	return ref, nil
}

func (f *fakeAssets) Promote(ref string) (string, error) {
	pub := strings.Replace(ref, "staging/", "public/", 1)
	f.promoted = append(f.promoted, pub)
	return pub, nil
}

func (f *fakeAssets) Discard(ref string) error {
	f.discarded = append(f.discarded, ref)
	return nil
}

func (f *fakeAssets) Path(ref string) string { return "/assets/" + ref }

type fakeResolver struct {
	recipients []int64
	gotTarget  string
	gotID      int64
}

func (f *fakeResolver) Resolve(_ context.Context, selector string, id int64) ([]int64, error) {
	f.gotTarget = selector
	f.gotID = id
	if selector == broadcast.TargetSpecific {
		return []int64{id}, nil
	}
	return f.recipients, nil
}

type fakeDispatch struct {
	msgs  []broadcast.Message
	tally broadcast.Tally
}

func (f *fakeDispatch) Dispatch(_ context.Context, msg broadcast.Message, recipients []int64) broadcast.Tally {
	f.msgs = append(f.msgs, msg)
	if f.tally.Attempted == 0 {
		return broadcast.Tally{Attempted: int64(len(recipients))}
	}
	return f.tally
}

type fakeNotifier struct {
	notices map[int64][]string
}

func (f *fakeNotifier) SendText(_ context.Context, recipient int64, text string, _ *broadcast.Button) error {
	if f.notices == nil {
		f.notices = make(map[int64][]string)
	}
	f.notices[recipient] = append(f.notices[recipient], text)
	return nil
}

type fixture struct {
	engine   *Engine
	sessions *fakeSessions
	admins   *fakeAdmins
	records  *fakeRecords
	settings *fakeSettings
	assets   *fakeAssets
	resolver *fakeResolver
	dispatch *fakeDispatch
	notifier *fakeNotifier
}

func newFixture() *fixture {
	f := &fixture{
		sessions: newFakeSessions(),
		admins:   &fakeAdmins{roles: map[int64]string{100: storage.RolePrimary, 200: storage.RoleDelegated}},
		records:  &fakeRecords{},
		settings: &fakeSettings{},
		assets:   &fakeAssets{},
		resolver: &fakeResolver{recipients: []int64{1, 2, 3}},
		dispatch: &fakeDispatch{},
		notifier: &fakeNotifier{},
	}
	f.engine = New(Deps{
		Sessions: f.sessions,
		Admins:   f.admins,
		Records:  f.records,
		Settings: f.settings,
		Assets:   f.assets,
		Resolver: f.resolver,
		Dispatch: f.dispatch,
		Notify:   f.notifier,
	})
	return f
}

const actor = int64(100)

func TestPodcastFullFlowRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply, err := f.engine.StartPodcast(ctx, actor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if reply.Keyboard != KeyboardTarget {
		t.Fatalf("expected target keyboard, got %v", reply.Keyboard)
	}

	steps := []struct {
		do   func() (Reply, error)
		want Keyboard
	}{
		{func() (Reply, error) { return f.engine.HandleCallback(ctx, actor, CBTargetLastWeek) }, KeyboardImageChoice},
		{func() (Reply, error) { return f.engine.HandleCallback(ctx, actor, CBImageNo) }, KeyboardCancel},
		{func() (Reply, error) { return f.engine.HandleText(ctx, actor, "Update") }, KeyboardCancel},
		{func() (Reply, error) { return f.engine.HandleText(ctx, actor, "New feature live") }, KeyboardButtonChoice},
		{func() (Reply, error) { return f.engine.HandleCallback(ctx, actor, CBButtonNo) }, KeyboardConfirm},
	}
	for i, st := range steps {
		r, err := st.do()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if r.Keyboard != st.want {
			t.Fatalf("step %d: expected keyboard %v, got %v (%q)", i, st.want, r.Keyboard, r.Text)
		}
	}

	r, err := f.engine.HandleCallback(ctx, actor, CBConfirmYes)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(f.records.inserted) != 1 {
		t.Fatalf("expected 1 record, got %d", len(f.records.inserted))
	}
	rec := f.records.inserted[0]
	if rec.Title != "Update" || rec.Content != "New feature live" {
		t.Fatalf("draft fields lost: %+v", rec)
	}
	if rec.Target != broadcast.TargetLastWeek {
		t.Fatalf("expected recent_week target, got %s", rec.Target)
	}
	if rec.ImagePath != "" || rec.ButtonText != "" || rec.ButtonURL != "" {
		t.Fatalf("declined options leaked into record: %+v", rec)
	}
	if rec.AuthorID != actor {
		t.Fatalf("author not recorded: %d", rec.AuthorID)
	}
	if len(f.dispatch.msgs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(f.dispatch.msgs))
	}
	if !f.records.marked {
		t.Fatal("tally not persisted")
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("session must be deleted after confirm")
	}
	if !strings.Contains(r.Text, "3") {
		t.Fatalf("summary should report deliveries: %q", r.Text)
	}
}

func TestPodcastWithImageButtonAndSpecificTarget(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mustOK := func(r Reply, err error) Reply {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return r
	}

	mustOK(f.engine.StartPodcast(ctx, actor))
	mustOK(f.engine.HandleCallback(ctx, actor, CBTargetSpecific))
	mustOK(f.engine.HandleText(ctx, actor, "555"))
	mustOK(f.engine.HandleCallback(ctx, actor, CBImageYes))
	mustOK(f.engine.HandlePhoto(ctx, actor, "photo-1"))
	mustOK(f.engine.HandleText(ctx, actor, "Title"))
	mustOK(f.engine.HandleText(ctx, actor, "Body"))
	mustOK(f.engine.HandleCallback(ctx, actor, CBButtonYes))
	mustOK(f.engine.HandleText(ctx, actor, "Open"))
	mustOK(f.engine.HandleText(ctx, actor, "https://example.com/app"))
	mustOK(f.engine.HandleCallback(ctx, actor, CBConfirmYes))

	if len(f.records.inserted) != 1 {
		t.Fatalf("expected 1 record, got %d", len(f.records.inserted))
	}
	rec := f.records.inserted[0]
	if rec.Target != broadcast.TargetSpecific || rec.TargetID != 555 {
		t.Fatalf("specific target lost: %+v", rec)
	}
	if !strings.HasPrefix(rec.ImagePath, "public/") {
		t.Fatalf("image not promoted: %s", rec.ImagePath)
	}
	if rec.ButtonText != "Open" || rec.ButtonURL != "https://example.com/app" {
		t.Fatalf("button lost: %+v", rec)
	}
	if len(f.assets.promoted) != 1 {
		t.Fatalf("expected promote, got %v", f.assets.promoted)
	}
	if len(f.assets.discarded) != 0 {
		t.Fatalf("committed asset must not be discarded: %v", f.assets.discarded)
	}
	if f.resolver.gotID != 555 {
		t.Fatalf("resolver got id %d", f.resolver.gotID)
	}
	msg := f.dispatch.msgs[0]
	if msg.ImagePath == "" || msg.Button == nil {
		t.Fatalf("dispatch message incomplete: %+v", msg)
	}
}

func TestInvalidInputRepromptsWithoutAdvance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.StartPodcast(ctx, actor); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.engine.HandleCallback(ctx, actor, CBTargetSpecific); err != nil {
		t.Fatalf("target: %v", err)
	}

	// Step expects digits; letters must re-prompt, repeatedly.
	for i := 0; i < 3; i++ {
		r, err := f.engine.HandleText(ctx, actor, "not-a-number")
		if err != nil {
			t.Fatalf("invalid input %d: %v", i, err)
		}
		if !strings.Contains(r.Text, promptTexts[StepTargetID]) {
			t.Fatalf("expected re-prompt, got %q", r.Text)
		}
	}

	s, err := f.sessions.Get(ctx, actor, string(KindPodcast))
	if err != nil {
		t.Fatalf("session gone: %v", err)
	}
	if s.Step != string(StepTargetID) {
		t.Fatalf("step advanced on invalid input: %s", s.Step)
	}

	// A mismatched update class also re-prompts without advancing.
	if _, err := f.engine.HandleCallback(ctx, actor, CBImageYes); err != nil {
		t.Fatalf("mismatched class: %v", err)
	}
	s, _ = f.sessions.Get(ctx, actor, string(KindPodcast))
	if s.Step != string(StepTargetID) {
		t.Fatalf("step advanced on mismatched class: %s", s.Step)
	}
}

func TestCancelDiscardsStagedAsset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartPodcast(ctx, actor)
	_, _ = f.engine.HandleCallback(ctx, actor, CBTargetAll)
	_, _ = f.engine.HandleCallback(ctx, actor, CBImageYes)
	_, _ = f.engine.HandlePhoto(ctx, actor, "photo-9")

	if len(f.assets.staged) != 1 {
		t.Fatalf("expected staged asset, got %v", f.assets.staged)
	}

	r, err := f.engine.HandleCallback(ctx, actor, CBCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Text != msgCancelled {
		t.Fatalf("expected cancel notice, got %q", r.Text)
	}
	if len(f.assets.discarded) != 1 || f.assets.discarded[0] != f.assets.staged[0] {
		t.Fatalf("staged asset not discarded: %v", f.assets.discarded)
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("session survived cancel")
	}
	if len(f.records.inserted) != 0 {
		t.Fatal("cancel must not create a record")
	}
}

func TestCancelBeforeStagingTouchesNoAssets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartPodcast(ctx, actor)
	_, _ = f.engine.HandleCallback(ctx, actor, CBTargetAll)

	if _, err := f.engine.HandleCallback(ctx, actor, CBCancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(f.assets.discarded) != 0 {
		t.Fatalf("no asset was staged, yet discard ran: %v", f.assets.discarded)
	}
}

func TestCancelTouchesOnlyItsOwnKind(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartPodcast(ctx, actor)
	_, _ = f.engine.StartAdminAction(ctx, actor, StepAdminAdd)

	// The podcast cancel button leaves the admin flow alive.
	r, err := f.engine.HandleCallback(ctx, actor, CBCancel)
	if err != nil {
		t.Fatalf("cancel podcast: %v", err)
	}
	if r.Text != msgCancelled {
		t.Fatalf("expected cancel notice, got %q", r.Text)
	}
	if _, err := f.sessions.Get(ctx, actor, string(KindAdmin)); err != nil {
		t.Fatal("admin session did not survive podcast cancel")
	}
	if _, err := f.sessions.Get(ctx, actor, string(KindPodcast)); err == nil {
		t.Fatal("podcast session survived its own cancel")
	}

	// And the other way round.
	_, _ = f.engine.StartPodcast(ctx, actor)
	r, err = f.engine.HandleCallback(ctx, actor, CBCancelAdmin)
	if err != nil {
		t.Fatalf("cancel admin: %v", err)
	}
	if r.Text != msgActionCancelled {
		t.Fatalf("expected admin cancel notice, got %q", r.Text)
	}
	if _, err := f.sessions.Get(ctx, actor, string(KindPodcast)); err != nil {
		t.Fatal("podcast session did not survive admin cancel")
	}

	// /cancel wipes whatever is left.
	if _, err := f.engine.Cancel(ctx, actor); err != nil {
		t.Fatalf("cancel all: %v", err)
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("a session survived the full cancel")
	}
}

func TestNoSessionUpdatesAreIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	r, err := f.engine.HandleText(ctx, actor, "stray text")
	if err != nil {
		t.Fatalf("stray text: %v", err)
	}
	if r.Text != "" {
		t.Fatalf("expected silent no-op, got %q", r.Text)
	}
	if f.sessions.puts != 0 {
		t.Fatal("no-op must not create sessions")
	}
}

func TestDelegatedCannotStartAdminFlows(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	delegated := int64(200)

	for _, step := range []Step{StepAdminAdd, StepAdminRemove, StepConfigEdit} {
		r, err := f.engine.StartAdminAction(ctx, delegated, step)
		if err != nil {
			t.Fatalf("%s: %v", step, err)
		}
		if r.Text != msgNotAllowed {
			t.Fatalf("%s: expected rejection, got %q", step, r.Text)
		}
	}
	if f.sessions.puts != 0 {
		t.Fatal("rejected actor must not get a session")
	}

	// Delegated admins may still compose podcasts.
	r, err := f.engine.StartPodcast(ctx, delegated)
	if err != nil {
		t.Fatalf("podcast start: %v", err)
	}
	if r.Keyboard != KeyboardTarget {
		t.Fatalf("delegated podcast start rejected: %q", r.Text)
	}
}

func TestRoleRecheckedAtCommit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.StartAdminAction(ctx, actor, StepAdminAdd); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Role revoked mid-flow.
	f.admins.roles[actor] = storage.RoleDelegated

	r, err := f.engine.HandleText(ctx, actor, "300")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if r.Text != msgNotAllowed {
		t.Fatalf("expected rejection after demotion, got %q", r.Text)
	}
	if _, ok := f.admins.roles[300]; ok {
		t.Fatal("demoted actor still added an admin")
	}
}

func TestAddAndRemoveAdminFlows(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartAdminAction(ctx, actor, StepAdminAdd)
	r, err := f.engine.HandleText(ctx, actor, "300")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if f.admins.roles[300] != storage.RoleDelegated {
		t.Fatalf("admin not added: %v", f.admins.roles)
	}
	if !strings.Contains(r.Text, "300") {
		t.Fatalf("confirmation missing id: %q", r.Text)
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("admin session survived commit")
	}

	_, _ = f.engine.StartAdminAction(ctx, actor, StepAdminRemove)
	if _, err := f.engine.HandleText(ctx, actor, "300"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := f.admins.roles[300]; ok {
		t.Fatal("admin not removed")
	}

	// both role changes notify the affected user
	if got := len(f.notifier.notices[300]); got != 2 {
		t.Fatalf("expected 2 notices for user 300, got %d", got)
	}
}

func TestRemovingPrimaryIsAlwaysRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartAdminAction(ctx, actor, StepAdminRemove)
	r, err := f.engine.HandleText(ctx, actor, "100")
	if err != nil {
		t.Fatalf("remove primary: %v", err)
	}
	if r.Text != msgPrimaryKept {
		t.Fatalf("expected primary guard, got %q", r.Text)
	}
	if f.admins.roles[100] != storage.RolePrimary {
		t.Fatal("primary admin was removed")
	}
}

func TestConfigEditGrammar(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartAdminAction(ctx, actor, StepConfigEdit)

	// Wrong shape re-prompts.
	r, err := f.engine.HandleText(ctx, actor, "firebase_url=https://x.example")
	if err != nil {
		t.Fatalf("partial config: %v", err)
	}
	if !strings.Contains(r.Text, "firebase_url=<url>") {
		t.Fatalf("expected re-prompt, got %q", r.Text)
	}

	line := "firebase_url=https://db.example.com firebase_secret=abc123 mini_app_url=https://app.example.com"
	if _, err := f.engine.HandleText(ctx, actor, line); err != nil {
		t.Fatalf("config commit: %v", err)
	}
	if f.settings.values[storage.SettingFirebaseSecret] != "abc123" {
		t.Fatalf("settings not applied: %v", f.settings.values)
	}
	if f.settings.actorID != actor {
		t.Fatalf("actor not recorded: got %d, want %d", f.settings.actorID, actor)
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("config session survived commit")
	}
}

func TestStorageFailureKeepsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartPodcast(ctx, actor)
	f.sessions.putErr = errors.New("disk full")

	r, err := f.engine.HandleCallback(ctx, actor, CBTargetAll)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if r.Text != msgStoreFailure {
		t.Fatalf("expected generic failure, got %q", r.Text)
	}

	s, gerr := f.sessions.Get(ctx, actor, string(KindPodcast))
	if gerr != nil {
		t.Fatalf("session lost: %v", gerr)
	}
	if s.Step != string(StepTarget) {
		t.Fatalf("session advanced despite failed persist: %s", s.Step)
	}
}

func TestCommitFailureDiscardsPromotedAsset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.StartPodcast(ctx, actor)
	_, _ = f.engine.HandleCallback(ctx, actor, CBTargetAll)
	_, _ = f.engine.HandleCallback(ctx, actor, CBImageYes)
	_, _ = f.engine.HandlePhoto(ctx, actor, "photo-2")
	_, _ = f.engine.HandleText(ctx, actor, "T")
	_, _ = f.engine.HandleText(ctx, actor, "C")
	_, _ = f.engine.HandleCallback(ctx, actor, CBButtonNo)

	f.records.insertErr = errors.New("db down")
	r, err := f.engine.HandleCallback(ctx, actor, CBConfirmYes)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if r.Text != msgStoreFailure {
		t.Fatalf("expected generic failure, got %q", r.Text)
	}
	if len(f.assets.discarded) != 1 {
		t.Fatalf("asset not discarded on commit failure: %v", f.assets.discarded)
	}
	if len(f.dispatch.msgs) != 0 {
		t.Fatal("dispatch ran despite failed commit")
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("session survived failed commit")
	}
}

func TestSessionDeletedEvenWhenDeliveriesFail(t *testing.T) {
	f := newFixture()
	f.dispatch.tally = broadcast.Tally{Attempted: 3, Failed: 3}
	ctx := context.Background()

	_, _ = f.engine.StartPodcast(ctx, actor)
	_, _ = f.engine.HandleCallback(ctx, actor, CBTargetAll)
	_, _ = f.engine.HandleCallback(ctx, actor, CBImageNo)
	_, _ = f.engine.HandleText(ctx, actor, "T")
	_, _ = f.engine.HandleText(ctx, actor, "C")
	_, _ = f.engine.HandleCallback(ctx, actor, CBButtonNo)

	r, err := f.engine.HandleCallback(ctx, actor, CBConfirmYes)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("session must be deleted regardless of delivery outcome")
	}
	if !strings.Contains(r.Text, "Ошибок: 3") {
		t.Fatalf("failures not reported: %q", r.Text)
	}
}

func TestUnknownStepResetsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_ = f.sessions.Put(ctx, &storage.Session{
		AdminID: actor, Kind: string(KindPodcast), Step: "ancient_step", Payload: []byte("{}"),
	})

	r, err := f.engine.HandleText(ctx, actor, "hello")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if r.Text != msgFlowReset {
		t.Fatalf("expected reset notice, got %q", r.Text)
	}
	if f.engine.InProgress(ctx, actor) {
		t.Fatal("invalid session must be discarded")
	}
}
