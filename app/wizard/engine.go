package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coresuz/tangabot/app/broadcast"
	"github.com/coresuz/tangabot/app/storage"
	"github.com/coresuz/tangabot/core/logger"
)

// SessionStore persists wizard sessions across updates.
type SessionStore interface {
	Get(ctx context.Context, ownerID int64, kind string) (*storage.Session, error)
	GetActive(ctx context.Context, ownerID int64) (*storage.Session, error)
	Put(ctx context.Context, s *storage.Session) error
	Delete(ctx context.Context, ownerID int64, kind string) error
}

// AdminDirectory answers role checks and mutates the admin set.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	IsPrimary(ctx context.Context, userID int64) (bool, error)
	Add(ctx context.Context, userID, addedBy int64) error
	Remove(ctx context.Context, userID int64) error
}

// RecordStore persists committed podcast records.
type RecordStore interface {
	Insert(ctx context.Context, p *storage.Podcast) error
	MarkSent(ctx context.Context, id string, recipients, attempted, failed int64) error
}

// ConfigStore applies runtime configuration edits atomically,
// recording which admin made them.
type ConfigStore interface {
	SetMany(ctx context.Context, values map[string]string, actorID int64) error
}

// AssetStore manages wizard image lifecycle.
type AssetStore interface {
	Stage(ctx context.Context, ownerID int64, fileID string) (string, error)
	Promote(ref string) (string, error)
	Discard(ref string) error
	Path(ref string) string
}

// TargetResolver materializes an audience selector.
type TargetResolver interface {
	Resolve(ctx context.Context, selector string, targetID int64) ([]int64, error)
}

// Notifier delivers out-of-band notices to affected users, e.g. the
// account whose admin role just changed.
type Notifier interface {
	SendText(ctx context.Context, recipient int64, text string, btn *broadcast.Button) error
}

// Broadcaster fans one announcement out to recipients.
type Broadcaster interface {
	Dispatch(ctx context.Context, msg broadcast.Message, recipients []int64) broadcast.Tally
}

// Deps wires the engine's collaborators.
type Deps struct {
	Sessions SessionStore
	Admins   AdminDirectory
	Records  RecordStore
	Settings ConfigStore
	Assets   AssetStore
	Resolver TargetResolver
	Dispatch Broadcaster
	// Notify is optional; nil disables role-change notices.
	Notify Notifier
}

// Engine drives wizard flows as a state-passing handler: each call is
// a function of (stored session, one inbound update) producing a new
// stored session (or none) and a reply. No state lives in memory
// between calls.
type Engine struct {
	deps Deps
}

// New builds an engine.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// InProgress reports whether the owner has any active session.
func (e *Engine) InProgress(ctx context.Context, ownerID int64) bool {
	_, err := e.deps.Sessions.GetActive(ctx, ownerID)
	return err == nil
}

// StartPodcast opens a podcast session for an admin, replacing any
// previous podcast session wholesale.
func (e *Engine) StartPodcast(ctx context.Context, actorID int64) (Reply, error) {
	ok, err := e.deps.Admins.IsAdmin(ctx, actorID)
	if err != nil {
		return Reply{Text: msgStoreFailure}, err
	}
	if !ok {
		return Reply{Text: msgNotAllowed}, nil
	}
	return e.open(ctx, actorID, KindPodcast, StepTarget)
}

// StartAdminAction opens one of the single-input admin flows. Only the
// primary admin may manage admins or edit configuration.
func (e *Engine) StartAdminAction(ctx context.Context, actorID int64, step Step) (Reply, error) {
	spec, ok := registry[step]
	if !ok || spec.Kind != KindAdmin {
		return Reply{}, fmt.Errorf("wizard: %q is not an admin step", step)
	}
	primary, err := e.deps.Admins.IsPrimary(ctx, actorID)
	if err != nil {
		return Reply{Text: msgStoreFailure}, err
	}
	if !primary {
		return Reply{Text: msgNotAllowed}, nil
	}
	return e.open(ctx, actorID, KindAdmin, step)
}

func (e *Engine) open(ctx context.Context, ownerID int64, kind Kind, step Step) (Reply, error) {
	s := &storage.Session{AdminID: ownerID, Kind: string(kind), Step: string(step)}
	if err := e.deps.Sessions.Put(ctx, s); err != nil {
		logger.WZ.Error("session open failed",
			slog.String("event", "wizard.open_failed"),
			slog.Int64("user_id", ownerID),
			slog.String("wizard", string(kind)),
			slog.String("err", err.Error()),
		)
		return Reply{Text: msgStoreFailure}, nil
	}
	logger.WZ.Info("wizard started",
		slog.String("event", "wizard.started"),
		slog.Int64("user_id", ownerID),
		slog.String("wizard", string(kind)),
		slog.String("step", string(step)),
	)
	return promptFor(step, &PodcastDraft{}), nil
}

// dropPodcast deletes the podcast session and discards its staged
// asset. Reports whether a session existed.
func (e *Engine) dropPodcast(ctx context.Context, ownerID int64) (bool, error) {
	s, err := e.deps.Sessions.Get(ctx, ownerID, string(KindPodcast))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if d, derr := decodeDraft(s.Payload); derr == nil && d.Image != nil {
		_ = e.deps.Assets.Discard(d.Image.Ref)
	}
	if derr := e.deps.Sessions.Delete(ctx, ownerID, string(KindPodcast)); derr != nil {
		return true, derr
	}
	return true, nil
}

// CancelPodcast tears down only the podcast session. A coexisting
// admin session is untouched.
func (e *Engine) CancelPodcast(ctx context.Context, ownerID int64) (Reply, error) {
	had, err := e.dropPodcast(ctx, ownerID)
	if err != nil {
		return Reply{Text: msgStoreFailure}, nil
	}
	if !had {
		return Reply{Text: msgNothingToDo}, nil
	}
	e.logCancelled(ownerID, KindPodcast)
	return Reply{Text: msgCancelled}, nil
}

// CancelAdmin tears down only the admin session.
func (e *Engine) CancelAdmin(ctx context.Context, ownerID int64) (Reply, error) {
	_, err := e.deps.Sessions.Get(ctx, ownerID, string(KindAdmin))
	if errors.Is(err, storage.ErrNotFound) {
		return Reply{Text: msgNothingToDo}, nil
	}
	if err != nil {
		return Reply{Text: msgStoreFailure}, nil
	}
	if derr := e.deps.Sessions.Delete(ctx, ownerID, string(KindAdmin)); derr != nil {
		return Reply{Text: msgStoreFailure}, nil
	}
	e.logCancelled(ownerID, KindAdmin)
	return Reply{Text: msgActionCancelled}, nil
}

// Cancel tears down every session the owner has, both kinds, and
// discards any staged asset. Backs the /cancel command; safe to call
// with no session.
func (e *Engine) Cancel(ctx context.Context, ownerID int64) (Reply, error) {
	hadAny, err := e.dropPodcast(ctx, ownerID)
	if err != nil {
		return Reply{Text: msgStoreFailure}, nil
	}
	if _, aerr := e.deps.Sessions.Get(ctx, ownerID, string(KindAdmin)); aerr == nil {
		hadAny = true
	} else if !errors.Is(aerr, storage.ErrNotFound) {
		return Reply{Text: msgStoreFailure}, nil
	}
	if derr := e.deps.Sessions.Delete(ctx, ownerID, string(KindAdmin)); derr != nil {
		return Reply{Text: msgStoreFailure}, nil
	}

	if !hadAny {
		return Reply{Text: msgNothingToDo}, nil
	}
	logger.WZ.Info("wizard cancelled",
		slog.String("event", "wizard.cancelled"),
		slog.Int64("user_id", ownerID),
	)
	return Reply{Text: msgCancelled}, nil
}

func (e *Engine) logCancelled(ownerID int64, kind Kind) {
	logger.WZ.Info("wizard cancelled",
		slog.String("event", "wizard.cancelled"),
		slog.Int64("user_id", ownerID),
		slog.String("wizard", string(kind)),
	)
}

// HandleText feeds a free-text update into the active session.
// With no session the update is ignored.
func (e *Engine) HandleText(ctx context.Context, ownerID int64, text string) (Reply, error) {
	return e.handle(ctx, ownerID, Input{Text: text}, AcceptText)
}

// HandlePhoto stages the uploaded image and feeds it into the active
// session. Staging happens only when the current step expects a photo.
func (e *Engine) HandlePhoto(ctx context.Context, ownerID int64, fileID string) (Reply, error) {
	s, spec, reply, ok := e.loadActive(ctx, ownerID)
	if !ok {
		return reply, nil
	}
	if spec.Accept != AcceptPhoto {
		d, err := decodeDraft(s.Payload)
		if err != nil {
			return e.reset(ctx, s)
		}
		return rePrompt(Step(s.Step), d), nil
	}

	ref, err := e.deps.Assets.Stage(ctx, ownerID, fileID)
	if err != nil {
		logger.WZ.Warn("image staging failed",
			slog.String("event", "step.rejected"),
			slog.Int64("user_id", ownerID),
			slog.String("step", s.Step),
			slog.String("err", err.Error()),
		)
		d, derr := decodeDraft(s.Payload)
		if derr != nil {
			return e.reset(ctx, s)
		}
		return rePrompt(Step(s.Step), d), nil
	}
	return e.advance(ctx, s, spec, Input{AssetRef: ref})
}

// HandleCallback feeds a button press into the active session. Cancel
// is honored at any step and only touches the kind whose keyboard
// carried the button.
func (e *Engine) HandleCallback(ctx context.Context, ownerID int64, key string) (Reply, error) {
	switch key {
	case CBCancel:
		return e.CancelPodcast(ctx, ownerID)
	case CBCancelAdmin:
		return e.CancelAdmin(ctx, ownerID)
	}
	return e.handle(ctx, ownerID, Input{Callback: key}, AcceptCallback)
}

func (e *Engine) handle(ctx context.Context, ownerID int64, in Input, class Accept) (Reply, error) {
	s, spec, reply, ok := e.loadActive(ctx, ownerID)
	if !ok {
		return reply, nil
	}
	if spec.Accept != class {
		d, err := decodeDraft(s.Payload)
		if err != nil {
			return e.reset(ctx, s)
		}
		return rePrompt(Step(s.Step), d), nil
	}

	if spec.Kind == KindAdmin {
		return e.commitAdmin(ctx, s, in)
	}
	return e.advance(ctx, s, spec, in)
}

// loadActive fetches the newest session and its registry row. The
// boolean is false when the update should not touch any session; the
// returned reply is then the complete response (possibly empty).
func (e *Engine) loadActive(ctx context.Context, ownerID int64) (*storage.Session, stepSpec, Reply, bool) {
	s, err := e.deps.Sessions.GetActive(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, stepSpec{}, Reply{}, false
	}
	if err != nil {
		return nil, stepSpec{}, Reply{Text: msgStoreFailure}, false
	}
	spec, known := registry[Step(s.Step)]
	if !known {
		r, _ := e.reset(ctx, s)
		return nil, stepSpec{}, r, false
	}
	return s, spec, Reply{}, true
}

// reset discards a session whose step no longer exists in the registry.
func (e *Engine) reset(ctx context.Context, s *storage.Session) (Reply, error) {
	logger.WZ.Warn("session discarded",
		slog.String("event", "wizard.reset"),
		slog.Int64("user_id", s.AdminID),
		slog.String("wizard", s.Kind),
		slog.String("step", s.Step),
	)
	_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
	return Reply{Text: msgFlowReset}, nil
}

// advance runs one podcast transition: validate, merge, persist, prompt.
func (e *Engine) advance(ctx context.Context, s *storage.Session, spec stepSpec, in Input) (Reply, error) {
	d, err := decodeDraft(s.Payload)
	if err != nil {
		return e.reset(ctx, s)
	}

	next, err := spec.Apply(d, in)
	if errors.Is(err, errInvalidInput) {
		logger.WZ.Debug("input rejected",
			slog.String("event", "step.rejected"),
			slog.Int64("user_id", s.AdminID),
			slog.String("step", s.Step),
		)
		return rePrompt(Step(s.Step), d), nil
	}
	if err != nil {
		return Reply{Text: msgStoreFailure}, err
	}

	if next == "" {
		return e.commitPodcast(ctx, s, d)
	}

	updated := &storage.Session{
		AdminID: s.AdminID,
		Kind:    s.Kind,
		Step:    string(next),
		Payload: d.encode(),
	}
	if err := e.deps.Sessions.Put(ctx, updated); err != nil {
		logger.WZ.Error("session persist failed",
			slog.String("event", "wizard.persist_failed"),
			slog.Int64("user_id", s.AdminID),
			slog.String("step", s.Step),
			slog.String("err", err.Error()),
		)
		return Reply{Text: msgStoreFailure}, nil
	}
	logger.WZ.Debug("step advanced",
		slog.String("event", "step.advanced"),
		slog.Int64("user_id", s.AdminID),
		slog.String("step", string(next)),
	)
	return promptFor(next, d), nil
}

// commitPodcast resolves the audience, persists the record, promotes
// the asset, dispatches, and clears the session. The session is
// deleted regardless of delivery outcome; a confirm-time failure
// before the record exists discards the staged asset.
func (e *Engine) commitPodcast(ctx context.Context, s *storage.Session, d *PodcastDraft) (Reply, error) {
	ok, err := e.deps.Admins.IsAdmin(ctx, s.AdminID)
	if err != nil {
		return Reply{Text: msgStoreFailure}, nil
	}
	if !ok {
		return Reply{Text: msgNotAllowed}, nil
	}

	recipients, err := e.deps.Resolver.Resolve(ctx, d.Target, d.TargetID)
	if err != nil {
		logger.WZ.Error("target resolution failed",
			slog.String("event", "wizard.commit_failed"),
			slog.Int64("user_id", s.AdminID),
			slog.String("target", d.Target),
			slog.String("err", err.Error()),
		)
		return Reply{Text: msgStoreFailure}, nil
	}

	imagePath := ""
	imageRef := ""
	if d.Image != nil {
		promoted, perr := e.deps.Assets.Promote(d.Image.Ref)
		if perr != nil {
			_ = e.deps.Assets.Discard(d.Image.Ref)
			_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
			logger.WZ.Error("asset promote failed",
				slog.String("event", "wizard.commit_failed"),
				slog.Int64("user_id", s.AdminID),
				slog.String("asset", d.Image.Ref),
				slog.String("err", perr.Error()),
			)
			return Reply{Text: msgStoreFailure}, nil
		}
		imageRef = promoted
		imagePath = e.deps.Assets.Path(promoted)
	}

	record := &storage.Podcast{
		AuthorID:   s.AdminID,
		Title:      d.Title,
		Content:    d.Content,
		ImagePath:  imageRef,
		Target:     d.Target,
		TargetID:   d.TargetID,
		Recipients: int64(len(recipients)),
	}
	if d.Button != nil {
		record.ButtonText = d.Button.Text
		record.ButtonURL = d.Button.URL
	}
	if err := e.deps.Records.Insert(ctx, record); err != nil {
		if imageRef != "" {
			_ = e.deps.Assets.Discard(imageRef)
		}
		_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
		logger.WZ.Error("record persist failed",
			slog.String("event", "wizard.commit_failed"),
			slog.Int64("user_id", s.AdminID),
			slog.String("err", err.Error()),
		)
		return Reply{Text: msgStoreFailure}, nil
	}

	msg := broadcast.Message{Text: renderBody(d), ImagePath: imagePath}
	if d.Button != nil {
		msg.Button = &broadcast.Button{Text: d.Button.Text, URL: d.Button.URL}
	}
	tally := e.deps.Dispatch.Dispatch(ctx, msg, recipients)

	if err := e.deps.Records.MarkSent(ctx, record.ID, int64(len(recipients)), tally.Attempted, tally.Failed); err != nil {
		logger.WZ.Error("tally persist failed",
			slog.String("event", "wizard.tally_failed"),
			slog.String("podcast_id", record.ID),
			slog.String("err", err.Error()),
		)
	}
	_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)

	logger.WZ.Info("podcast committed",
		slog.String("event", "wizard.committed"),
		slog.Int64("user_id", s.AdminID),
		slog.String("podcast_id", record.ID),
		slog.Int64("attempted", tally.Attempted),
		slog.Int64("failed", tally.Failed),
	)
	return Reply{Text: fmt.Sprintf(
		"Подкаст отправлен.\nДоставлено: %d\nОшибок: %d",
		tally.Attempted-tally.Failed, tally.Failed,
	)}, nil
}

// commitAdmin executes a single-input admin step. The actor's role is
// re-checked here, at the triggering action, since roles can change
// between updates.
func (e *Engine) commitAdmin(ctx context.Context, s *storage.Session, in Input) (Reply, error) {
	primary, err := e.deps.Admins.IsPrimary(ctx, s.AdminID)
	if err != nil {
		return Reply{Text: msgStoreFailure}, nil
	}
	if !primary {
		return Reply{Text: msgNotAllowed}, nil
	}

	step := Step(s.Step)
	switch step {
	case StepAdminAdd:
		id, perr := parseID(in.Text)
		if perr != nil {
			return rePrompt(step, nil), nil
		}
		if aerr := e.deps.Admins.Add(ctx, id, s.AdminID); aerr != nil {
			return Reply{Text: msgStoreFailure}, nil
		}
		_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
		e.logAdminCommit(s, "admin.added", id)
		e.notify(ctx, id, "Вам выданы права администратора.")
		return Reply{Text: fmt.Sprintf("Администратор %d добавлен.", id)}, nil

	case StepAdminRemove:
		id, perr := parseID(in.Text)
		if perr != nil {
			return rePrompt(step, nil), nil
		}
		if rerr := e.deps.Admins.Remove(ctx, id); rerr != nil {
			if errors.Is(rerr, storage.ErrPrimaryImmutable) {
				_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
				return Reply{Text: msgPrimaryKept}, nil
			}
			if errors.Is(rerr, storage.ErrNotFound) {
				return rePrompt(step, nil), nil
			}
			return Reply{Text: msgStoreFailure}, nil
		}
		_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
		e.logAdminCommit(s, "admin.removed", id)
		e.notify(ctx, id, "Ваши права администратора отозваны.")
		return Reply{Text: fmt.Sprintf("Администратор %d удалён.", id)}, nil

	case StepConfigEdit:
		values, perr := parseConfigGrammar(in.Text)
		if perr != nil {
			return rePrompt(step, nil), nil
		}
		if serr := e.deps.Settings.SetMany(ctx, values, s.AdminID); serr != nil {
			return Reply{Text: msgStoreFailure}, nil
		}
		_ = e.deps.Sessions.Delete(ctx, s.AdminID, s.Kind)
		e.logAdminCommit(s, "config.updated", 0)
		return Reply{Text: "Конфигурация обновлена."}, nil
	}

	return e.reset(ctx, s)
}

// notify best-effort delivers a role-change notice; failures are
// logged, never surfaced to the actor.
func (e *Engine) notify(ctx context.Context, userID int64, text string) {
	if e.deps.Notify == nil {
		return
	}
	if err := e.deps.Notify.SendText(ctx, userID, text, nil); err != nil {
		logger.WZ.Warn("notice delivery failed",
			slog.String("event", "notify.failed"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

func (e *Engine) logAdminCommit(s *storage.Session, event string, target int64) {
	attrs := []any{
		slog.String("event", event),
		slog.Int64("user_id", s.AdminID),
	}
	if target != 0 {
		attrs = append(attrs, slog.Int64("target_id", target))
	}
	logger.WZ.Info("admin action committed", attrs...)
}

// renderBody formats the outbound announcement text.
func renderBody(d *PodcastDraft) string {
	return fmt.Sprintf("%s\n\n%s", d.Title, d.Content)
}
