package wizard

import (
	"github.com/coresuz/tangabot/app/broadcast"
)

// Kind discriminates independent wizard flows. One session per
// (owner, kind) may exist at a time.
type Kind string

const (
	KindPodcast Kind = "podcast"
	KindAdmin   Kind = "admin"
)

// Step names a state in a wizard flow.
type Step string

// Podcast composition steps.
const (
	StepTarget       Step = "target"
	StepTargetID     Step = "target_id"
	StepImageChoice  Step = "image_choice"
	StepImageUpload  Step = "image_upload"
	StepTitle        Step = "title"
	StepContent      Step = "content"
	StepButtonChoice Step = "button_choice"
	StepButtonText   Step = "button_text"
	StepButtonURL    Step = "button_url"
	StepConfirm      Step = "confirm"
)

// Single-input admin steps. Each commits immediately on valid input.
const (
	StepAdminAdd    Step = "add_admin_id"
	StepAdminRemove Step = "remove_admin_id"
	StepConfigEdit  Step = "update_config"
)

// Callback keys understood by the podcast flow.
const (
	CBTargetAll       = "target_all"
	CBTargetLastDay   = "target_last_day"
	CBTargetLastWeek  = "target_last_week"
	CBTargetLastMonth = "target_last_month"
	CBTargetSpecific  = "target_specific"
	CBImageYes        = "image_yes"
	CBImageNo         = "image_no"
	CBButtonYes       = "button_yes"
	CBButtonNo        = "button_no"
	CBConfirmYes      = "confirm_yes"
	CBCancel          = "cancel_podcast"
	CBCancelAdmin     = "cancel_admin"
)

// Accept declares which inbound shape a step consumes.
type Accept int

const (
	AcceptCallback Accept = iota
	AcceptText
	AcceptPhoto
)

// Input is one normalized inbound update, already stripped of
// transport detail. Exactly one field is meaningful per call.
type Input struct {
	Text     string
	AssetRef string
	Callback string
}

// stepSpec is one row of the transition table. Apply validates the
// input, merges it into the draft, and names the next step; an empty
// next step marks the terminal transition handled by the engine's
// commit path. Admin steps have no Apply: the engine commits them
// directly from the validated input.
type stepSpec struct {
	Kind   Kind
	Accept Accept
	Apply  func(d *PodcastDraft, in Input) (Step, error)
}

var registry = map[Step]stepSpec{
	StepTarget: {Kind: KindPodcast, Accept: AcceptCallback, Apply: applyTarget},
	StepTargetID: {Kind: KindPodcast, Accept: AcceptText, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		id, err := parseID(in.Text)
		if err != nil {
			return "", err
		}
		d.TargetID = id
		return StepImageChoice, nil
	}},
	StepImageChoice: {Kind: KindPodcast, Accept: AcceptCallback, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		switch in.Callback {
		case CBImageYes:
			return StepImageUpload, nil
		case CBImageNo:
			d.Image = nil
			return StepTitle, nil
		}
		return "", errInvalidInput
	}},
	StepImageUpload: {Kind: KindPodcast, Accept: AcceptPhoto, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		if in.AssetRef == "" {
			return "", errInvalidInput
		}
		d.Image = &StagedImage{Ref: in.AssetRef}
		return StepTitle, nil
	}},
	StepTitle: {Kind: KindPodcast, Accept: AcceptText, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		text, err := parseNonEmpty(in.Text)
		if err != nil {
			return "", err
		}
		d.Title = text
		return StepContent, nil
	}},
	StepContent: {Kind: KindPodcast, Accept: AcceptText, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		text, err := parseNonEmpty(in.Text)
		if err != nil {
			return "", err
		}
		d.Content = text
		return StepButtonChoice, nil
	}},
	StepButtonChoice: {Kind: KindPodcast, Accept: AcceptCallback, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		switch in.Callback {
		case CBButtonYes:
			return StepButtonText, nil
		case CBButtonNo:
			d.Button = nil
			return StepConfirm, nil
		}
		return "", errInvalidInput
	}},
	StepButtonText: {Kind: KindPodcast, Accept: AcceptText, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		text, err := parseNonEmpty(in.Text)
		if err != nil {
			return "", err
		}
		d.Button = &LinkButton{Text: text}
		return StepButtonURL, nil
	}},
	StepButtonURL: {Kind: KindPodcast, Accept: AcceptText, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		u, err := parseURL(in.Text)
		if err != nil {
			return "", err
		}
		if d.Button == nil {
			d.Button = &LinkButton{}
		}
		d.Button.URL = u
		return StepConfirm, nil
	}},
	StepConfirm: {Kind: KindPodcast, Accept: AcceptCallback, Apply: func(d *PodcastDraft, in Input) (Step, error) {
		if in.Callback == CBConfirmYes {
			return "", nil
		}
		return "", errInvalidInput
	}},

	StepAdminAdd:    {Kind: KindAdmin, Accept: AcceptText},
	StepAdminRemove: {Kind: KindAdmin, Accept: AcceptText},
	StepConfigEdit:  {Kind: KindAdmin, Accept: AcceptText},
}

func applyTarget(d *PodcastDraft, in Input) (Step, error) {
	switch in.Callback {
	case CBTargetAll:
		d.Target = broadcast.TargetAll
	case CBTargetLastDay:
		d.Target = broadcast.TargetLastDay
	case CBTargetLastWeek:
		d.Target = broadcast.TargetLastWeek
	case CBTargetLastMonth:
		d.Target = broadcast.TargetLastMonth
	case CBTargetSpecific:
		d.Target = broadcast.TargetSpecific
		return StepTargetID, nil
	default:
		return "", errInvalidInput
	}
	d.TargetID = 0
	return StepImageChoice, nil
}
