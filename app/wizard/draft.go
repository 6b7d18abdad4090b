package wizard

import (
	"encoding/json"
	"fmt"
)

// StagedImage references an asset held by the lifecycle manager.
type StagedImage struct {
	Ref string `json:"ref"`
}

// LinkButton is the optional action button attached to an announcement.
type LinkButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// PodcastDraft accumulates the podcast session payload step by step.
// Pointer fields distinguish "declined" from "not yet asked".
type PodcastDraft struct {
	Target   string       `json:"target,omitempty"`
	TargetID int64        `json:"target_id,omitempty"`
	Image    *StagedImage `json:"image,omitempty"`
	Title    string       `json:"title,omitempty"`
	Content  string       `json:"content,omitempty"`
	Button   *LinkButton  `json:"button,omitempty"`
}

func decodeDraft(payload []byte) (*PodcastDraft, error) {
	d := &PodcastDraft{}
	if len(payload) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(payload, d); err != nil {
		return nil, fmt.Errorf("wizard: decode draft: %w", err)
	}
	return d, nil
}

func (d *PodcastDraft) encode() []byte {
	b, err := json.Marshal(d)
	if err != nil {
		// All fields are plain JSON-encodable types.
		return []byte("{}")
	}
	return b
}
