package handlers

import (
	"testing"

	"github.com/coresuz/tangabot/app/wizard"
	"github.com/coresuz/tangabot/core/config"
	tg "github.com/coresuz/tangabot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

func TestParseReferrer(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		selfID  int64
		want    int64
	}{
		{"valid", "12345", 1, 12345},
		{"empty", "", 1, 0},
		{"junk", "ref_abc", 1, 0},
		{"negative", "-5", 1, 0},
		{"self", "42", 42, 0},
		{"padded", "  77  ", 1, 77},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &tele.Message{Payload: tc.payload}
			if got := parseReferrer(msg, tc.selfID); got != tc.want {
				t.Fatalf("parseReferrer(%q) = %d, want %d", tc.payload, got, tc.want)
			}
		})
	}

	if got := parseReferrer(nil, 1); got != 0 {
		t.Fatalf("nil message: got %d, want 0", got)
	}
}

func TestWizardMarkupCoversKeyboards(t *testing.T) {
	withButtons := []wizard.Keyboard{
		wizard.KeyboardTarget,
		wizard.KeyboardImageChoice,
		wizard.KeyboardButtonChoice,
		wizard.KeyboardConfirm,
		wizard.KeyboardCancel,
		wizard.KeyboardCancelAdmin,
	}
	for _, k := range withButtons {
		markup := wizardMarkup(k)
		if markup == nil || len(markup.InlineKeyboard) == 0 {
			t.Fatalf("keyboard %v: expected inline buttons", k)
		}
		// every wizard keyboard must offer a way out
		found := false
		for _, row := range markup.InlineKeyboard {
			for _, btn := range row {
				if btn.Unique == wizard.CBCancel || btn.Unique == wizard.CBCancelAdmin {
					found = true
				}
			}
		}
		if !found {
			t.Fatalf("keyboard %v: no cancel button", k)
		}
	}
	// admin keyboards must not cancel through the podcast key
	for _, row := range wizardMarkup(wizard.KeyboardCancelAdmin).InlineKeyboard {
		for _, btn := range row {
			if btn.Unique == wizard.CBCancel {
				t.Fatal("admin keyboard carries the podcast cancel key")
			}
		}
	}

	if wizardMarkup(wizard.KeyboardNone) != nil {
		t.Fatal("KeyboardNone should render no markup")
	}
}

func TestRegisterWiresCommandsAndCallbacks(t *testing.T) {
	h := New(&config.Config{}, nil, nil)
	reg := tg.NewRegistry()
	h.Register(reg)

	for _, cmd := range []string{"/start", "/admin", "/cancel"} {
		if _, _, ok := reg.LookupCommand(cmd); !ok {
			t.Fatalf("command %s not registered", cmd)
		}
	}

	keys := []string{
		cbAdminPanel, cbStats, cbSendPodcast, cbAddAdmin, cbRemoveAdmin,
		cbUpdateConfig, cbCopyRef, cbBackToMain,
		wizard.CBTargetAll, wizard.CBTargetSpecific, wizard.CBImageYes,
		wizard.CBButtonNo, wizard.CBConfirmYes, wizard.CBCancel,
	}
	for _, key := range keys {
		if _, ok := reg.GetCallback(key); !ok {
			t.Fatalf("callback %s not registered", key)
		}
	}

	if reg.TextFallback() == nil {
		t.Fatal("text fallback not set")
	}

	// /admin stays out of the public command list
	for _, cmd := range reg.ListCommands(true) {
		if cmd.Text == "admin" {
			t.Fatal("/admin should be hidden from the public list")
		}
	}
}
