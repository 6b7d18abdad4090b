package router

import "testing"

func TestBreakoutCommand(t *testing.T) {
	breakouts := []string{"/cancel"}

	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare", "/cancel", "/cancel", true},
		{"with mention", "/cancel@tanga_mining_bot", "/cancel", true},
		{"with args", "/cancel now", "/cancel", true},
		{"other command", "/start", "", false},
		{"longer command", "/cancelall", "", false},
		{"plain text", "cancel", "", false},
		{"mid flow input", "My podcast title", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := breakoutCommand(tc.text, breakouts)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("breakoutCommand(%q) = %q, %v; want %q, %v", tc.text, got, ok, tc.want, tc.ok)
			}
		})
	}

	if _, ok := breakoutCommand("/cancel", nil); ok {
		t.Fatal("no breakouts configured, nothing should match")
	}
}
