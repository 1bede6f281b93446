package telegram

import (
	"testing"

	"vigia-telegram-bot/internal/catalog"
)

func TestOrphanPrice(t *testing.T) {
	cat := catalog.Default()

	cases := []struct {
		text string
		want bool
	}{
		{"650", true},
		{"650.50", true},
		{"650,50", true},
		{" 650 ", true},
		// Bare numbers that are catalog aliases go to the intent chain,
		// not the expired-session reply.
		{"100", false},
		{"500", false},
		{"hola", false},
		{"650 euros", false},
		{"-650", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := orphanPrice(cat, tc.text); got != tc.want {
			t.Errorf("orphanPrice(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
