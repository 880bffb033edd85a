package channel

import (
	"strings"
	"testing"
)

func TestParseValidNames(t *testing.T) {
	valid := []string{
		"global",
		"trade",
		"user.alice",
		"strategy.abc-123",
		"backtest.42",
		"forge.job.xyz",
		"a",
		strings.Repeat("a", MaxNameLength),
	}
	for _, raw := range valid {
		if _, err := Parse(raw); err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
	}
}

func TestParseInvalidNames(t *testing.T) {
	invalid := []string{
		"",
		"Bad Name",
		"UPPER",
		"has_underscore",
		"emoji🚀",
		"slash/name",
		strings.Repeat("a", MaxNameLength+1),
	}
	for _, raw := range invalid {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q) should have failed", raw)
		}
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		global    bool
		user      bool
		ephemeral bool
	}{
		{"global", true, false, false},
		{"user.alice", false, true, false},
		{"strategy.s1", false, false, true},
		{"backtest.b1", false, false, true},
		{"forge.job.j1", false, false, true},
		{"trade", false, false, false},
	}
	for _, tt := range tests {
		ch, err := Parse(tt.name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.name, err)
		}
		if ch.IsGlobal() != tt.global {
			t.Fatalf("%q IsGlobal = %v", tt.name, ch.IsGlobal())
		}
		if ch.IsUserChannel() != tt.user {
			t.Fatalf("%q IsUserChannel = %v", tt.name, ch.IsUserChannel())
		}
		if ch.IsEphemeral() != tt.ephemeral {
			t.Fatalf("%q IsEphemeral = %v", tt.name, ch.IsEphemeral())
		}
	}
}

func TestUserID(t *testing.T) {
	ch, _ := Parse("user.alice")
	id, err := ch.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id != "alice" {
		t.Fatalf("expected alice, got %s", id)
	}

	ch, _ = Parse("global")
	if _, err := ch.UserID(); err == nil {
		t.Fatalf("UserID on non-user channel should fail")
	}
}

func TestAuthorizeRules(t *testing.T) {
	a := NewAuthorizer(nil)

	tests := []struct {
		userID  string
		channel string
		allowed bool
	}{
		{"alice", "global", true},
		{"alice", "user.alice", true},
		{"alice", "user.bob", false},
		{"alice", "strategy.s1", true},
		{"alice", "backtest.b1", true},
		{"alice", "forge.job.j1", true},
		{"alice", "trade", true},
		{"alice", "candles", true},
		{"alice", "payment", true},
		{"alice", "somethingelse", false},
	}
	for _, tt := range tests {
		ch, err := Parse(tt.channel)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.channel, err)
		}
		if got := a.Authorize(tt.userID, ch); got != tt.allowed {
			t.Fatalf("Authorize(%q, %q) = %v, want %v", tt.userID, tt.channel, got, tt.allowed)
		}
		// Deterministic: a second call gives the same answer
		if got := a.Authorize(tt.userID, ch); got != tt.allowed {
			t.Fatalf("Authorize(%q, %q) not deterministic", tt.userID, tt.channel)
		}
	}
}

func TestAuthorizeConfiguredChannels(t *testing.T) {
	a := NewAuthorizer([]string{"announcements"})

	ch, _ := Parse("announcements")
	if !a.Authorize("alice", ch) {
		t.Fatalf("configured channel should be allowed")
	}

	base := NewAuthorizer(nil)
	if base.Authorize("alice", ch) {
		t.Fatalf("unconfigured channel should be denied")
	}
}

func TestAuthorizeEmptyUserOnUserChannel(t *testing.T) {
	a := NewAuthorizer(nil)
	ch, _ := Parse("user.")
	if a.Authorize("", ch) {
		t.Fatalf("empty owner must never match")
	}
}
