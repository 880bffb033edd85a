package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("COURIER_TEST_STR", "value")
	if got := GetEnv("COURIER_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("expected value, got %s", got)
	}
	if got := GetEnv("COURIER_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("COURIER_TEST_INT", "42")
	if got := GetEnvInt("COURIER_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	t.Setenv("COURIER_TEST_INT", "not-a-number")
	if got := GetEnvInt("COURIER_TEST_INT", 7); got != 7 {
		t.Fatalf("unparseable value should fall back, got %d", got)
	}
	if got := GetEnvInt("COURIER_TEST_UNSET", 7); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Setenv("COURIER_TEST_BOOL", tt.raw)
		if got := GetEnvBool("COURIER_TEST_BOOL", !tt.want); got != tt.want {
			t.Fatalf("GetEnvBool(%q) = %v", tt.raw, got)
		}
	}

	t.Setenv("COURIER_TEST_BOOL", "maybe")
	if !GetEnvBool("COURIER_TEST_BOOL", true) {
		t.Fatalf("unparseable value should fall back to default")
	}
}

func TestGetEnvSeconds(t *testing.T) {
	t.Setenv("COURIER_TEST_SECS", "90")
	if got := GetEnvSeconds("COURIER_TEST_SECS", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	if got := GetEnvSeconds("COURIER_TEST_UNSET", 30*time.Second); got != 30*time.Second {
		t.Fatalf("expected default 30s, got %v", got)
	}

	t.Setenv("COURIER_TEST_SECS", "ninety")
	if got := GetEnvSeconds("COURIER_TEST_SECS", time.Second); got != time.Second {
		t.Fatalf("unparseable value should fall back, got %v", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("COURIER_TEST_LIST", "alpha, beta ,,gamma")
	got := GetEnvList("COURIER_TEST_LIST")
	want := []string{"alpha", "beta", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if got := GetEnvList("COURIER_TEST_UNSET"); got != nil {
		t.Fatalf("unset variable should yield nil, got %v", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"critical", logrus.FatalLevel},
		{"", logrus.InfoLevel},
		{"bogus", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.raw)
		if got := GetLogLevel(); got != tt.want {
			t.Fatalf("GetLogLevel with %q = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
