package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Output: &buf, Service: "test"})

	log.WithField("user_id", "u-1").WithError(errors.New("boom")).Warn("sync failed after %d tries", 3)

	line := strings.TrimSpace(buf.String())
	var e struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Service string         `json:"service"`
		Error   string         `json:"error"`
		Fields  map[string]any `json:"fields"`
	}
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if e.Level != "WARN" {
		t.Errorf("expected level WARN, got %s", e.Level)
	}
	if e.Message != "sync failed after 3 tries" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if e.Service != "test" {
		t.Errorf("expected service test, got %s", e.Service)
	}
	if e.Error != "boom" {
		t.Errorf("expected error boom, got %q", e.Error)
	}
	if e.Fields["user_id"] != "u-1" {
		t.Errorf("expected user_id field, got %v", e.Fields)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "visible") {
		t.Errorf("wrong line survived filtering: %s", lines[0])
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Output: &buf})

	child := log.WithField("component", "sync")
	_ = child
	log.Info("parent entry")

	if strings.Contains(buf.String(), "component") {
		t.Error("parent logger picked up the child's field")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"WARN":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"bogus": LevelInfo,
		"info":  LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
