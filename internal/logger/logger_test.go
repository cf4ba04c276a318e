package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerEmitsEventAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.WarnObj("article dropped", "article_error", map[string]any{
		"url":   "https://example.com/a",
		"error": errors.New("boom"),
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["event"] != "article_error" {
		t.Fatalf("unexpected event field: %v", ctx["event"])
	}
	if ctx["url"] != "https://example.com/a" {
		t.Fatalf("unexpected url field: %v", ctx["url"])
	}
	if ctx["error"] != "boom" {
		t.Fatalf("unexpected error field: %v", ctx["error"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestEnsure(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatal("Ensure(nil) should return NopLogger")
	}
}
