package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if !Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	if err := Init("chatty"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected debug to be disabled for unknown level")
	}
	if !Logger().Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info to be enabled for unknown level")
	}
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() { Set(nil) })
	Set(zap.New(core))

	WithModule("devotional").Info("loaded")
	Warn("plain")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["module"]; got != "devotional" {
		t.Fatalf("module field = %v, want devotional", got)
	}
	if _, ok := entries[1].ContextMap()["module"]; ok {
		t.Fatal("expected no module field on global helper entry")
	}
}
