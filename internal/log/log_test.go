package log

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type widget struct{ _ int }

func TestForTagsSource(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := new(widget)

	For(zap.New(core), w).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries; want 1", len(entries))
	}
	want := fmt.Sprintf("widget(%p)", w)
	if got := entries[0].ContextMap()["src"]; got != want {
		t.Errorf("src field = %v; want %v", got, want)
	}
}

func TestNew(t *testing.T) {
	for _, production := range []bool{false, true} {
		logger, err := New(production)
		if err != nil {
			t.Fatalf("New(%v): %v", production, err)
		}
		if got := logger.Core().Enabled(zap.DebugLevel); got == production {
			t.Errorf("New(%v) debug enabled = %v", production, got)
		}
	}
}
