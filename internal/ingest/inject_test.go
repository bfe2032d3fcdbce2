package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
)

func TestInjectSource_DeliversInjectedEvent(t *testing.T) {
	src := NewInjectSource()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan event.MarketEvent, 1)

	go src.Run(ctx, out)
	src.Inject(event.MarketEvent{Kind: event.KindSocial, Content: "hello"})

	select {
	case ev := <-out:
		if ev.Content != "hello" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.IngestedAt.IsZero() {
			t.Fatal("expected IngestedAt to be stamped when left zero")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for injected event")
	}
}

func TestInjectSource_StopsOnContextCancel(t *testing.T) {
	src := NewInjectSource()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan event.MarketEvent, 1)

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Run to return after cancel")
	}
}
