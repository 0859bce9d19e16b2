package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/filipexyz/keygate/internal/engine"
)

func TestReaderQuery(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := NewPublisher(env.js)

	types := []string{
		engine.EventProjectCreated,
		engine.EventCredentialIssued,
		engine.EventCredentialVerified,
		engine.EventCredentialVerified,
	}
	for i, typ := range types {
		ev := engine.Event{
			ID:   fmt.Sprintf("evt_reader%d", i),
			Type: typ,
			Slot: uint64(i),
			Data: json.RawMessage(`{}`),
		}
		if err := p.Emit(ctx, ev); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	r := NewReader(env.stream)

	all, err := r.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d events, want 4", len(all))
	}
	if all[0].Event.Type != engine.EventProjectCreated {
		t.Errorf("first event type = %q", all[0].Event.Type)
	}
	if all[0].Seq == 0 {
		t.Error("expected stream sequence on stored event")
	}

	verified, err := r.Query(ctx, QueryOptions{Type: engine.EventCredentialVerified})
	if err != nil {
		t.Fatalf("query by type: %v", err)
	}
	if len(verified) != 2 {
		t.Errorf("got %d verified events, want 2", len(verified))
	}

	limited, err := r.Query(ctx, QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("query with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d events with limit 2, want 2", len(limited))
	}
}
