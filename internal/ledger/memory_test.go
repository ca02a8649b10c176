package ledger

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := store.For("device-1")

	if has, _ := l.Has(ctx, "idea-1"); has {
		t.Fatal("empty ledger reports membership")
	}
	for _, id := range []string{"idea-2", "idea-1", "idea-2"} {
		if err := l.Add(ctx, id); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}
	members, err := l.Members(ctx)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if !reflect.DeepEqual(members, []string{"idea-1", "idea-2"}) {
		t.Fatalf("Members() = %v", members)
	}
	if has, _ := store.For("device-1").Has(ctx, "idea-1"); !has {
		t.Fatal("a second handle for the same voter must see the entry")
	}
	if has, _ := store.For("device-2").Has(ctx, "idea-1"); has {
		t.Fatal("ledgers leaked between voters")
	}
}

func TestMemoryLedgerWatch(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	events, err := store.For("d").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	_ = store.For("d").Add(context.Background(), "idea-1")
	_ = store.For("d").Add(context.Background(), "idea-1")
	_ = store.For("other").Add(context.Background(), "idea-2")

	select {
	case id := <-events:
		if id != "idea-1" {
			t.Fatalf("Watch() delivered %q", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for append")
	}
	select {
	case id := <-events:
		t.Fatalf("unexpected second event %q", id)
	default:
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}
