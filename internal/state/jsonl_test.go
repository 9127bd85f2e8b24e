package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/forumbot/internal/types"
)

func TestExecutionFile(t *testing.T) {
	dir := t.TempDir()
	log := NewExecutionFile(dir)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := &types.ExecutionEntry{
			TriggerID:  types.TriggerID(fmt.Sprintf("t%d", i)),
			InputText:  "hello",
			OutputText: "reply",
			Source:     "comments",
			Action:     "reply",
			At:         at.Add(time.Duration(i) * time.Minute),
		}
		if err := log.AppendExecution(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := log.Tail(ctx, at, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TriggerID != "t1" || entries[1].TriggerID != "t2" {
		t.Errorf("expected last two entries, got %s and %s", entries[0].TriggerID, entries[1].TriggerID)
	}

	other, err := log.Tail(ctx, at.AddDate(0, 0, 1), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected empty next day, got %d", len(other))
	}
}

func TestExecutionFileStampsTime(t *testing.T) {
	log := NewExecutionFile(t.TempDir())
	entry := &types.ExecutionEntry{TriggerID: "t"}
	if err := log.AppendExecution(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	if entry.At.IsZero() {
		t.Error("expected At to be set")
	}
}

func TestExecutionFileConcurrentAppends(t *testing.T) {
	log := NewExecutionFile(t.TempDir())
	ctx := context.Background()
	at := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := &types.ExecutionEntry{TriggerID: types.TriggerID(fmt.Sprint(i)), At: at}
			if err := log.AppendExecution(ctx, entry); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := log.Tail(ctx, at, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Errorf("expected 20 entries, got %d", len(entries))
	}
}
