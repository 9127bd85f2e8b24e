package realtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/user/forumbot/internal/types"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.URL = "redis://" + mr.Addr()
	s := New(cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestPutAndGet(t *testing.T) {
	s, mr := newTestStore(t, Config{Prefix: "bot", TTL: time.Minute})
	ctx := context.Background()

	entry := &types.ExecutionEntry{TriggerID: "comments:7", InputText: "hi", OutputText: "hello", Model: "m"}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if !mr.Exists("bot:memory:comments:7") {
		t.Fatal("expected memory key to exist")
	}
	got, err := s.Get(ctx, "comments:7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OutputText != "hello" || got.Model != "m" {
		t.Errorf("unexpected entry %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "comments:7"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected entry to expire, got %v", err)
	}
}

func TestRecentIsCapped(t *testing.T) {
	s, _ := newTestStore(t, Config{LogCap: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Put(ctx, &types.ExecutionEntry{TriggerID: types.TriggerID(fmt.Sprintf("posts:%d", i))}); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []types.TriggerID{"posts:4", "posts:3", "posts:2"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestDisabledStoreIsNoop(t *testing.T) {
	s := New(Config{})
	if s.Enabled() {
		t.Fatal("expected store without url to be disabled")
	}
	if err := s.Put(context.Background(), &types.ExecutionEntry{TriggerID: "x"}); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	if _, err := s.Get(context.Background(), "x"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBadURL(t *testing.T) {
	s := New(Config{URL: "not-a-url://"})
	if err := s.Put(context.Background(), &types.ExecutionEntry{TriggerID: "x"}); err == nil {
		t.Fatal("expected error for bad url")
	}
}

func TestUnavailableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewWithClient(client, Config{})
	t.Cleanup(func() { _ = s.Close() })
	mr.Close()

	if err := s.Put(context.Background(), &types.ExecutionEntry{TriggerID: "x"}); err == nil {
		t.Fatal("expected Put to fail when redis is unavailable")
	}
}
