// Package realtime mirrors execution entries into Redis so dashboards can
// follow the bot as it works.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/user/forumbot/internal/types"
)

const (
	DefaultPrefix = "forumbot"
	DefaultTTL    = 24 * time.Hour
	DefaultLogCap = 1000
)

// Config describes the Redis connection. An empty URL disables the store.
type Config struct {
	URL    string
	Prefix string
	TTL    time.Duration
	LogCap int64
}

// Store writes JSON documents keyed by trigger id. The client is created on
// first use and shared afterwards.
type Store struct {
	cfg Config

	once    sync.Once
	client  goredis.UniversalClient
	initErr error
}

// New returns a Store for cfg. No connection is made until the first Put.
func New(cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = DefaultLogCap
	}
	return &Store{cfg: cfg}
}

// NewWithClient returns a Store bound to an existing client.
func NewWithClient(client goredis.UniversalClient, cfg Config) *Store {
	s := New(cfg)
	s.once.Do(func() { s.client = client })
	return s
}

// Enabled reports whether the store has somewhere to write.
func (s *Store) Enabled() bool {
	return s != nil && (s.cfg.URL != "" || s.client != nil)
}

func (s *Store) handle() (goredis.UniversalClient, error) {
	s.once.Do(func() {
		opts, err := goredis.ParseURL(s.cfg.URL)
		if err != nil {
			s.initErr = fmt.Errorf("parsing redis url: %w", err)
			return
		}
		s.client = goredis.NewClient(opts)
	})
	return s.client, s.initErr
}

func (s *Store) memoryKey(id types.TriggerID) string {
	return s.cfg.Prefix + ":memory:" + string(id)
}

func (s *Store) logKey() string {
	return s.cfg.Prefix + ":log"
}

// AppendExecution implements types.ExecutionLog.
func (s *Store) AppendExecution(ctx context.Context, entry *types.ExecutionEntry) error {
	return s.Put(ctx, entry)
}

// Put stores entry under its trigger id and pushes the id onto the capped
// recent list. It is a no-op when the store is disabled.
func (s *Store) Put(ctx context.Context, entry *types.ExecutionEntry) error {
	if !s.Enabled() {
		return nil
	}
	client, err := s.handle()
	if err != nil {
		return err
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	pipe := client.TxPipeline()
	pipe.Set(ctx, s.memoryKey(entry.TriggerID), doc, s.cfg.TTL)
	pipe.LPush(ctx, s.logKey(), string(entry.TriggerID))
	pipe.LTrim(ctx, s.logKey(), 0, s.cfg.LogCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing realtime entry: %w", err)
	}
	return nil
}

// Get returns the stored entry for id, or types.ErrNotFound.
func (s *Store) Get(ctx context.Context, id types.TriggerID) (*types.ExecutionEntry, error) {
	if !s.Enabled() {
		return nil, types.ErrNotFound
	}
	client, err := s.handle()
	if err != nil {
		return nil, err
	}
	raw, err := client.Get(ctx, s.memoryKey(id)).Bytes()
	if err == goredis.Nil {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading realtime entry: %w", err)
	}
	var entry types.ExecutionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding realtime entry: %w", err)
	}
	return &entry, nil
}

// Recent returns up to limit trigger ids, newest first.
func (s *Store) Recent(ctx context.Context, limit int64) ([]types.TriggerID, error) {
	if !s.Enabled() {
		return nil, nil
	}
	client, err := s.handle()
	if err != nil {
		return nil, err
	}
	ids, err := client.LRange(ctx, s.logKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading realtime log: %w", err)
	}
	out := make([]types.TriggerID, len(ids))
	for i, id := range ids {
		out[i] = types.TriggerID(id)
	}
	return out, nil
}

// Close releases the client if one was created.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
