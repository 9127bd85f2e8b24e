package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/forumbot/internal/claim"
	"github.com/user/forumbot/internal/config"
	"github.com/user/forumbot/internal/execlog"
	"github.com/user/forumbot/internal/intent"
	"github.com/user/forumbot/internal/metrics"
	"github.com/user/forumbot/internal/state/memstore"
	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
	"github.com/user/forumbot/pkg/llm"
)

const botID = "bot-1"

// mockProvider returns a fixed response or error.
type mockProvider struct {
	content string
	err     error
	calls   atomic.Int32
}

func (m *mockProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Content: m.content, Model: "mock-model"}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{BotUserID: botID}
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func newTestRuntime(t *testing.T, cfg *config.Config, store *memstore.Store, p *mockProvider, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithProviderFactory(func(context.Context, llm.Config) (llm.Provider, error) {
		return p, nil
	})}, opts...)
	return New(cfg, store, store, opts...)
}

func seededStore() *memstore.Store {
	store := memstore.New()
	store.AddProfile("u1", "alice")
	store.AddPost(types.Post{ID: "p1", Title: "Weekend plans", Description: "What is everyone doing?", AuthorID: "u2"})
	return store
}

func commentEvent(id, content string) *trigger.Event {
	return &trigger.Event{
		Type:   "INSERT",
		Table:  types.TableComments,
		Record: trigger.Record{"id": id, "post_id": "p1", "user_id": "u1", "content": content},
	}
}

func TestProcessReply(t *testing.T) {
	store := seededStore()
	p := &mockProvider{content: `Sure! {"action":"reply","reply":"Hiking sounds great."}`}
	m := metrics.New()
	logger := execlog.New([]execlog.Sink{{Name: "memory", Log: store}})
	rt := newTestRuntime(t, testConfig(), store, p, WithMetrics(m), WithExecLog(logger))

	res, err := rt.Process(context.Background(), commentEvent("c1", "Any ideas for Saturday?"))
	if err != nil {
		t.Fatal(err)
	}
	logger.Wait()

	if res.Message != MessageProcessed || res.Action != intent.ActionReply {
		t.Fatalf("unexpected result %+v", res)
	}
	replies := store.Replies()
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	r := replies[0]
	if r.Table != types.TableComments || r.ParentField != "post_id" || r.ParentID != "p1" || r.AuthorID != botID {
		t.Errorf("unexpected reply row %+v", r)
	}
	if r.Content != trigger.BotMarker+" Hiking sounds great." {
		t.Errorf("unexpected reply content %q", r.Content)
	}

	claims := store.Claims()
	if len(claims) != 1 || claims[0].OutputText != r.Content || claims[0].TriggerID != "c1" {
		t.Errorf("expected one finalized claim, got %+v", claims)
	}

	execs := store.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution entry, got %d", len(execs))
	}
	if execs[0].Model != "mock-model" || execs[0].Action != intent.ActionReply || execs[0].ApproxTokenCount == 0 {
		t.Errorf("unexpected execution entry %+v", execs[0])
	}
	if got := testutil.ToFloat64(m.Triggers.WithLabelValues(metrics.OutcomeProcessed)); got != 1 {
		t.Errorf("expected 1 processed trigger, got %v", got)
	}
}

func TestProcessConcurrentDeliveries(t *testing.T) {
	store := seededStore()
	p := &mockProvider{content: `{"action":"reply","reply":"Only once."}`}
	m := metrics.New()
	rt := newTestRuntime(t, testConfig(), store, p, WithMetrics(m))

	const n = 12
	ev := commentEvent("c-dup", "Is anyone around?")
	var (
		wg        sync.WaitGroup
		processed atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := rt.Process(context.Background(), ev)
			if err != nil {
				t.Error(err)
				return
			}
			switch res.Message {
			case MessageProcessed:
				processed.Add(1)
			case MessageDuplicate:
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	if processed.Load() != 1 || dupes.Load() != n-1 {
		t.Errorf("expected 1 processed and %d duplicates, got %d and %d", n-1, processed.Load(), dupes.Load())
	}
	if len(store.Replies()) != 1 {
		t.Errorf("expected exactly one reply, got %d", len(store.Replies()))
	}
	claims := store.Claims()
	if len(claims) != 1 || claims[0].OutputText == claim.OutputProcessing {
		t.Errorf("expected exactly one finalized claim, got %+v", claims)
	}
	if p.calls.Load() != 1 {
		t.Errorf("expected one generation call, got %d", p.calls.Load())
	}
}

func TestProcessIgnoresSelfAuthored(t *testing.T) {
	store := seededStore()
	p := &mockProvider{content: `{"action":"reply","reply":"x"}`}
	rt := newTestRuntime(t, testConfig(), store, p)

	ev := commentEvent("c2", "my own words")
	ev.Record["user_id"] = botID
	res, err := rt.Process(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageIgnored || res.Reason != trigger.ReasonSelfAuthored {
		t.Errorf("unexpected result %+v", res)
	}
	if store.ClaimWrites() != 0 {
		t.Errorf("expected zero claim writes, got %d", store.ClaimWrites())
	}
	if p.calls.Load() != 0 {
		t.Error("provider must not be called for ignored triggers")
	}
}

func TestProcessIgnoresBotMarker(t *testing.T) {
	store := seededStore()
	rt := newTestRuntime(t, testConfig(), store, &mockProvider{})

	res, err := rt.Process(context.Background(), commentEvent("c3", trigger.BotMarker+" echo"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != MessageIgnored {
		t.Errorf("expected ignored, got %+v", res)
	}
	if len(store.Replies()) != 0 {
		t.Error("expected no replies")
	}
}

func TestProcessInvalidVote(t *testing.T) {
	store := seededStore()
	store.AddPoll("p1", "Best day?", "Saturday", "Sunday")
	p := &mockProvider{content: `{"action":"vote_poll","vote_data":{"option_id":999,"comment":"Voted!"}}`}
	rt := newTestRuntime(t, testConfig(), store, p)

	res, err := rt.Process(context.Background(), commentEvent("c4", "Please vote in the poll"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != intent.ActionReply {
		t.Errorf("expected refusal reply, got %q", res.Action)
	}
	if len(store.Votes()) != 0 {
		t.Errorf("expected no votes, got %+v", store.Votes())
	}
	replies := store.Replies()
	if len(replies) != 1 || !strings.Contains(replies[0].Content, intent.InvalidVoteText) {
		t.Errorf("expected invalid vote text, got %+v", replies)
	}
}

func TestProcessValidVote(t *testing.T) {
	store := seededStore()
	pl := store.AddPoll("p1", "Best day?", "Saturday", "Sunday")
	p := &mockProvider{content: `{"action":"vote_poll","vote_data":{"option_id":"2","comment":"Sunday it is."}}`}
	rt := newTestRuntime(t, testConfig(), store, p)

	res, err := rt.Process(context.Background(), commentEvent("c5", "Cast your vote!"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != intent.ActionVotePoll {
		t.Fatalf("expected vote, got %+v", res)
	}
	votes := store.Votes()
	if len(votes) != 1 || votes[0].OptionID != 2 || votes[0].PollID != pl.ID || votes[0].UserID != botID {
		t.Errorf("unexpected votes %+v", votes)
	}
	if !strings.HasSuffix(res.Reply, "Sunday it is.") {
		t.Errorf("expected vote comment as reply, got %q", res.Reply)
	}
}

func TestProcessRemoveRefusedOnThreadComments(t *testing.T) {
	store := seededStore()
	store.AddThread(types.Thread{ID: "t1", Title: "Chat", ParentPostID: "p1"})
	p := &mockProvider{content: `{"action":"remove_content","reply":"spam"}`}
	rt := newTestRuntime(t, testConfig(), store, p)

	ev := &trigger.Event{
		Type:   "INSERT",
		Table:  types.TableThreadComments,
		Record: trigger.Record{"id": "tc1", "thread_id": "t1", "user_id": "u1", "content": "buy cheap stuff"},
	}
	res, err := rt.Process(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.Deletions()) != 0 {
		t.Errorf("expected zero deletes, got %+v", store.Deletions())
	}
	if !strings.Contains(res.Reply, intent.RefuseRemoveText) {
		t.Errorf("expected refusal text, got %q", res.Reply)
	}
	replies := store.Replies()
	if len(replies) != 1 || replies[0].Table != types.TableThreadComments || replies[0].ParentID != "t1" {
		t.Errorf("unexpected replies %+v", replies)
	}
}

func TestProcessRemoveComment(t *testing.T) {
	store := seededStore()
	store.AddComment("c6", "u1")
	p := &mockProvider{content: `{"action":"remove_content"}`}
	rt := newTestRuntime(t, testConfig(), store, p)

	res, err := rt.Process(context.Background(), commentEvent("c6", "spam spam spam"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != intent.ActionRemoveContent || res.Reply != "" {
		t.Errorf("unexpected result %+v", res)
	}
	dels := store.Deletions()
	if len(dels) != 1 || dels[0].Table != types.TableComments || dels[0].ID != "c6" {
		t.Errorf("unexpected deletions %+v", dels)
	}
	if len(store.Replies()) != 0 {
		t.Error("removed content must not be replied to")
	}
}

func TestProcessFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockProvider
	}{
		{"provider error", &mockProvider{err: &llm.ProviderError{Provider: llm.KindOpenAI, StatusCode: 503, Reason: "unavailable"}}},
		{"unparseable output", &mockProvider{content: "I think you should go hiking."}},
		{"empty output", &mockProvider{content: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			m := metrics.New()
			rt := newTestRuntime(t, testConfig(), store, tt.provider, WithMetrics(m))

			res, err := rt.Process(context.Background(), commentEvent("c7", "Hello?"))
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(res.Reply, intent.ApologyText) {
				t.Errorf("expected apology, got %q", res.Reply)
			}
			claims := store.Claims()
			if len(claims) != 1 || claims[0].OutputText == claim.OutputProcessing {
				t.Errorf("expected finalized claim, got %+v", claims)
			}
			wantErrs := 0.0
			if tt.provider.err != nil {
				wantErrs = 1
			}
			if got := testutil.ToFloat64(m.ProviderErrors.WithLabelValues("openai")); got != wantErrs {
				t.Errorf("expected %v provider errors, got %v", wantErrs, got)
			}
		})
	}
}

func TestProcessConfigErrors(t *testing.T) {
	t.Run("missing bot id", func(t *testing.T) {
		cfg := testConfig()
		cfg.BotUserID = ""
		store := seededStore()
		rt := newTestRuntime(t, cfg, store, &mockProvider{})

		_, err := rt.Process(context.Background(), commentEvent("c8", "hi"))
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if store.ClaimWrites() != 0 {
			t.Error("expected no claim writes")
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		cfg := testConfig()
		cfg.LLM.APIKey = ""
		store := seededStore()
		rt := newTestRuntime(t, cfg, store, &mockProvider{})

		_, err := rt.Process(context.Background(), commentEvent("c9", "hi"))
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if !errors.Is(err, config.ErrMissingCredentials) {
			t.Errorf("expected missing credentials cause, got %v", err)
		}
		if store.ClaimWrites() != 0 || len(store.Replies()) != 0 {
			t.Error("expected no store mutation")
		}
	})

	t.Run("settings table credentials", func(t *testing.T) {
		cfg := testConfig()
		cfg.LLM.APIKey = ""
		store := seededStore()
		store.SetSettings(map[string]string{config.KeyAPIKey: "from-table"})
		var got llm.Config
		p := &mockProvider{content: `{"action":"reply","reply":"ok"}`}
		rt := New(cfg, store, store, WithProviderFactory(func(_ context.Context, c llm.Config) (llm.Provider, error) {
			got = c
			return p, nil
		}))

		if _, err := rt.Process(context.Background(), commentEvent("c10", "hi")); err != nil {
			t.Fatal(err)
		}
		if got.APIKey != "from-table" {
			t.Errorf("expected key from settings table, got %q", got.APIKey)
		}
	})
}

func TestProcessClaimUnavailable(t *testing.T) {
	store := seededStore()
	rt := New(testConfig(), store, brokenClaims{store}, WithProviderFactory(func(context.Context, llm.Config) (llm.Provider, error) {
		return &mockProvider{}, nil
	}))

	_, err := rt.Process(context.Background(), commentEvent("c11", "hi"))
	if !errors.Is(err, claim.ErrClaimUnavailable) {
		t.Fatalf("expected ErrClaimUnavailable, got %v", err)
	}
	if len(store.Replies()) != 0 {
		t.Error("expected no side effects")
	}
}

type brokenClaims struct {
	*memstore.Store
}

func (brokenClaims) InsertClaim(context.Context, *types.ClaimRecord) error {
	return errors.New("connection refused")
}

func TestProcessCreatePostScrubsDuplicatedList(t *testing.T) {
	store := seededStore()
	p := &mockProvider{content: `{
		"action": "create_post",
		"reply": "Poll is up!",
		"post_data": {
			"title": "Team lunch poll",
			"content": "Where should we eat on Friday?\n- Pizza\n- Sushi\n- Tacos",
			"tags": ["food"],
			"poll": {"question": "Where should we eat?", "options": ["Pizza", "Sushi", "Tacos"]}
		}
	}`}
	rt := newTestRuntime(t, testConfig(), store, p)

	ev := &trigger.Event{
		Type:   "INSERT",
		Table:  types.TablePosts,
		Record: trigger.Record{"id": "p9", "user_id": "u1", "title": "Lunch", "content": "Can you make a poll for Friday lunch?"},
	}
	res, err := rt.Process(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != intent.ActionCreatePost {
		t.Fatalf("expected create_post, got %+v", res)
	}

	var created *types.Post
	for _, post := range store.Posts() {
		if post.AuthorID == botID {
			created = &post
		}
	}
	if created == nil {
		t.Fatal("expected a post authored by the bot")
	}
	if strings.Contains(created.Description, "- Pizza") {
		t.Errorf("inline list should be scrubbed, got %q", created.Description)
	}
	if !strings.Contains(created.Description, "Where should we eat on Friday?") {
		t.Errorf("body text lost: %q", created.Description)
	}

	pl, err := store.PollForPost(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pl.Options) != 3 {
		t.Errorf("expected 3 poll options, got %+v", pl.Options)
	}
	votes := store.Votes()
	if len(votes) != 1 || votes[0].UserID != botID {
		t.Errorf("expected one seed vote by the bot, got %+v", votes)
	}

	replies := store.Replies()
	if len(replies) != 1 || replies[0].Table != types.TableThreads || replies[0].ParentID != "p9" {
		t.Errorf("expected reply thread under the triggering post, got %+v", replies)
	}
}
