// Package runtime runs one trigger through the full pipeline: guard, claim,
// context, generation, intent, action and delivery.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/forumbot/internal/actions"
	"github.com/user/forumbot/internal/claim"
	"github.com/user/forumbot/internal/config"
	ctxengine "github.com/user/forumbot/internal/context"
	"github.com/user/forumbot/internal/delivery"
	"github.com/user/forumbot/internal/execlog"
	"github.com/user/forumbot/internal/intent"
	"github.com/user/forumbot/internal/metrics"
	"github.com/user/forumbot/internal/personality"
	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
	"github.com/user/forumbot/pkg/llm"
	"github.com/user/forumbot/pkg/llm/providers"
)

// Result messages.
const (
	MessageIgnored   = "ignored"
	MessageDuplicate = "duplicate ignored"
	MessageProcessed = "processed"
)

const finalizeTimeout = 5 * time.Second

// ConfigError means the invocation cannot run with the current
// configuration. Nothing has been written when it is returned.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Reason, e.Err)
	}
	return "config error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Result is the outcome of one invocation.
type Result struct {
	Message string
	Reason  string
	Action  string
	Reply   string
	ClaimID types.ClaimID
}

// ProviderFactory builds the provider for one invocation's settings.
type ProviderFactory func(ctx context.Context, cfg llm.Config) (llm.Provider, error)

// Runtime processes trigger events.
type Runtime struct {
	cfg         *config.Config
	store       types.ContentStore
	guard       *trigger.Guard
	claims      *claim.Manager
	assembler   *ctxengine.Assembler
	counter     *ctxengine.TokenCounter
	executor    *actions.Executor
	dispatcher  *delivery.Dispatcher
	execlog     *execlog.Logger
	metrics     *metrics.Metrics
	newProvider ProviderFactory
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithMetrics(m *metrics.Metrics) Option {
	return func(rt *Runtime) { rt.metrics = m }
}

func WithExecLog(l *execlog.Logger) Option {
	return func(rt *Runtime) { rt.execlog = l }
}

func WithProviderFactory(f ProviderFactory) Option {
	return func(rt *Runtime) { rt.newProvider = f }
}

func WithTokenCounter(c *ctxengine.TokenCounter) Option {
	return func(rt *Runtime) { rt.counter = c }
}

// New creates a Runtime reading and writing content through store and
// claiming triggers on claims.
func New(cfg *config.Config, store types.ContentStore, claims types.ClaimLog, opts ...Option) *Runtime {
	rt := &Runtime{
		cfg:         cfg,
		store:       store,
		guard:       trigger.NewGuard(cfg.BotUserID),
		executor:    actions.NewExecutor(store, cfg.BotUserID),
		dispatcher:  delivery.NewDispatcher(store, cfg.BotUserID),
		newProvider: providers.New,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.counter == nil {
		rt.counter = ctxengine.NewTokenCounter(cfg.LLM.Model)
	}
	rt.claims = claim.NewManager(claims, rt.metrics.RaceLost)
	rt.assembler = ctxengine.NewAssembler(store, rt.counter, cfg.StoreTimeout())
	rt.assembler.SetHistoryBudget(cfg.Context.HistoryBudget)
	return rt
}

// Claims exposes the claim manager for the sweeper.
func (rt *Runtime) Claims() *claim.Manager {
	return rt.claims
}

// Process runs ev through the pipeline. Only configuration problems and an
// unavailable claim log are returned as errors; every other failure degrades
// to a fallback reply.
func (rt *Runtime) Process(ctx context.Context, ev *trigger.Event) (*Result, error) {
	if rt.cfg.BotUserID == "" {
		rt.metrics.Trigger(metrics.OutcomeFailed)
		return nil, &ConfigError{Reason: "bot user id is not configured"}
	}

	if v := rt.guard.Check(ev); !v.Accepted() {
		rt.metrics.Trigger(metrics.OutcomeIgnored)
		slog.Debug("trigger ignored", "reason", v.Reason)
		return &Result{Message: MessageIgnored, Reason: v.Reason}, nil
	}

	settings, provider, err := rt.prepare(ctx)
	if err != nil {
		rt.metrics.Trigger(metrics.OutcomeFailed)
		return nil, err
	}

	triggerID := types.TriggerID(ev.Record.ID())
	message := ev.Record.MessageText()
	log := slog.With("trigger_id", string(triggerID), "table", ev.Table)

	claimID, err := rt.claims.Claim(ctx, triggerID, message, ev.Table)
	if errors.Is(err, claim.ErrAlreadyProcessed) {
		rt.metrics.Trigger(metrics.OutcomeDuplicate)
		log.Info("duplicate trigger ignored")
		return &Result{Message: MessageDuplicate}, nil
	}
	if err != nil {
		rt.metrics.Trigger(metrics.OutcomeFailed)
		return nil, fmt.Errorf("claim trigger %s: %w", triggerID, err)
	}

	final := claim.ErrorOutput("interrupted")
	defer func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if err := rt.claims.Finalize(fctx, claimID, final); err != nil {
			log.Warn("finalize claim failed", "claim_id", string(claimID), "error", err)
		}
	}()

	asm, err := rt.assembler.Assemble(ctx, ev)
	if err != nil {
		log.Warn("context assembly failed", "error", err)
		asm = &ctxengine.Assembled{}
	}

	raw, model, prompt := rt.generate(ctx, log, settings, provider, ev, asm)

	decision := intent.Apology()
	if raw != "" {
		if d, err := intent.Parse(raw); err != nil {
			log.Warn("model output unparseable, using apology", "error", err)
		} else {
			decision = d
		}
	}

	decision, err = intent.Resolve(decision, intent.Input{
		SourceTable:      ev.Table,
		MessageText:      message,
		PollOptions:      asm.PollOptions,
		AutoPostCreation: settings.Personality.AutoPostCreation,
	})
	if err != nil {
		log.Info("decision refused", "error", err)
	}

	outcome, execErr := rt.executor.Execute(ctx, decision, actions.Target{Table: ev.Table, RecordID: ev.Record.ID()})
	if execErr != nil {
		log.Warn("action failed", "action", decision.Action(), "error", execErr)
	}
	rt.metrics.Action(outcome.Action)

	result := &Result{Message: MessageProcessed, Action: outcome.Action, ClaimID: claimID}
	switch {
	case outcome.Removed:
		final = fmt.Sprintf("removed %s %s", ev.Table, ev.Record.ID())
	case outcome.Reply == "":
		final = "no reply"
	default:
		row, err := rt.dispatcher.Dispatch(ctx, ev, outcome.Reply)
		if err != nil {
			log.Warn("reply delivery failed", "error", err)
			final = claim.ErrorOutput("delivery failed")
			break
		}
		result.Reply = row.Content
		final = row.Content
	}
	if execErr != nil {
		final = claim.ErrorOutput(execErr.Error())
	}

	rt.metrics.Trigger(metrics.OutcomeProcessed)
	log.Info("trigger processed", "action", outcome.Action, "claim_id", string(claimID))

	rt.execlog.Record(types.ExecutionEntry{
		TriggerID:        triggerID,
		InputText:        message,
		OutputText:       raw,
		Source:           ev.Table,
		Model:            model,
		ApproxTokenCount: rt.counter.Count(prompt) + rt.counter.Count(raw),
		Action:           outcome.Action,
	})
	return result, nil
}

// prepare resolves settings and the provider before anything is written.
func (rt *Runtime) prepare(ctx context.Context) (config.Settings, llm.Provider, error) {
	raw, err := rt.store.Settings(ctx)
	if err != nil {
		slog.Warn("settings unavailable, using defaults", "error", err)
		raw = map[string]string{}
	}
	settings, err := rt.cfg.ResolveSettings(raw)
	if err != nil {
		return settings, nil, &ConfigError{Reason: "resolve settings", Err: err}
	}
	provider, err := rt.newProvider(ctx, settings.LLM)
	if err != nil {
		return settings, nil, &ConfigError{Reason: "create provider", Err: err}
	}
	return settings, provider, nil
}

// generate renders the prompt and calls the provider. An empty raw output
// means the call failed and the apology should be used.
func (rt *Runtime) generate(ctx context.Context, log *slog.Logger, settings config.Settings, provider llm.Provider, ev *trigger.Event, asm *ctxengine.Assembled) (raw, model, prompt string) {
	model = settings.LLM.Model
	prompt, err := ctxengine.RenderPrompt(ctxengine.NewPromptData(ev, asm))
	if err != nil {
		log.Error("prompt rendering failed", "error", err)
		return "", model, prompt
	}

	start := time.Now()
	resp, err := provider.Generate(ctx, llm.Request{
		System: personality.Build(settings.Personality),
		Prompt: prompt,
	})
	rt.metrics.ObserveGenerate(string(settings.LLM.Provider), time.Since(start).Seconds())
	if err != nil {
		rt.metrics.ProviderError(string(settings.LLM.Provider))
		log.Warn("generation failed, using apology", "provider", string(settings.LLM.Provider), "error", err)
		return "", model, prompt
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return resp.Content, model, prompt
}
