// Package execlog writes the full exchange of every processed trigger to
// secondary log sinks without blocking the caller.
package execlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/forumbot/internal/metrics"
	"github.com/user/forumbot/internal/types"
)

const defaultWriteTimeout = 10 * time.Second

// Sink is a named execution log destination.
type Sink struct {
	Name string
	Log  types.ExecutionLog
}

// Logger fans entries out to its sinks in tracked background goroutines.
// Failures are logged and counted, never returned.
type Logger struct {
	sinks   []Sink
	retry   *RetryPolicy
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// Option configures a Logger.
type Option func(*Logger)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(l *Logger) { l.retry = p }
}

// WithMetrics counts write failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithTimeout bounds each entry's writes, retries included.
func WithTimeout(d time.Duration) Option {
	return func(l *Logger) { l.timeout = d }
}

// New creates a Logger. Sinks with a nil Log are skipped.
func New(sinks []Sink, opts ...Option) *Logger {
	l := &Logger{
		retry:   DefaultRetryPolicy(),
		timeout: defaultWriteTimeout,
	}
	for _, s := range sinks {
		if s.Log != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record writes entry to every sink in the background and returns
// immediately.
func (l *Logger) Record(entry types.ExecutionEntry) {
	if l == nil || len(l.sinks) == 0 {
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	for _, sink := range l.sinks {
		l.wg.Add(1)
		go func(sink Sink, entry types.ExecutionEntry) {
			defer l.wg.Done()
			l.write(sink, &entry)
		}(sink, entry)
	}
}

func (l *Logger) write(sink Sink, entry *types.ExecutionEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	err := l.retry.Execute(ctx, func(ctx context.Context) error {
		return sink.Log.AppendExecution(ctx, entry)
	})
	if err != nil {
		l.metrics.LogWriteFailed(sink.Name)
		slog.Warn("execution log write failed", "sink", sink.Name, "trigger_id", string(entry.TriggerID), "error", err)
	}
}

// Wait blocks until all in-flight writes have finished.
func (l *Logger) Wait() {
	if l != nil {
		l.wg.Wait()
	}
}
