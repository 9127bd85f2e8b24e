package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/forumbot/internal/claim"
	"github.com/user/forumbot/internal/metrics"
	"github.com/user/forumbot/internal/state/memstore"
)

func waitFor(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(within)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("condition not met within %v", within)
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func TestSchedulerFiresJob(t *testing.T) {
	var fires atomic.Int32
	sched := New(Job{Name: "every-second", Schedule: "* * * * * *", Run: func(context.Context) { fires.Add(1) }})
	if n := sched.Start(); n != 1 {
		t.Fatalf("expected 1 registered job, got %d", n)
	}
	defer sched.Stop()

	waitFor(t, 2500*time.Millisecond, func() bool { return fires.Load() > 0 })
}

func TestSchedulerSkipsInvalid(t *testing.T) {
	sched := New(
		Job{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) {}},
		Job{Name: "unscheduled", Run: func(context.Context) {}},
		Job{Name: "no-func", Schedule: "@every 1h"},
	)
	if n := sched.Start(); n != 0 {
		t.Errorf("expected no registered jobs, got %d", n)
	}
	sched.Stop()
}

func TestSweepJob(t *testing.T) {
	store := memstore.New()
	mgr := claim.NewManager(store, nil)
	if _, err := mgr.Claim(context.Background(), "c1", "hi", "comments"); err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	job := SweepJob(mgr, "@every 1s", -time.Second, m)
	job.Run(context.Background())

	claims := store.Claims()
	if len(claims) != 1 || claims[0].OutputText != claim.AbandonedOutput {
		t.Errorf("expected claim marked abandoned, got %+v", claims)
	}
	if got := testutil.ToFloat64(m.ClaimsSwept); got != 1 {
		t.Errorf("expected 1 swept claim counted, got %v", got)
	}

	job.Run(context.Background())
	if got := testutil.ToFloat64(m.ClaimsSwept); got != 1 {
		t.Errorf("finalized claims must not be swept twice, got %v", got)
	}
}
