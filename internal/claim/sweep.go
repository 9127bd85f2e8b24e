package claim

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AbandonedOutput marks placeholders nobody finalized.
var AbandonedOutput = ErrorOutput("abandoned")

// Sweep finalizes placeholders still marked processing that were created
// before now-staleAfter. The records are kept, so re-deliveries of those
// triggers keep yielding. It returns the number of records swept.
func (m *Manager) Sweep(ctx context.Context, staleAfter time.Duration) (int, error) {
	stale, err := m.log.StaleClaims(ctx, OutputProcessing, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale claims: %w", err)
	}
	swept := 0
	for _, rec := range stale {
		if err := m.log.UpdateClaimOutput(ctx, rec.ID, AbandonedOutput); err != nil {
			slog.Warn("sweep claim failed", "claim_id", string(rec.ID), "error", err)
			continue
		}
		swept++
	}
	return swept, nil
}
