// Package claim implements the at-most-once processing protocol over a
// shared processing log that may lack a uniqueness constraint.
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/forumbot/internal/types"
)

// Output markers written to ClaimRecord.OutputText.
const (
	OutputProcessing = "processing"
	errorPrefix      = "error: "
)

var (
	// ErrAlreadyProcessed means another invocation owns the trigger.
	ErrAlreadyProcessed = errors.New("trigger already processed")
	// ErrClaimUnavailable means ownership could not be established either way.
	ErrClaimUnavailable = errors.New("claim unavailable")
)

// ErrorOutput renders the finalize marker for a failed invocation.
func ErrorOutput(reason string) string {
	return errorPrefix + reason
}

// Manager claims triggers on a ClaimLog.
type Manager struct {
	log    types.ClaimLog
	onLost func()
}

// NewManager creates a Manager. onLost, if non-nil, is called every time a
// detected race is lost.
func NewManager(log types.ClaimLog, onLost func()) *Manager {
	return &Manager{log: log, onLost: onLost}
}

// Claim inserts a placeholder for triggerID and verifies it is the earliest
// one. It returns the claim id when this invocation won, ErrAlreadyProcessed
// when another invocation owns the trigger, or an error wrapping
// ErrClaimUnavailable when neither can be established.
func (m *Manager) Claim(ctx context.Context, triggerID types.TriggerID, input, source string) (types.ClaimID, error) {
	rec := &types.ClaimRecord{
		ID:         types.NewClaimID(),
		TriggerID:  triggerID,
		InputText:  input,
		OutputText: OutputProcessing,
		Source:     source,
	}

	if err := m.log.InsertClaim(ctx, rec); err != nil {
		if errors.Is(err, types.ErrDuplicateClaim) {
			return "", ErrAlreadyProcessed
		}
		exists, existsErr := m.log.ClaimExists(ctx, triggerID)
		if existsErr == nil && exists {
			return "", ErrAlreadyProcessed
		}
		return "", fmt.Errorf("%w: insert placeholder: %v", ErrClaimUnavailable, err)
	}

	earliest, err := m.log.EarliestClaims(ctx, triggerID, 2)
	if err != nil {
		m.release(ctx, rec.ID)
		return "", fmt.Errorf("%w: verify claim: %v", ErrClaimUnavailable, err)
	}
	if len(earliest) == 0 {
		return "", fmt.Errorf("%w: placeholder %s not visible", ErrClaimUnavailable, rec.ID)
	}
	if earliest[0].ID != rec.ID {
		slog.Info("claim race lost", "trigger_id", string(triggerID), "winner", string(earliest[0].ID), "loser", string(rec.ID))
		m.release(ctx, rec.ID)
		if m.onLost != nil {
			m.onLost()
		}
		return "", ErrAlreadyProcessed
	}
	return rec.ID, nil
}

// Finalize overwrites the placeholder output of a won claim.
func (m *Manager) Finalize(ctx context.Context, id types.ClaimID, output string) error {
	if err := m.log.UpdateClaimOutput(ctx, id, output); err != nil {
		return fmt.Errorf("finalize claim %s: %w", id, err)
	}
	return nil
}

// release deletes a placeholder; failure leaves a stale duplicate, which
// later deliveries treat as in-flight.
func (m *Manager) release(ctx context.Context, id types.ClaimID) {
	if err := m.log.DeleteClaim(ctx, id); err != nil {
		slog.Warn("release claim placeholder failed", "claim_id", string(id), "error", err)
	}
}
