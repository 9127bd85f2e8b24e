// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ClaimID string
type TriggerID string

func NewClaimID() ClaimID {
	return ClaimID(uuid.New().String())
}

// NewRowID returns a fresh identifier for rows created by in-process stores.
func NewRowID() string {
	return uuid.New().String()
}
