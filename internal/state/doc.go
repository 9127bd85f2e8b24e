// Package state provides the Postgres-backed content store and claim log and
// a filesystem-backed execution log.
package state

import "github.com/user/forumbot/internal/types"

// Compile-time interface compliance checks.
var _ types.ContentStore = (*PGStore)(nil)
var _ types.ClaimLog = (*PGStore)(nil)
var _ types.ExecutionLog = (*PGStore)(nil)
var _ types.ExecutionLog = (*ExecutionFile)(nil)
