// internal/types/interfaces.go
package types

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateClaim is returned by ClaimLog.Insert when the log enforces
	// uniqueness on trigger id and a claim already exists.
	ErrDuplicateClaim = errors.New("duplicate claim")
)

// ContentStore is the subset of the community content store the bot reads
// and writes.
type ContentStore interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
	RecentPostsByAuthor(ctx context.Context, authorID string, limit int) ([]PostSummary, error)
	CountCommentsByAuthor(ctx context.Context, authorID string) (int, error)
	Post(ctx context.Context, id string) (*Post, error)
	Thread(ctx context.Context, id string) (*Thread, error)
	PollForPost(ctx context.Context, postID string) (*Poll, error)
	Settings(ctx context.Context) (map[string]string, error)

	InsertPost(ctx context.Context, post NewPost) (string, error)
	InsertPoll(ctx context.Context, poll NewPoll) (string, error)
	InsertPollOptions(ctx context.Context, pollID string, options []string) ([]PollOption, error)
	HasVoted(ctx context.Context, pollID, userID string) (bool, error)
	InsertVote(ctx context.Context, pollID string, optionID int64, userID string) error
	IncrementOptionVotes(ctx context.Context, optionID int64) error
	DeleteRow(ctx context.Context, table, id string) error
	InsertReply(ctx context.Context, reply ReplyRow) error
}

// ClaimLog is the shared processing log used for at-most-once claims. It is
// not required to enforce uniqueness on trigger id.
type ClaimLog interface {
	InsertClaim(ctx context.Context, rec *ClaimRecord) error
	EarliestClaims(ctx context.Context, triggerID TriggerID, limit int) ([]*ClaimRecord, error)
	ClaimExists(ctx context.Context, triggerID TriggerID) (bool, error)
	UpdateClaimOutput(ctx context.Context, id ClaimID, output string) error
	DeleteClaim(ctx context.Context, id ClaimID) error
	StaleClaims(ctx context.Context, output string, olderThan time.Time) ([]*ClaimRecord, error)
}

// ExecutionLog is the append-only secondary log.
type ExecutionLog interface {
	AppendExecution(ctx context.Context, entry *ExecutionEntry) error
}
