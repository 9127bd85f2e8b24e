// internal/types/models.go
package types

import (
	"time"
)

// Watched source tables.
const (
	TablePosts          = "posts"
	TableComments       = "comments"
	TableThreads        = "threads"
	TableThreadComments = "thread_comments"
)

// Deletable reports whether rows of table may be removed by the bot.
func Deletable(table string) bool {
	switch table {
	case TablePosts, TableThreads, TableComments:
		return true
	}
	return false
}

// ClaimRecord is one entry of the processing log keyed by trigger id.
type ClaimRecord struct {
	ID         ClaimID   `json:"id"`
	TriggerID  TriggerID `json:"trigger_id"`
	InputText  string    `json:"input_text"`
	OutputText string    `json:"output_text"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type PostSummary struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

type Post struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	AuthorID    string   `json:"user_id"`
}

type Thread struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ParentPostID string `json:"parent_post_id"`
}

type PollOption struct {
	ID         int64  `json:"id"`
	PollID     string `json:"poll_id"`
	Text       string `json:"option_text"`
	VotesCount int    `json:"votes_count"`
}

type Poll struct {
	ID       string       `json:"id"`
	PostID   string       `json:"post_id"`
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
}

// NewPost is the insert shape for posts created by the bot.
type NewPost struct {
	Title       string
	Description string
	Tags        []string
	AuthorID    string
}

type NewPoll struct {
	PostID    string
	Question  string
	CreatedBy string
}

// ReplyRow is a reply destined for one of the watched tables. ParentField
// names the column linking the reply to its parent row.
type ReplyRow struct {
	Table       string
	ParentField string
	ParentID    string
	Title       string
	Content     string
	AuthorID    string
}

// ExecutionEntry is one row of the secondary execution log.
type ExecutionEntry struct {
	TriggerID        TriggerID `json:"trigger_id"`
	InputText        string    `json:"input_text"`
	OutputText       string    `json:"output_text"`
	Source           string    `json:"source"`
	Model            string    `json:"model"`
	ApproxTokenCount int       `json:"approx_token_count"`
	Action           string    `json:"action,omitempty"`
	At               time.Time `json:"at"`
}
