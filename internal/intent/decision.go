// Package intent turns model output into a validated action decision.
package intent

import "github.com/user/forumbot/internal/poll"

// Action names as they appear in model output and metrics.
const (
	ActionReply         = "reply"
	ActionCreatePost    = "create_post"
	ActionVotePoll      = "vote_poll"
	ActionRemoveContent = "remove_content"
)

// Fixed user-visible texts.
const (
	ApologyText      = "Sorry, I couldn't come up with a response right now. Please try again later."
	InvalidVoteText  = "Sorry, I couldn't cast that vote because the option isn't part of this poll."
	RefuseRemoveText = "Sorry, I can't remove this kind of content."
	MissingPostText  = "Sorry, I couldn't create that post because it was missing a title or content."
)

// Decision is one of Reply, CreatePost, VotePoll or RemoveContent.
type Decision interface {
	Action() string
	decision()
}

// Reply posts Text back to the triggering conversation.
type Reply struct {
	Text string
}

// CreatePost creates a new post, optionally with a poll. Reply is posted
// back to the trigger afterwards.
type CreatePost struct {
	Title   string
	Content string
	Tags    []string
	Poll    *poll.Draft
	Reply   string
}

// VotePoll casts the bot's vote. PollID is filled in by Resolve from the
// matching option.
type VotePoll struct {
	OptionID int64
	PollID   string
	Comment  string
}

// RemoveContent deletes the triggering record.
type RemoveContent struct {
	Reason string
}

func (Reply) Action() string         { return ActionReply }
func (CreatePost) Action() string    { return ActionCreatePost }
func (VotePoll) Action() string      { return ActionVotePoll }
func (RemoveContent) Action() string { return ActionRemoveContent }

func (Reply) decision()         {}
func (CreatePost) decision()    {}
func (VotePoll) decision()      {}
func (RemoveContent) decision() {}

// Apology is the fallback decision for provider and parse failures.
func Apology() Decision {
	return Reply{Text: ApologyText}
}
