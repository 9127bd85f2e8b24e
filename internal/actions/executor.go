// Package actions performs the store mutations for resolved decisions.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/user/forumbot/internal/intent"
	"github.com/user/forumbot/internal/poll"
	"github.com/user/forumbot/internal/types"
)

// Texts posted when an action completes or fails.
const (
	CreatedPostText  = "I've created a new post: %q"
	VotedText        = "I've cast my vote!"
	AlreadyVotedText = "I've already voted on this poll."
	CreateFailedText = "Sorry, I couldn't create that post right now."
	VoteFailedText   = "Sorry, I couldn't record my vote right now."
	RemoveFailedText = "Sorry, I couldn't remove this content right now."
)

// Target identifies the triggering record.
type Target struct {
	Table    string
	RecordID string
}

// Outcome is the result of an executed decision. Reply is empty when nothing
// should be posted back.
type Outcome struct {
	Action  string
	Reply   string
	Removed bool
	PostID  string
	PollID  string
}

// Executor applies decisions to the content store as the bot user.
type Executor struct {
	store types.ContentStore
	botID string
	pick  func([]types.PollOption) types.PollOption
}

// NewExecutor creates an Executor that writes as botID.
func NewExecutor(store types.ContentStore, botID string) *Executor {
	return &Executor{
		store: store,
		botID: botID,
		pick:  lo.Sample[types.PollOption],
	}
}

// Execute performs d. Store failures come back as an Outcome carrying a
// failure reply together with the error.
func (e *Executor) Execute(ctx context.Context, d intent.Decision, target Target) (Outcome, error) {
	switch d := d.(type) {
	case intent.Reply:
		return Outcome{Action: intent.ActionReply, Reply: d.Text}, nil
	case intent.CreatePost:
		return e.createPost(ctx, d)
	case intent.VotePoll:
		return e.vote(ctx, d)
	case intent.RemoveContent:
		return e.remove(ctx, target)
	default:
		return Outcome{}, fmt.Errorf("execute: unhandled decision %T", d)
	}
}

func (e *Executor) createPost(ctx context.Context, d intent.CreatePost) (Outcome, error) {
	out := Outcome{Action: intent.ActionCreatePost}

	postID, err := e.store.InsertPost(ctx, types.NewPost{
		Title:       d.Title,
		Description: d.Content,
		Tags:        d.Tags,
		AuthorID:    e.botID,
	})
	if err != nil {
		out.Reply = CreateFailedText
		return out, fmt.Errorf("create post: %w", err)
	}
	out.PostID = postID
	out.Reply = d.Reply
	if out.Reply == "" {
		out.Reply = fmt.Sprintf(CreatedPostText, d.Title)
	}

	if d.Poll.Valid() {
		pollID, err := e.createPoll(ctx, postID, d.Poll)
		if err != nil {
			slog.Warn("poll creation failed, post kept without poll", "post_id", postID, "error", err)
		} else {
			out.PollID = pollID
		}
	}
	return out, nil
}

func (e *Executor) createPoll(ctx context.Context, postID string, draft *poll.Draft) (string, error) {
	pollID, err := e.store.InsertPoll(ctx, types.NewPoll{
		PostID:    postID,
		Question:  draft.Question,
		CreatedBy: e.botID,
	})
	if err != nil {
		return "", err
	}

	texts := draft.Options
	if len(texts) > poll.MaxOptions {
		texts = texts[:poll.MaxOptions]
	}
	opts, err := e.store.InsertPollOptions(ctx, pollID, texts)
	if err != nil {
		return pollID, err
	}
	if len(opts) == 0 {
		return pollID, nil
	}

	seed := e.pick(opts)
	if err := e.castVote(ctx, pollID, seed.ID); err != nil {
		slog.Warn("seed vote failed", "poll_id", pollID, "option_id", seed.ID, "error", err)
	}
	return pollID, nil
}

func (e *Executor) vote(ctx context.Context, d intent.VotePoll) (Outcome, error) {
	out := Outcome{Action: intent.ActionVotePoll, PollID: d.PollID}

	voted, err := e.store.HasVoted(ctx, d.PollID, e.botID)
	if err != nil {
		out.Reply = VoteFailedText
		return out, fmt.Errorf("check vote: %w", err)
	}
	if voted {
		out.Reply = AlreadyVotedText
		return out, nil
	}

	if err := e.castVote(ctx, d.PollID, d.OptionID); err != nil {
		out.Reply = VoteFailedText
		return out, err
	}
	out.Reply = d.Comment
	if out.Reply == "" {
		out.Reply = VotedText
	}
	return out, nil
}

func (e *Executor) castVote(ctx context.Context, pollID string, optionID int64) error {
	if err := e.store.InsertVote(ctx, pollID, optionID, e.botID); err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	if err := e.store.IncrementOptionVotes(ctx, optionID); err != nil {
		return fmt.Errorf("increment votes: %w", err)
	}
	return nil
}

func (e *Executor) remove(ctx context.Context, target Target) (Outcome, error) {
	out := Outcome{Action: intent.ActionRemoveContent}
	if !types.Deletable(target.Table) {
		out.Reply = intent.RefuseRemoveText
		return out, fmt.Errorf("remove: table %q is not deletable", target.Table)
	}
	if err := e.store.DeleteRow(ctx, target.Table, target.RecordID); err != nil {
		out.Reply = RemoveFailedText
		return out, fmt.Errorf("remove %s/%s: %w", target.Table, target.RecordID, err)
	}
	out.Removed = true
	return out, nil
}
