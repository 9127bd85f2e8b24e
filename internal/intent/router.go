package intent

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/user/forumbot/internal/poll"
	"github.com/user/forumbot/internal/types"
)

var pollKeywords = []string{"poll", "vote", "survey", "options"}

// ValidationError records why a decision was degraded to a refusal reply.
type ValidationError struct {
	Action string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s decision: %s", e.Action, e.Reason)
}

// Input is what Resolve needs to know about the trigger.
type Input struct {
	SourceTable      string
	MessageText      string
	PollOptions      []types.PollOption
	AutoPostCreation bool
}

// HasPollIntent reports whether the user's message asks for a poll.
func HasPollIntent(text string) bool {
	t := strings.ToLower(text)
	return lo.SomeBy(pollKeywords, func(kw string) bool { return strings.Contains(t, kw) })
}

// Resolve applies the transition guards to a parsed decision. A decision
// that fails a guard comes back as a refusal Reply together with a
// *ValidationError describing why.
func Resolve(d Decision, in Input) (Decision, error) {
	switch d := d.(type) {
	case Reply:
		if strings.TrimSpace(d.Text) == "" {
			return Apology(), nil
		}
		return d, nil

	case CreatePost:
		if d.Title == "" || d.Content == "" {
			return Reply{Text: MissingPostText}, &ValidationError{Action: ActionCreatePost, Reason: "missing title or content"}
		}
		if !in.AutoPostCreation {
			if d.Reply == "" {
				return Apology(), nil
			}
			return Reply{Text: d.Reply}, nil
		}
		if !HasPollIntent(in.MessageText) {
			d.Poll = nil
			return d, nil
		}
		d.Content, d.Poll = poll.Reconcile(d.Title, d.Content, d.Poll)
		return d, nil

	case VotePoll:
		for _, opt := range in.PollOptions {
			if d.OptionID > 0 && opt.ID == d.OptionID {
				d.PollID = opt.PollID
				return d, nil
			}
		}
		return Reply{Text: InvalidVoteText}, &ValidationError{
			Action: ActionVotePoll,
			Reason: fmt.Sprintf("option %d not among %d known options", d.OptionID, len(in.PollOptions)),
		}

	case RemoveContent:
		if !types.Deletable(in.SourceTable) {
			return Reply{Text: RefuseRemoveText}, &ValidationError{
				Action: ActionRemoveContent,
				Reason: fmt.Sprintf("table %q is not deletable", in.SourceTable),
			}
		}
		return d, nil

	default:
		return Apology(), &ValidationError{Action: fmt.Sprintf("%T", d), Reason: "unknown decision"}
	}
}
