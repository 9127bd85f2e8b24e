// Package context gathers the conversation context for a trigger and
// renders the prompt sent to the provider.
package context

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
)

const (
	recentPostsLimit = 5
	// DefaultHistoryBudget caps the author history summary, in tokens.
	DefaultHistoryBudget = 300
	defaultLookupTimeout = 5 * time.Second
)

// Assembled is the context gathered for one trigger.
type Assembled struct {
	Username    string
	History     string
	ParentTitle string
	ParentBody  string
	ThreadTitle string
	Poll        *types.Poll
	// PollOptions is the ordered option list of Poll, carried separately so
	// votes can be validated against it.
	PollOptions []types.PollOption
}

// Assembler reads context from the content store.
type Assembler struct {
	store         types.ContentStore
	counter       *TokenCounter
	timeout       time.Duration
	historyBudget int
}

// NewAssembler creates an Assembler. Each lookup is bounded by timeout.
func NewAssembler(store types.ContentStore, counter *TokenCounter, timeout time.Duration) *Assembler {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	if counter == nil {
		counter = HeuristicCounter()
	}
	return &Assembler{
		store:         store,
		counter:       counter,
		timeout:       timeout,
		historyBudget: DefaultHistoryBudget,
	}
}

// SetHistoryBudget caps the author history summary at n tokens. Non-positive
// values keep the default.
func (a *Assembler) SetHistoryBudget(n int) {
	if n > 0 {
		a.historyBudget = n
	}
}

// Assemble gathers author history, the parent post with its poll and the
// parent thread concurrently. A failed lookup leaves its section empty; only
// cancellation of ctx is returned as an error.
func (a *Assembler) Assemble(ctx context.Context, ev *trigger.Event) (*Assembled, error) {
	out := &Assembled{}
	rec := ev.Record

	var (
		post   *types.Post
		thread *types.Thread
	)

	g, gctx := errgroup.WithContext(ctx)

	if author := rec.AuthorID(); author != "" {
		g.Go(func() error {
			out.Username, out.History = a.history(gctx, author)
			return nil
		})
	}

	postID := a.parentPostID(ev)
	threadID := rec.ThreadID()
	if ev.Table == types.TableThreads {
		threadID = ""
	}

	if postID != "" {
		g.Go(func() error {
			post = a.lookupPost(gctx, postID)
			return nil
		})
	}
	if threadID != "" {
		g.Go(func() error {
			thread = a.lookupThread(gctx, threadID)
			if thread != nil && postID == "" && thread.ParentPostID != "" {
				post = a.lookupPost(gctx, thread.ParentPostID)
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if thread != nil {
		out.ThreadTitle = thread.Title
	}
	if post != nil {
		out.ParentTitle = post.Title
		out.ParentBody = post.Description
		out.Poll = a.lookupPoll(ctx, post.ID)
		if out.Poll != nil {
			out.PollOptions = out.Poll.Options
		}
	}
	return out, nil
}

func (a *Assembler) parentPostID(ev *trigger.Event) string {
	switch ev.Table {
	case types.TablePosts:
		return ev.Record.ID()
	case types.TableComments:
		return ev.Record.PostID()
	case types.TableThreads:
		return ev.Record.ParentPostID()
	}
	return ""
}

func (a *Assembler) history(ctx context.Context, authorID string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var username string
	if p, err := a.store.Profile(ctx, authorID); err == nil {
		username = p.Username
	} else if !errors.Is(err, types.ErrNotFound) {
		slog.Warn("context: profile lookup failed", "author_id", authorID, "error", err)
	}

	posts, err := a.store.RecentPostsByAuthor(ctx, authorID, recentPostsLimit)
	if err != nil {
		slog.Warn("context: recent posts lookup failed", "author_id", authorID, "error", err)
	}
	comments, err := a.store.CountCommentsByAuthor(ctx, authorID)
	if err != nil {
		slog.Warn("context: comment count failed", "author_id", authorID, "error", err)
	}

	return username, a.counter.Truncate(renderHistory(username, posts, comments), a.historyBudget)
}

func renderHistory(username string, posts []types.PostSummary, comments int) string {
	var b strings.Builder
	who := "This user"
	if username != "" {
		who = "@" + username
	}
	fmt.Fprintf(&b, "%s has written %d comment(s)", who, comments)
	if len(posts) == 0 {
		b.WriteString(" and no recent posts.")
		return b.String()
	}
	b.WriteString(". Recent posts: ")
	for i, p := range posts {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%q", p.Title)
		if len(p.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(p.Tags, ", "))
		}
	}
	b.WriteString(".")
	return b.String()
}

func (a *Assembler) lookupPost(ctx context.Context, id string) *types.Post {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	p, err := a.store.Post(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			slog.Warn("context: post lookup failed", "post_id", id, "error", err)
		}
		return nil
	}
	return p
}

func (a *Assembler) lookupThread(ctx context.Context, id string) *types.Thread {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	t, err := a.store.Thread(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			slog.Warn("context: thread lookup failed", "thread_id", id, "error", err)
		}
		return nil
	}
	return t
}

func (a *Assembler) lookupPoll(ctx context.Context, postID string) *types.Poll {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	p, err := a.store.PollForPost(ctx, postID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			slog.Warn("context: poll lookup failed", "post_id", postID, "error", err)
		}
		return nil
	}
	return p
}
