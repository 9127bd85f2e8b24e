package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/user/forumbot/internal/intent"
	"github.com/user/forumbot/internal/poll"
	"github.com/user/forumbot/internal/state/memstore"
	"github.com/user/forumbot/internal/types"
)

const botID = "bot-1"

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) InsertPost(context.Context, types.NewPost) (string, error) {
	return "", errors.New("insert failed")
}

func (brokenStore) DeleteRow(context.Context, string, string) error {
	return errors.New("delete failed")
}

func TestExecuteReply(t *testing.T) {
	store := memstore.New()
	out, err := NewExecutor(store, botID).Execute(context.Background(), intent.Reply{Text: "hi"}, Target{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Reply != "hi" || out.Action != intent.ActionReply {
		t.Errorf("unexpected outcome %+v", out)
	}
	if len(store.Posts()) != 0 || len(store.Votes()) != 0 {
		t.Error("reply must not mutate the store")
	}
}

func TestExecuteCreatePostWithPoll(t *testing.T) {
	store := memstore.New()
	e := NewExecutor(store, botID)
	e.pick = func(opts []types.PollOption) types.PollOption { return opts[1] }

	d := intent.CreatePost{
		Title:   "Lunch poll",
		Content: "Where should we eat?",
		Tags:    []string{"food"},
		Poll:    &poll.Draft{Question: "Where?", Options: []string{"Pizza", "Tacos", "Sushi", "Salad", "Curry", "Burgers"}},
	}
	out, err := e.Execute(context.Background(), d, Target{Table: types.TableComments, RecordID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if out.PostID == "" || out.PollID == "" {
		t.Fatalf("expected post and poll ids, got %+v", out)
	}
	if out.Reply != `I've created a new post: "Lunch poll"` {
		t.Errorf("unexpected reply %q", out.Reply)
	}

	posts := store.Posts()
	if len(posts) != 1 || posts[0].AuthorID != botID || posts[0].Description != "Where should we eat?" {
		t.Fatalf("unexpected posts %+v", posts)
	}

	p, err := store.PollForPost(context.Background(), out.PostID)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Options) != poll.MaxOptions {
		t.Errorf("expected options capped at %d, got %d", poll.MaxOptions, len(p.Options))
	}

	votes := store.Votes()
	if len(votes) != 1 {
		t.Fatalf("expected one seed vote, got %d", len(votes))
	}
	if votes[0].UserID != botID || votes[0].OptionID != p.Options[1].ID {
		t.Errorf("unexpected seed vote %+v", votes[0])
	}
	if p.Options[1].VotesCount != 1 {
		t.Errorf("expected seed vote counted, got %d", p.Options[1].VotesCount)
	}
}

func TestExecuteCreatePostWithoutPoll(t *testing.T) {
	store := memstore.New()
	out, err := NewExecutor(store, botID).Execute(context.Background(),
		intent.CreatePost{Title: "T", Content: "C", Reply: "Done!"}, Target{})
	if err != nil {
		t.Fatal(err)
	}
	if out.PollID != "" || len(store.Votes()) != 0 {
		t.Errorf("no poll expected, got %+v", out)
	}
	if out.Reply != "Done!" {
		t.Errorf("expected model reply, got %q", out.Reply)
	}
}

func TestExecuteCreatePostFailure(t *testing.T) {
	e := NewExecutor(brokenStore{memstore.New()}, botID)
	out, err := e.Execute(context.Background(), intent.CreatePost{Title: "T", Content: "C"}, Target{})
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Reply != CreateFailedText {
		t.Errorf("expected failure reply, got %q", out.Reply)
	}
}

func TestExecuteVoteIdempotent(t *testing.T) {
	store := memstore.New()
	store.AddPost(types.Post{ID: "p1"})
	p := store.AddPoll("p1", "Best?", "Red", "Blue")
	e := NewExecutor(store, botID)
	ctx := context.Background()

	d := intent.VotePoll{OptionID: p.Options[0].ID, PollID: p.ID, Comment: "Red, obviously"}
	out, err := e.Execute(ctx, d, Target{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Reply != "Red, obviously" {
		t.Errorf("unexpected reply %q", out.Reply)
	}

	d.Comment = ""
	out, err = e.Execute(ctx, d, Target{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Reply != AlreadyVotedText {
		t.Errorf("expected already-voted reply, got %q", out.Reply)
	}
	if n := len(store.Votes()); n != 1 {
		t.Errorf("expected a single vote, got %d", n)
	}

	after, _ := store.PollForPost(ctx, "p1")
	if after.Options[0].VotesCount != 1 {
		t.Errorf("expected counter incremented once, got %d", after.Options[0].VotesCount)
	}
}

func TestExecuteRemove(t *testing.T) {
	store := memstore.New()
	store.AddPost(types.Post{ID: "p1"})
	out, err := NewExecutor(store, botID).Execute(context.Background(), intent.RemoveContent{},
		Target{Table: types.TablePosts, RecordID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Removed || out.Reply != "" {
		t.Errorf("unexpected outcome %+v", out)
	}
	dels := store.Deletions()
	if len(dels) != 1 || dels[0] != (memstore.Deletion{Table: types.TablePosts, ID: "p1"}) {
		t.Errorf("expected exactly the triggering record deleted, got %+v", dels)
	}
}

func TestExecuteRemoveGuards(t *testing.T) {
	store := memstore.New()
	out, err := NewExecutor(store, botID).Execute(context.Background(), intent.RemoveContent{},
		Target{Table: types.TableThreadComments, RecordID: "x"})
	if err == nil {
		t.Fatal("expected error for undeletable table")
	}
	if out.Reply != intent.RefuseRemoveText || out.Removed {
		t.Errorf("unexpected outcome %+v", out)
	}
	if len(store.Deletions()) != 0 {
		t.Error("no delete expected")
	}

	out, err = NewExecutor(brokenStore{memstore.New()}, botID).Execute(context.Background(), intent.RemoveContent{},
		Target{Table: types.TableComments, RecordID: "c"})
	if err == nil || out.Reply != RemoveFailedText {
		t.Errorf("expected failure reply, got %+v, %v", out, err)
	}
}

type unknownDecision struct{ intent.Reply }

func TestExecuteUnknownDecision(t *testing.T) {
	_, err := NewExecutor(memstore.New(), botID).Execute(context.Background(), unknownDecision{}, Target{})
	if err == nil {
		t.Fatal("expected error for unhandled decision")
	}
}
