package delivery

import (
	"context"
	"strings"
	"testing"

	"github.com/user/forumbot/internal/state/memstore"
	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
)

func TestDispatchRoutes(t *testing.T) {
	tests := []struct {
		name       string
		table      string
		record     trigger.Record
		wantTable  string
		wantField  string
		wantParent string
		wantTitle  string
	}{
		{"post opens thread", types.TablePosts, trigger.Record{"id": "p1"}, types.TableThreads, "parent_post_id", "p1", ThreadTitle},
		{"thread gets comment", types.TableThreads, trigger.Record{"id": "t1"}, types.TableThreadComments, "thread_id", "t1", ""},
		{"thread comment stays in thread", types.TableThreadComments, trigger.Record{"id": "tc1", "thread_id": "t1"}, types.TableThreadComments, "thread_id", "t1", ""},
		{"comment stays on post", types.TableComments, trigger.Record{"id": "c1", "post_id": 42}, types.TableComments, "post_id", "42", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			d := NewDispatcher(store, "bot")

			row, err := d.Dispatch(context.Background(), &trigger.Event{Table: tt.table, Record: tt.record}, "hello")
			if err != nil {
				t.Fatal(err)
			}
			if row.Table != tt.wantTable || row.ParentField != tt.wantField || row.ParentID != tt.wantParent || row.Title != tt.wantTitle {
				t.Errorf("unexpected row %+v", row)
			}
			replies := store.Replies()
			if len(replies) != 1 {
				t.Fatalf("expected one reply, got %d", len(replies))
			}
			if replies[0].AuthorID != "bot" {
				t.Errorf("expected bot author, got %q", replies[0].AuthorID)
			}
			if !strings.HasPrefix(replies[0].Content, trigger.BotMarker+" ") {
				t.Errorf("reply missing bot marker: %q", replies[0].Content)
			}
			if !trigger.IsBotText(replies[0].Content) {
				t.Error("delivered reply must be recognised as bot text")
			}
		})
	}
}

func TestDispatchNoRoute(t *testing.T) {
	d := NewDispatcher(memstore.New(), "bot")
	if _, err := d.Dispatch(context.Background(), &trigger.Event{Table: "profiles", Record: trigger.Record{"id": "1"}}, "x"); err == nil {
		t.Fatal("expected error for unrouted table")
	}
}

func TestDispatchMissingParent(t *testing.T) {
	store := memstore.New()
	d := NewDispatcher(store, "bot")
	_, err := d.Dispatch(context.Background(), &trigger.Event{Table: types.TableComments, Record: trigger.Record{"id": "c1"}}, "x")
	if err == nil {
		t.Fatal("expected error for comment without post_id")
	}
	if len(store.Replies()) != 0 {
		t.Error("nothing should be written")
	}
}

func TestRegisterOverridesRoute(t *testing.T) {
	store := memstore.New()
	d := NewDispatcher(store, "bot")
	d.Register(types.TablePosts, Route{Table: types.TableComments, ParentField: "post_id", ParentID: trigger.Record.ID})

	row, err := d.Dispatch(context.Background(), &trigger.Event{Table: types.TablePosts, Record: trigger.Record{"id": "p1"}}, "x")
	if err != nil {
		t.Fatal(err)
	}
	if row.Table != types.TableComments {
		t.Errorf("expected overridden route, got %s", row.Table)
	}
}

func TestMark(t *testing.T) {
	if got := Mark("  hi "); got != trigger.BotMarker+" hi" {
		t.Errorf("Mark() = %q", got)
	}
	marked := Mark("hi")
	if Mark(marked) != marked {
		t.Error("Mark should not double-prefix")
	}
}
