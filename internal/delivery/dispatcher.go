// Package delivery posts the bot's reply into the collection that belongs
// to the triggering record.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
)

// ThreadTitle titles the threads the bot opens under posts.
const ThreadTitle = "🤖 AI Assistant"

// Route says where replies to one source table go. ParentID extracts the
// parent link from the triggering record.
type Route struct {
	Table       string
	ParentField string
	ParentID    func(trigger.Record) string
	Title       string
}

// Dispatcher routes replies by source table.
type Dispatcher struct {
	store types.ContentStore
	botID string

	mu     sync.RWMutex
	routes map[string]Route
}

// NewDispatcher creates a Dispatcher with the default routes registered.
func NewDispatcher(store types.ContentStore, botID string) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		botID:  botID,
		routes: make(map[string]Route),
	}
	d.Register(types.TablePosts, Route{
		Table: types.TableThreads, ParentField: "parent_post_id", ParentID: trigger.Record.ID, Title: ThreadTitle,
	})
	d.Register(types.TableThreads, Route{
		Table: types.TableThreadComments, ParentField: "thread_id", ParentID: trigger.Record.ID,
	})
	d.Register(types.TableThreadComments, Route{
		Table: types.TableThreadComments, ParentField: "thread_id", ParentID: trigger.Record.ThreadID,
	})
	d.Register(types.TableComments, Route{
		Table: types.TableComments, ParentField: "post_id", ParentID: trigger.Record.PostID,
	})
	return d
}

// Register sets the route for replies to source.
func (d *Dispatcher) Register(source string, route Route) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[source] = route
}

// Dispatch posts text as a reply to ev, prefixed with the bot marker.
// Returns an error if no route is registered for the table or the record
// lacks its parent link.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *trigger.Event, text string) (types.ReplyRow, error) {
	d.mu.RLock()
	route, ok := d.routes[ev.Table]
	d.mu.RUnlock()
	if !ok {
		return types.ReplyRow{}, fmt.Errorf("no delivery route for table: %s", ev.Table)
	}

	parentID := route.ParentID(ev.Record)
	if parentID == "" {
		return types.ReplyRow{}, fmt.Errorf("deliver to %s: record %s has no %s", route.Table, ev.Record.ID(), route.ParentField)
	}

	row := types.ReplyRow{
		Table:       route.Table,
		ParentField: route.ParentField,
		ParentID:    parentID,
		Title:       route.Title,
		Content:     Mark(text),
		AuthorID:    d.botID,
	}
	if err := d.store.InsertReply(ctx, row); err != nil {
		return row, fmt.Errorf("deliver to %s: %w", route.Table, err)
	}
	return row, nil
}

// Mark prefixes text with the bot marker unless it already carries it.
func Mark(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, trigger.BotMarker) {
		return text
	}
	return trigger.BotMarker + " " + text
}
