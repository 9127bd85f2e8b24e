package trigger

import (
	"strings"

	"github.com/user/forumbot/internal/types"
)

// BotMarker prefixes every reply the bot posts. ReplyTag is the hidden tag
// appended to bot replies; either one identifies bot-originated text.
const (
	BotMarker = "🤖 AI Assistant:"
	ReplyTag  = "<!-- forumbot-reply -->"
)

// Ignore reasons.
const (
	ReasonNotInsert    = "not an insert event"
	ReasonTable        = "table not watched"
	ReasonNoID         = "record has no id"
	ReasonEmptyText    = "empty message text"
	ReasonBotText      = "bot-originated text"
	ReasonSelfAuthored = "authored by bot"
)

// Verdict is the outcome of Guard.Check. An empty Reason means accept.
type Verdict struct {
	Reason string
}

func (v Verdict) Accepted() bool { return v.Reason == "" }

// Guard filters events before any store access happens.
type Guard struct {
	botID  string
	tables map[string]bool
}

// NewGuard creates a guard for the given bot identity. With no tables the
// default whitelist (posts, comments, threads, thread_comments) applies.
func NewGuard(botID string, tables ...string) *Guard {
	if len(tables) == 0 {
		tables = []string{types.TablePosts, types.TableComments, types.TableThreads, types.TableThreadComments}
	}
	g := &Guard{botID: botID, tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		g.tables[t] = true
	}
	return g
}

// Check is a pure filter; every rejection is a neutral verdict, never an error.
func (g *Guard) Check(ev *Event) Verdict {
	if ev == nil || !strings.EqualFold(ev.Type, EventInsert) {
		return Verdict{Reason: ReasonNotInsert}
	}
	if !g.tables[ev.Table] {
		return Verdict{Reason: ReasonTable}
	}
	if ev.Record.ID() == "" {
		return Verdict{Reason: ReasonNoID}
	}
	text := ev.Record.MessageText()
	if text == "" {
		return Verdict{Reason: ReasonEmptyText}
	}
	if IsBotText(text) {
		return Verdict{Reason: ReasonBotText}
	}
	if g.botID != "" && ev.Record.AuthorID() == g.botID {
		return Verdict{Reason: ReasonSelfAuthored}
	}
	return Verdict{}
}

// IsBotText reports whether text was written by the bot.
func IsBotText(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "🤖") || strings.Contains(trimmed, BotMarker) || strings.Contains(trimmed, ReplyTag)
}
