// Package trigger decodes inbound "row inserted" notifications and filters
// the ones the bot must not react to.
package trigger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// EventInsert is the only event type the bot reacts to.
const EventInsert = "INSERT"

// Event is the inbound webhook payload.
type Event struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	Record Record `json:"record"`
}

// Record is the inserted row as delivered by the store.
type Record map[string]any

// textFields is the priority order for the effective message text.
var textFields = []string{"content", "body", "description", "caption", "snippet", "title"}

// String returns the field as a string. Numbers are rendered without
// exponent so numeric ids round-trip.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func (r Record) ID() string           { return r.String("id") }
func (r Record) Title() string        { return strings.TrimSpace(r.String("title")) }
func (r Record) PostID() string       { return r.String("post_id") }
func (r Record) ThreadID() string     { return r.String("thread_id") }
func (r Record) ParentPostID() string { return r.String("parent_post_id") }

// AuthorID returns the author identifier, preferring user_id.
func (r Record) AuthorID() string {
	if id := r.String("user_id"); id != "" {
		return id
	}
	return r.String("author_id")
}

// MessageText returns the first non-empty text-bearing field. HTML bodies
// from the rich editor are normalised to markdown.
func (r Record) MessageText() string {
	for _, field := range textFields {
		text := strings.TrimSpace(r.String(field))
		if text == "" {
			continue
		}
		if looksLikeHTML(text) {
			if md, err := htmltomarkdown.ConvertString(text); err == nil && strings.TrimSpace(md) != "" {
				return strings.TrimSpace(md)
			}
		}
		return text
	}
	return ""
}

func looksLikeHTML(s string) bool {
	i := strings.Index(s, "<")
	return i >= 0 && strings.Contains(s[i:], ">") && strings.Contains(s[i:], "</")
}

// DecodeEvent parses a webhook body. Numbers are preserved as json.Number.
func DecodeEvent(data []byte) (*Event, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}
