package context

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
)

// PromptTemplate is the user prompt sent with every trigger. It uses Go
// text/template syntax with PromptData fields.
const PromptTemplate = `A new {{.Kind}} was just added to the community.
{{- if .Title}}

Title: {{.Title}}
{{- end}}

Message:
{{.Message}}
{{- if .History}}

## About the author

{{.History}}
{{- end}}
{{- if .ParentTitle}}

## Parent post

Title: {{.ParentTitle}}
{{- if .ParentBody}}
{{.ParentBody}}
{{- end}}
{{- end}}
{{- if .ThreadTitle}}

## Thread

{{.ThreadTitle}}
{{- end}}
{{- if .Poll}}

## Poll on this post

Question: {{.Poll.Question}}
Options (use the numeric id to vote):
{{- range .Poll.Options}}
- id {{.ID}}: {{.Text}} ({{.VotesCount}} votes)
{{- end}}
{{- end}}

## How to respond

Reply with a single JSON object and nothing else:

{"action": "reply" | "create_post" | "vote_poll" | "remove_content",
 "reply": "text posted back to the conversation",
 "post_data": {"title": "...", "content": "...", "tags": ["..."],
               "poll": {"question": "...", "options": ["...", "..."]}},
 "vote_data": {"option_id": 123, "comment": "..."}}

- Use "reply" for normal answers.
- Use "create_post" only when the user explicitly asks you to write a new post. Include "poll" only if they ask for a poll, vote or survey, with 2 to 5 options.
- Use "vote_poll" only when asked to vote, with an option id listed above.
- Use "remove_content" only for clear spam or abuse.
`

var promptTmpl = template.Must(template.New("prompt").Parse(PromptTemplate))

// PromptData feeds PromptTemplate.
type PromptData struct {
	Kind        string
	Title       string
	Message     string
	History     string
	ParentTitle string
	ParentBody  string
	ThreadTitle string
	Poll        *types.Poll
}

var kindNames = map[string]string{
	types.TablePosts:          "post",
	types.TableComments:       "comment",
	types.TableThreads:        "thread",
	types.TableThreadComments: "thread reply",
}

// NewPromptData combines the trigger with its assembled context.
func NewPromptData(ev *trigger.Event, asm *Assembled) PromptData {
	kind, ok := kindNames[ev.Table]
	if !ok {
		kind = "entry"
	}
	d := PromptData{
		Kind:    kind,
		Title:   ev.Record.Title(),
		Message: ev.Record.MessageText(),
	}
	if d.Title == d.Message {
		d.Title = ""
	}
	if asm != nil {
		d.History = asm.History
		d.ParentTitle = asm.ParentTitle
		d.ParentBody = asm.ParentBody
		d.ThreadTitle = asm.ThreadTitle
		d.Poll = asm.Poll
	}
	return d
}

// RenderPrompt executes PromptTemplate.
func RenderPrompt(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
