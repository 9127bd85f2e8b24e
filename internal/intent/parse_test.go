package intent

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/user/forumbot/internal/poll"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Decision
	}{
		{
			name: "reply",
			raw:  `{"action":"reply","reply":"Hello there"}`,
			want: Reply{Text: "Hello there"},
		},
		{
			name: "surrounding prose",
			raw:  "Sure! Here is my answer:\n```json\n{\"action\": \"reply\", \"reply\": \"hi\"}\n```\nHope that helps.",
			want: Reply{Text: "hi"},
		},
		{
			name: "create post with poll",
			raw: `{"action":"create_post","reply":"Created!","post_data":{"title":"Lunch poll","content":"Where?",
				"tags":["food","team"],"poll":{"question":"Where to eat?","options":["Pizza","Tacos"]}}}`,
			want: CreatePost{
				Title:   "Lunch poll",
				Content: "Where?",
				Tags:    []string{"food", "team"},
				Poll:    &poll.Draft{Question: "Where to eat?", Options: []string{"Pizza", "Tacos"}},
				Reply:   "Created!",
			},
		},
		{
			name: "comma separated tags",
			raw:  `{"action":"create_post","post_data":{"title":"T","content":"C","tags":"a, b,,c"}}`,
			want: CreatePost{Title: "T", Content: "C", Tags: []string{"a", "b", "c"}},
		},
		{
			name: "vote with numeric id",
			raw:  `{"action":"vote_poll","reply":"Voted","vote_data":{"option_id":42}}`,
			want: VotePoll{OptionID: 42, Comment: "Voted"},
		},
		{
			name: "vote with string id and comment",
			raw:  `{"action":"vote_poll","vote_data":{"option_id":" 7 ","comment":"Blue all the way"}}`,
			want: VotePoll{OptionID: 7, Comment: "Blue all the way"},
		},
		{
			name: "vote with garbage id",
			raw:  `{"action":"vote_poll","vote_data":{"option_id":"blue"}}`,
			want: VotePoll{},
		},
		{
			name: "remove",
			raw:  `{"action":"REMOVE_CONTENT","reply":"spam"}`,
			want: RemoveContent{Reason: "spam"},
		},
		{
			name: "unknown action uses reply text",
			raw:  `{"action":"dance","reply":"no dancing"}`,
			want: Reply{Text: "no dancing"},
		},
		{
			name: "unknown action without text apologizes",
			raw:  `{"action":"dance"}`,
			want: Reply{Text: ApologyText},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{
		"I think you should vote for blue.",
		`{"action": "reply", "reply": }`,
		"} backwards {",
	} {
		_, err := Parse(raw)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error = %v, want *ParseError", raw, err)
			continue
		}
		if pe.Raw != raw {
			t.Errorf("ParseError should carry the raw output")
		}
	}
}

func TestDecisionActions(t *testing.T) {
	for d, want := range map[Decision]string{
		Reply{}:         ActionReply,
		VotePoll{}:      ActionVotePoll,
		RemoveContent{}: ActionRemoveContent,
	} {
		if d.Action() != want {
			t.Errorf("%T.Action() = %q, want %q", d, d.Action(), want)
		}
	}
	if (CreatePost{}).Action() != ActionCreatePost {
		t.Error("unexpected CreatePost action")
	}
}
