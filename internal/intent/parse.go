package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/forumbot/internal/poll"
)

// ParseError means the model output held no decodable decision.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type modelOutput struct {
	Action   string    `json:"action"`
	Reply    string    `json:"reply"`
	PostData *postData `json:"post_data"`
	VoteData *voteData `json:"vote_data"`
}

type postData struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Tags    tagList   `json:"tags"`
	Poll    *pollData `json:"poll"`
}

type pollData struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type voteData struct {
	OptionID optionID `json:"option_id"`
	Comment  string   `json:"comment"`
}

// optionID accepts a JSON number or a numeric string. Anything else
// decodes to zero, which matches no option.
type optionID int64

func (o *optionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*o = optionID(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		*o = optionID(int64(f))
	}
	return nil
}

// tagList accepts an array of strings or a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = cleanTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	*t = cleanTags(strings.Split(s, ","))
	return nil
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Parse extracts the JSON object between the first '{' and the last '}' of
// raw and maps it onto a Decision. Unknown actions become a Reply.
func Parse(raw string) (Decision, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, &ParseError{Raw: raw, Err: errors.New("no JSON object found")}
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	reply := strings.TrimSpace(out.Reply)
	switch strings.ToLower(strings.TrimSpace(out.Action)) {
	case ActionCreatePost:
		d := CreatePost{Reply: reply}
		if p := out.PostData; p != nil {
			d.Title = strings.TrimSpace(p.Title)
			d.Content = strings.TrimSpace(p.Content)
			d.Tags = p.Tags
			if p.Poll != nil {
				d.Poll = &poll.Draft{Question: p.Poll.Question, Options: p.Poll.Options}
			}
		}
		return d, nil
	case ActionVotePoll:
		d := VotePoll{Comment: reply}
		if v := out.VoteData; v != nil {
			d.OptionID = int64(v.OptionID)
			if c := strings.TrimSpace(v.Comment); c != "" {
				d.Comment = c
			}
		}
		return d, nil
	case ActionRemoveContent:
		return RemoveContent{Reason: reply}, nil
	default:
		if reply == "" {
			return Apology(), nil
		}
		return Reply{Text: reply}, nil
	}
}
