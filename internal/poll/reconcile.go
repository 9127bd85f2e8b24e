package poll

import (
	"strings"

	"github.com/samber/lo"
)

// Draft is a poll to be created alongside a post.
type Draft struct {
	Question string
	Options  []string
}

// Valid reports whether the draft has enough options to become a poll.
func (d *Draft) Valid() bool {
	return d != nil && len(d.Options) >= 2
}

// normalized returns a copy with blank and duplicate options dropped and
// the option list capped at MaxOptions.
func (d *Draft) normalized(fallbackQuestion string) *Draft {
	opts := lo.Uniq(lo.FilterMap(d.Options, func(o string, _ int) (string, bool) {
		o = strings.TrimSpace(o)
		return o, o != ""
	}))
	if len(opts) > MaxOptions {
		opts = opts[:MaxOptions]
	}
	q := strings.TrimSpace(d.Question)
	if q == "" {
		q = fallbackQuestion
	}
	return &Draft{Question: q, Options: opts}
}

// Aggressive reports whether extraction should run in aggressive mode: the
// title suggests a poll and a structured draft is already present.
func Aggressive(title string, structured *Draft) bool {
	if structured == nil || len(structured.Options) == 0 {
		return false
	}
	t := strings.ToLower(title)
	return strings.Contains(t, "poll") || strings.Contains(t, "vote")
}

// Reconcile decides the final post body and poll for a post. A structured
// draft with at least two options wins and any inline option list is
// scrubbed from the body. Otherwise two or more inline options become a
// synthesized draft titled after the post.
func Reconcile(title, content string, structured *Draft) (string, *Draft) {
	res := Extract(content, Aggressive(title, structured))

	if structured.Valid() {
		draft := structured.normalized(title)
		if !draft.Valid() {
			return content, nil
		}
		if len(res.Options) == 0 {
			return content, draft
		}
		return bodyOrCallToAction(res.CleanText), draft
	}

	if len(res.Options) < 2 {
		return content, nil
	}
	draft := (&Draft{Question: title, Options: res.Options}).normalized(title)
	if !draft.Valid() {
		return content, nil
	}
	return bodyOrCallToAction(res.CleanText), draft
}

func bodyOrCallToAction(body string) string {
	if strings.TrimSpace(body) == "" {
		return PollCallToAction
	}
	return body
}
