// Package poll detects list-like poll options embedded in free text and
// reconciles them with a structured poll draft.
package poll

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxOptions caps the options of any poll the bot creates.
	MaxOptions = 5
	// PollCallToAction replaces a post body left empty once its options
	// moved into a poll.
	PollCallToAction = "Cast your vote below! 👇"
)

const (
	maxOptionRunes = 100
	longLineRunes  = 80
	lookaheadRunes = 50
)

var (
	headerRe = regexp.MustCompile(`(?i)^(?:poll options|options|choices|candidates|vote(?: for)?|question)\s*(?::(.*))?$`)
	itemRe   = regexp.MustCompile(`^(?:[-*•+]\s+(?:\[[ xX]\]\s+)?|\d{1,2}[.)]\s+|[a-zA-Z][.)]\s+|\[[ xX]\]\s+)(.+)$`)
	markupRe = regexp.MustCompile("\\*\\*|__|~~|`")
)

// Result is the outcome of Extract.
type Result struct {
	CleanText string
	Options   []string
}

// Extract splits text into detected poll options and the remaining prose.
// Lines are matched with markup stripped but retained verbatim in CleanText.
// In aggressive mode any short unpunctuated line inside a capture is taken
// as an option, which can over-capture ordinary short sentences.
func Extract(text string, aggressive bool) Result {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	stripped := make([]string, len(lines))
	for i, line := range lines {
		stripped[i] = stripMarkup(line)
	}

	var (
		kept      []string
		options   []string
		capturing bool
	)
	for i, line := range lines {
		s := stripped[i]
		if s == "" {
			kept = append(kept, line)
			continue
		}

		if m := headerRe.FindStringSubmatch(s); m != nil {
			capturing = true
			if strings.TrimSpace(m[1]) != "" {
				kept = append(kept, line)
			}
			continue
		}

		if capturing {
			if item, ok := listItem(s); ok {
				options = append(options, item)
				continue
			}
			if utf8.RuneCountInString(s) > longLineRunes || endsTerminal(s) {
				capturing = false
			} else if aggressive {
				options = append(options, capOption(s))
				continue
			} else {
				kept = append(kept, line)
				continue
			}
		}

		if opensList(s) && nextLooksListy(stripped[i+1:], aggressive) {
			capturing = true
		}
		kept = append(kept, line)
	}

	return Result{CleanText: joinKept(kept), Options: options}
}

// stripMarkup trims a line and removes heading, quote and emphasis markup.
// A single leading '*' is kept since it is a bullet.
func stripMarkup(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#> \t")
	s = markupRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func listItem(s string) (string, bool) {
	m := itemRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	item := strings.TrimSpace(m[1])
	if item == "" {
		return "", false
	}
	return capOption(item), true
}

func capOption(s string) string {
	if utf8.RuneCountInString(s) <= maxOptionRunes {
		return s
	}
	return string([]rune(s)[:maxOptionRunes])
}

func endsTerminal(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

func opensList(s string) bool {
	return strings.HasSuffix(s, "?") || strings.HasSuffix(s, ":")
}

func nextLooksListy(rest []string, aggressive bool) bool {
	for _, s := range rest {
		if s == "" {
			continue
		}
		if _, ok := listItem(s); ok {
			return true
		}
		return aggressive && utf8.RuneCountInString(s) < lookaheadRunes && !endsTerminal(s)
	}
	return false
}

// joinKept joins retained lines, collapsing the blank runs left behind by
// removed list items.
func joinKept(kept []string) string {
	var out []string
	blank := false
	for _, line := range kept {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
