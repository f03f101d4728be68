package llm

import (
	"regexp"
	"strings"
)

// StripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around structured output.
func StripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

var (
	jsonSpanRe      = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
)

// ExtractJSON returns the outermost JSON object or array embedded in a model
// reply, with fences and line breaks removed and trailing commas before a
// closing bracket dropped. ok is false when the reply holds no bracketed span.
func ExtractJSON(reply string) (string, bool) {
	s := StripMarkdown(reply)
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	span := jsonSpanRe.FindString(s)
	if span == "" {
		return "", false
	}
	return trailingCommaRe.ReplaceAllString(span, "$1"), true
}
