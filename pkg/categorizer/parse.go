package categorizer

import (
	"regexp"
	"strings"
)

var (
	wholeFence  = regexp.MustCompile("^```[a-zA-Z0-9_-]*\\n([\\s\\S]*?)\\n```$")
	anyFence    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	thinkBlocks = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// RemoveCodeBlocks strips a code fence wrapping the whole response and any
// <think> reasoning sections some models emit before their answer.
func RemoveCodeBlocks(content string) string {
	content = strings.TrimSpace(content)
	if m := wholeFence.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(thinkBlocks.ReplaceAllString(content, ""))
}

// ExtractJSON locates a JSON payload embedded in surrounding text. A fenced
// block holding an object wins; otherwise the first balanced {...} object is
// returned. A fenced block without an object is used only when no object
// exists anywhere, and when neither is found the trimmed input is returned.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	m := anyFence.FindStringSubmatch(text)
	if m != nil && strings.HasPrefix(m[1], "{") {
		return m[1]
	}
	if obj, ok := firstObject(text); ok {
		return obj
	}
	if m != nil {
		return m[1]
	}
	return text
}

// firstObject scans for the first '{' and returns the text up to its matching
// '}', ignoring braces inside string literals.
func firstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		// Unbalanced from this brace; try the next one.
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// Normalize trims and lowercases every label. Duplicates are kept.
func Normalize(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, strings.ToLower(strings.TrimSpace(l)))
	}
	return out
}
