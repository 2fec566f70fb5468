// Package mention extracts @username tokens from comment bodies.
package mention

import (
	"fmt"
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`@(\w+)`)

// Extract returns every mention token in the text, in first-seen order.
// Duplicates are preserved; each occurrence notifies independently.
func Extract(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// Highlight wraps each mention in a span so UIs can style them.
func Highlight(text string) string {
	return pattern.ReplaceAllStringFunc(text, func(m string) string {
		return fmt.Sprintf(`<span class="mention">%s</span>`, m)
	})
}

// Contains reports whether the text mentions the given name.
func Contains(text, name string) bool {
	for _, t := range Extract(text) {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}
