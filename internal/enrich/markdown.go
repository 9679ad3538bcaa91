package enrich

import (
	"regexp"
	"strings"
)

// Model output often arrives with escape sequences baked into the text
// and markdown block markers jammed against the previous sentence. The
// rewrites below run in a fixed order; reordering them corrupts text
// that contains literal backslashes.

const backslashSentinel = "\x00literal-backslash\x00"

var (
	headerMarker   = regexp.MustCompile(`^#{1,6} `)
	listItemMarker = regexp.MustCompile(`^([-*] |\d+\. )`)

	excessBlankLines = regexp.MustCompile(`\n{3,}`)
)

// NormalizeMarkdown cleans up summary text for storage and rendering.
func NormalizeMarkdown(raw string) string {
	if raw == "" {
		return ""
	}

	// Double backslashes go behind a sentinel first so the escape
	// rewrites below cannot see them.
	text := strings.ReplaceAll(raw, `\\`, backslashSentinel)

	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, `\r`, "")
	text = strings.ReplaceAll(text, `\t`, "\t")
	text = strings.ReplaceAll(text, `\"`, `"`)

	text = strings.ReplaceAll(text, backslashSentinel, `\`)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = separateBlocks(text)
	text = excessBlankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// separateBlocks inserts the blank line markdown needs before a header
// or the first item of a list. Items inside a list stay tight.
func separateBlocks(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 {
			prev := lines[i-1]
			prevBlank := strings.TrimSpace(prev) == ""
			switch {
			case headerMarker.MatchString(line) && !prevBlank:
				out = append(out, "")
			case listItemMarker.MatchString(line) && !prevBlank && !listItemMarker.MatchString(prev):
				out = append(out, "")
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
