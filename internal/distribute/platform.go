package distribute

import (
	"strings"
	"unicode/utf8"
)

const (
	PlatformTwitter  = "twitter"
	PlatformMastodon = "mastodon"

	// Separators between title, link and tag block: two double newlines.
	formatBufferChars = 4
)

// Platform describes the character accounting of one posting target.
// LinkReserve is the fixed per-link charge on platforms that wrap URLs
// in a shortener; zero means the real link length counts.
type Platform struct {
	Name        string
	CharLimit   int
	LinkReserve int
	MaxTags     int
}

var platforms = map[string]Platform{
	PlatformTwitter: {
		Name:        PlatformTwitter,
		CharLimit:   280,
		LinkReserve: 23,
		MaxTags:     1,
	},
	PlatformMastodon: {
		Name:        PlatformMastodon,
		CharLimit:   500,
		LinkReserve: 0,
		MaxTags:     3,
	},
}

// PlatformByName resolves a platform by its stored name.
func PlatformByName(name string) (Platform, bool) {
	p, ok := platforms[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PlatformNames lists the supported posting targets.
func PlatformNames() []string {
	return []string{PlatformTwitter, PlatformMastodon}
}

// titleBudget computes how many characters of title fit next to the
// link and the rendered tag block.
func (p Platform) titleBudget(link, tagBlock string) int {
	linkChars := p.LinkReserve
	if linkChars <= 0 {
		linkChars = utf8.RuneCountInString(link)
	}

	budget := p.CharLimit - linkChars - formatBufferChars
	if tagBlock != "" {
		budget -= utf8.RuneCountInString(tagBlock)
	}
	return budget
}

// Compose renders the post text for the platform, clipping the title so
// the whole message stays inside the character limit.
func (p Platform) Compose(title, link string, tags []string) string {
	tagBlock := renderTagBlock(tags, p.MaxTags)

	clipped, _ := truncateText(title, p.titleBudget(link, tagBlock))

	parts := make([]string, 0, 3)
	if clipped != "" {
		parts = append(parts, clipped)
	}
	parts = append(parts, link)
	if tagBlock != "" {
		parts = append(parts, tagBlock)
	}
	return strings.Join(parts, "\n\n")
}

func renderTagBlock(tags []string, maxTags int) string {
	if maxTags <= 0 {
		return ""
	}
	rendered := make([]string, 0, maxTags)
	for _, tag := range tags {
		clean := strings.ToLower(strings.TrimSpace(tag))
		clean = strings.ReplaceAll(clean, " ", "")
		clean = strings.ReplaceAll(clean, "-", "")
		if clean == "" {
			continue
		}
		rendered = append(rendered, "#"+clean)
		if len(rendered) == maxTags {
			break
		}
	}
	return strings.Join(rendered, " ")
}

// truncateText clips text to maxChars runes and appends a single
// ellipsis rune when truncated. A non-positive budget fits nothing;
// even the ellipsis would overflow it.
func truncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if maxChars <= 0 {
		return "", true
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	if clipped == "" {
		return "…", true
	}

	return clipped + "…", true
}
