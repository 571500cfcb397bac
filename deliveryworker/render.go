package deliveryworker

import (
	"html"
	"regexp"
	"strings"
)

var (
	referencesHeadingRe = regexp.MustCompile(`(?im)^#{1,3}\s*references\s*$`)
	inlineLinkRe         = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	headingRe            = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
)

// stripReferences drops everything from the first "References" heading
// onward and replaces every inline markdown link with its link text,
// leaving the surrounding natural-attribution prose intact (§4.I step 2:
// "strips the References section and inline links, leaving natural-
// attribution text intact").
func stripReferences(markdown string) string {
	if loc := referencesHeadingRe.FindStringIndex(markdown); loc != nil {
		markdown = markdown[:loc[0]]
	}
	markdown = inlineLinkRe.ReplaceAllString(markdown, "$1")
	return strings.TrimSpace(markdown)
}

// renderHTML turns the pre-send-transformed markdown into a minimal HTML
// body: headings, one <p> per non-blank line, and "- "/"* " bullet
// lists. No markdown-rendering library is exercised by any full example
// repo in the retrieved pack (yuin/goldmark appears only as an indirect,
// never-imported transitive dependency in one repo's go.mod), so this
// follows the same "stdlib when nothing in the pack grounds a library
// choice" path as pipeline.HTTPFetcher's content extraction.
func renderHTML(markdown string) string {
	var b strings.Builder
	lines := strings.Split(markdown, "\n")
	inList := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if inList {
				b.WriteString("</ul>\n")
				inList = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			b.WriteString("<li>" + html.EscapeString(trimmed[2:]) + "</li>\n")
			continue
		}
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			level := len(m[1])
			b.WriteString("<h" + levelDigit(level) + ">" + html.EscapeString(m[2]) + "</h" + levelDigit(level) + ">\n")
			continue
		}
		b.WriteString("<p>" + html.EscapeString(trimmed) + "</p>\n")
	}
	if inList {
		b.WriteString("</ul>\n")
	}
	return b.String()
}

func levelDigit(level int) string {
	switch {
	case level <= 1:
		return "1"
	case level == 2:
		return "2"
	default:
		return "3"
	}
}
