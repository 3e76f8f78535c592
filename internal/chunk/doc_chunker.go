package chunk

import (
	"regexp"
	"strings"
)

// sectionSpan is one heading-delimited region of a document.
type sectionSpan struct {
	Content     string
	StartLine   int
	EndLine     int
	HeadingPath string
}

var (
	atxHeadingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	// setext underlines and rst section adornments
	underlinePattern = regexp.MustCompile(`^(=+|-+|~+|\^+|\*+|"+)\s*$`)
)

// headingAt reports the heading level and title if the line at index i
// starts a heading. Setext/rst headings span two lines so the caller
// must skip the underline.
func headingAt(lines []string, i int) (level int, title string, extra int) {
	if m := atxHeadingPattern.FindStringSubmatch(lines[i]); m != nil {
		return len(m[1]), m[2], 0
	}
	// A non-blank line followed by an adornment at least as long.
	if i+1 < len(lines) {
		text := strings.TrimSpace(lines[i])
		under := strings.TrimSpace(lines[i+1])
		if text != "" && !underlinePattern.MatchString(lines[i]) &&
			underlinePattern.MatchString(lines[i+1]) && len(under) >= len(text) {
			switch under[0] {
			case '=':
				return 1, text, 1
			case '-':
				return 2, text, 1
			default:
				return 3, text, 1
			}
		}
	}
	return 0, "", 0
}

// sectionPass splits a document at headings. Each section carries the
// full heading path ("Guide > Install > Linux") so a chunk keeps its
// place in the document when surfaced alone. Content before the first
// heading becomes a preamble section with an empty path. Sections
// larger than maxSection are windowed, with each window keeping the
// section's heading path.
func sectionPass(content string, maxSection, minChars int) []sectionSpan {
	lines := strings.Split(content, "\n")

	type rawSection struct {
		startLine int // 1-indexed, heading line included
		endLine   int
		path      string
	}

	var raws []rawSection
	var headerStack []string // one title per level, 1-indexed by level
	cur := rawSection{startLine: 1}
	inFence := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		level, title, extra := headingAt(lines, i)
		if level == 0 {
			continue
		}

		cur.endLine = i
		if hasText(lines, cur.startLine-1, cur.endLine) {
			raws = append(raws, cur)
		}

		if level <= len(headerStack) {
			headerStack = headerStack[:level-1]
		}
		for len(headerStack) < level-1 {
			headerStack = append(headerStack, "")
		}
		headerStack = append(headerStack, title)

		cur = rawSection{startLine: i + 1, path: joinPath(headerStack)}
		i += extra
	}
	cur.endLine = len(lines)
	if hasText(lines, cur.startLine-1, cur.endLine) {
		raws = append(raws, cur)
	}

	var spans []sectionSpan
	for _, r := range raws {
		text := strings.Join(lines[r.startLine-1:r.endLine], "\n")
		if len(strings.TrimSpace(text)) < minChars {
			continue
		}
		if len(text) <= maxSection {
			spans = append(spans, sectionSpan{
				Content:     text,
				StartLine:   r.startLine,
				EndLine:     lastNonBlankBefore(lines, r.endLine),
				HeadingPath: r.path,
			})
			continue
		}
		for _, w := range windowPass(text, maxSection/2, DefaultWindowOverlap, minChars) {
			spans = append(spans, sectionSpan{
				Content:     w.Content,
				StartLine:   r.startLine + w.StartLine - 1,
				EndLine:     r.startLine + w.EndLine - 1,
				HeadingPath: r.path,
			})
		}
	}
	return spans
}

func joinPath(stack []string) string {
	var parts []string
	for _, s := range stack {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " > ")
}

// hasText reports whether lines[start:end] contains any non-blank line.
func hasText(lines []string, start, end int) bool {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	for _, l := range lines[start:end] {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
