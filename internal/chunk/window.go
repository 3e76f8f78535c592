package chunk

import "strings"

// windowSpan is one slice produced by the sliding-window pass, kept on
// line boundaries so content stays readable on its own.
type windowSpan struct {
	Content   string
	StartLine int
	EndLine   int
}

// windowPass slices content into overlapping windows of roughly
// targetSize characters. Windows break on line boundaries and each
// window starts back far enough to overlap the previous one by the
// given fraction of targetSize. A trailing window shorter than
// minChars is folded into its predecessor's coverage and dropped.
func windowPass(content string, targetSize int, overlap float64, minChars int) []windowSpan {
	if targetSize <= 0 {
		targetSize = DefaultWindowSize
	}
	lines := strings.Split(content, "\n")

	// Per-line sizes including the newline, so offsets stay consistent
	// with the original text.
	sizes := make([]int, len(lines))
	for i, line := range lines {
		sizes[i] = len(line)
		if i < len(lines)-1 {
			sizes[i]++
		}
	}

	overlapChars := int(float64(targetSize) * overlap)
	var spans []windowSpan
	start := 0

	for start < len(lines) {
		end := start
		size := 0
		for end < len(lines) && size < targetSize {
			size += sizes[end]
			end++
		}

		text := strings.Join(lines[start:end], "\n")
		if len(strings.TrimSpace(text)) >= minChars {
			spans = append(spans, windowSpan{
				Content:   text,
				StartLine: start + 1,
				EndLine:   end,
			})
		}

		if end >= len(lines) {
			break
		}

		// Step back from end until roughly overlapChars are repeated.
		next := end
		back := 0
		for next > start+1 && back < overlapChars {
			next--
			back += sizes[next]
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return spans
}
