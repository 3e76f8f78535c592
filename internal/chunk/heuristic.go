package chunk

import (
	"regexp"
	"strings"
)

// braceParser is the fallback Parser for languages without a registered
// grammar. It scans lines sequentially, tracking nested-block depth by
// counting open/close delimiters outside strings and comments, and
// closes an entity when depth returns to its opening level. Declarations
// ending in ':' (indentation-scoped bodies) are closed on dedent
// instead. It is a heuristic, not a language parser: good enough to
// find class/function boundaries, nothing more.
type braceParser struct {
	language string
}

// NewBraceParser creates the heuristic fallback parser.
func NewBraceParser(language string) Parser {
	return &braceParser{language: language}
}

var (
	classStartPattern = regexp.MustCompile(
		`^\s*(?:export\s+|public\s+|private\s+|abstract\s+|final\s+|sealed\s+)*` +
			`(class|interface|trait|struct|enum|impl|object)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	funcStartPattern = regexp.MustCompile(
		`^\s*(?:export\s+|public\s+|private\s+|protected\s+|static\s+|async\s+|override\s+)*` +
			`(?:function|func|fn|def|sub)\s+([A-Za-z_][A-Za-z0-9_!?]*)`)
)

// openEntity is an entity whose end has not been found yet.
type openEntity struct {
	entity     Entity
	startDepth int  // block depth before the declaration line
	opened     bool // saw the opening delimiter
	indentMode bool // close on dedent instead of matching delimiter
	indent     int  // declaration line indent (indentMode only)
	sinceStart int  // lines scanned without an opening delimiter
}

// ExtractEntities finds class/function boundaries by delimiter counting.
func (p *braceParser) ExtractEntities(content []byte) ([]Entity, error) {
	lines := strings.Split(string(content), "\n")

	var entities []Entity
	var stack []*openEntity
	depth := 0
	inBlockComment := false

	for i, line := range lines {
		lineNo := i + 1

		// Close indentation-scoped entities on dedent.
		if len(stack) > 0 && strings.TrimSpace(line) != "" {
			indent := indentOf(line)
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if !top.indentMode || lineNo <= top.entity.StartLine || indent > top.indent {
					break
				}
				top.entity.EndLine = lastNonBlankBefore(lines, i)
				entities = append(entities, top.entity)
				stack = stack[:len(stack)-1]
			}
		}

		// Detect entity starts before counting this line's delimiters.
		if !inBlockComment {
			if m := classStartPattern.FindStringSubmatch(line); m != nil {
				stack = append(stack, p.newOpen(m[1], m[2], lineNo, depth, line, stack))
			} else if m := funcStartPattern.FindStringSubmatch(line); m != nil {
				stack = append(stack, p.newOpen("", m[1], lineNo, depth, line, stack))
			}
		}

		opens, closes, blockState := countDelimiters(line, inBlockComment)
		inBlockComment = blockState

		// Apply delimiter counts one at a time so an open and close on
		// the same line resolve in order.
		for n := 0; n < opens; n++ {
			depth++
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if !top.opened && !top.indentMode {
					top.opened = true
				}
			}
		}
		for n := 0; n < closes; n++ {
			depth--
			if depth < 0 {
				depth = 0
			}
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.indentMode || !top.opened || depth > top.startDepth {
					break
				}
				top.entity.EndLine = lineNo
				entities = append(entities, top.entity)
				stack = stack[:len(stack)-1]
			}
		}

		// Drop declarations that never open a body.
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if !top.opened && !top.indentMode {
				top.sinceStart++
				if top.sinceStart > 3 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}

	// Close anything still open at EOF.
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		top.entity.EndLine = lastNonBlankBefore(lines, len(lines))
		if top.opened || top.indentMode {
			entities = append(entities, top.entity)
		}
		stack = stack[:len(stack)-1]
	}

	return entities, nil
}

// newOpen builds an open entity, attributing functions inside an open
// class to that class.
func (p *braceParser) newOpen(classKeyword, name string, lineNo, depth int, line string, stack []*openEntity) *openEntity {
	et := EntityFunction
	switch classKeyword {
	case "":
		// function keyword matched
	case "interface":
		et = EntityInterface
	default:
		et = EntityClass
	}

	parent := ""
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].entity.Type == EntityClass || stack[i].entity.Type == EntityInterface {
			parent = stack[i].entity.Name
			break
		}
	}
	if et == EntityFunction && parent != "" {
		et = EntityMethod
	}

	oe := &openEntity{
		entity: Entity{
			Name:      name,
			Type:      et,
			StartLine: lineNo,
			Parent:    parent,
		},
		startDepth: depth,
	}

	// A declaration ending in ':' scopes its body by indentation.
	trimmed := strings.TrimSpace(stripLineComment(line))
	if strings.HasSuffix(trimmed, ":") {
		oe.indentMode = true
		oe.indent = indentOf(line)
	}
	return oe
}

// countDelimiters counts '{' and '}' on a line, skipping string
// literals, line comments, and block comments. Returns the open and
// close counts plus whether a block comment continues past the line.
func countDelimiters(line string, inBlockComment bool) (opens, closes int, stillInBlock bool) {
	var quote byte
	i := 0
	for i < len(line) {
		ch := line[i]

		if inBlockComment {
			if ch == '*' && i+1 < len(line) && line[i+1] == '/' {
				inBlockComment = false
				i += 2
				continue
			}
			i++
			continue
		}

		if quote != 0 {
			if ch == '\\' {
				i += 2
				continue
			}
			if ch == quote {
				quote = 0
			}
			i++
			continue
		}

		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '/':
			if i+1 < len(line) {
				switch line[i+1] {
				case '/':
					return opens, closes, false
				case '*':
					inBlockComment = true
					i += 2
					continue
				}
			}
		case '#':
			return opens, closes, inBlockComment
		case '{':
			opens++
		case '}':
			closes++
		}
		i++
	}
	return opens, closes, inBlockComment
}

// stripLineComment removes a trailing // or # comment.
func stripLineComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		line = line[:idx]
	}
	if idx := strings.Index(line, "#"); idx >= 0 {
		line = line[:idx]
	}
	return line
}

// indentOf returns the leading whitespace width (tabs count as 4).
func indentOf(line string) int {
	indent := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			indent++
		case '\t':
			indent += 4
		default:
			return indent
		}
	}
	return indent
}

// lastNonBlankBefore returns the 1-indexed line number of the last
// non-blank line strictly before index i (0-indexed exclusive bound).
func lastNonBlankBefore(lines []string, i int) int {
	for j := i - 1; j >= 0; j-- {
		if strings.TrimSpace(lines[j]) != "" {
			return j + 1
		}
	}
	return 1
}
