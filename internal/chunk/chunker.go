package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Chunker turns file content into retrievable chunks. Every file gets
// one full-file chunk; code files additionally get one chunk per
// extracted entity, documents one per heading section, and anything
// large without usable structure falls back to sliding windows.
type Chunker struct {
	opts     Options
	registry *LanguageRegistry
	logger   *slog.Logger
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts Options, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		opts:     opts,
		registry: DefaultRegistry(),
		logger:   logger,
	}
}

// Chunk produces all chunks for a file. The full-file chunk is always
// first with ChunkIndex 0; sub-file chunks follow in start-line order.
// Unsuitable content returns a SkipError rather than a hard failure.
func (c *Chunker) Chunk(filePath string, content []byte) ([]*Chunk, error) {
	if IsBinaryPath(filePath) || looksBinary(content) {
		return nil, &SkipError{Path: filePath, Reason: SkipBinary}
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, &SkipError{Path: filePath, Reason: SkipEmpty}
	}
	if len(text) < c.opts.MinChunkChars {
		return nil, &SkipError{Path: filePath, Reason: SkipTooSmall}
	}

	language := DetectLanguage(filePath)
	lines := strings.Split(text, "\n")

	var subChunks []*Chunk
	var entities []Entity

	switch {
	case IsDocLanguage(language):
		subChunks = c.sectionChunks(filePath, language, text, lines)
	case IsCodeLanguage(language):
		entities = c.extractEntities(filePath, language, content)
		subChunks = c.entityChunks(filePath, language, lines, entities)
		subChunks = c.ensureCoverage(filePath, language, text, lines, subChunks)
	default:
		if len(text) > c.opts.StructuralThreshold {
			entities = c.extractEntities(filePath, language, content)
			subChunks = c.entityChunks(filePath, language, lines, entities)
			subChunks = c.ensureCoverage(filePath, language, text, lines, subChunks)
		} else if len(text) > c.opts.WindowSize {
			subChunks = c.windowChunks(filePath, language, text, 0)
		}
	}

	full := c.fullFileChunk(filePath, language, text, lines, entities)
	chunks := append([]*Chunk{full}, subChunks...)
	for i, ch := range chunks {
		ch.ChunkIndex = i
	}

	c.logger.Debug("chunked file",
		"path", filePath,
		"language", language,
		"chunks", len(chunks),
		"entities", len(entities))
	return chunks, nil
}

// extractEntities runs the grammar-backed parser when one is registered
// for the language, falling back to delimiter counting otherwise. A
// parser error degrades to the heuristic instead of failing the file.
func (c *Chunker) extractEntities(filePath, language string, content []byte) []Entity {
	parser, ok := NewTreeSitterParser(language)
	if ok {
		entities, err := parser.ExtractEntities(content)
		if err == nil {
			return entities
		}
		c.logger.Warn("parser failed, using heuristic boundaries",
			"path", filePath, "language", language, "error", err)
	}
	entities, err := NewBraceParser(language).ExtractEntities(content)
	if err != nil {
		return nil
	}
	return entities
}

// entityChunks builds one chunk per entity that clears the size floors.
func (c *Chunker) entityChunks(filePath, language string, lines []string, entities []Entity) []*Chunk {
	var chunks []*Chunk
	for _, e := range entities {
		if e.EndLine-e.StartLine+1 < c.opts.MinEntityLines {
			continue
		}
		content := sliceLines(lines, e.StartLine, e.EndLine)
		if len(strings.TrimSpace(content)) < c.opts.MinChunkChars {
			continue
		}
		identity := fmt.Sprintf("entity:%s:%s", e.Type, e.QualifiedName())
		chunks = append(chunks, &Chunk{
			ID:        chunkID(filePath, content, identity),
			FilePath:  filePath,
			Content:   content,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
			Hash:      contentHash(content),
			Metadata: Metadata{
				Language:     language,
				Size:         len(content),
				Significance: entitySignificance(e.Type),
			},
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })
	return chunks
}

// ensureCoverage supplements entity chunks with windows when too little
// of a large file is covered by structure. Small files are already
// represented by their full-file chunk.
func (c *Chunker) ensureCoverage(filePath, language, text string, lines []string, chunks []*Chunk) []*Chunk {
	if len(text) <= c.opts.StructuralThreshold {
		return chunks
	}
	covered := make([]bool, len(lines))
	for _, ch := range chunks {
		for i := ch.StartLine - 1; i < ch.EndLine && i < len(lines); i++ {
			covered[i] = true
		}
	}
	coveredChars := 0
	for i, line := range lines {
		if covered[i] {
			coveredChars += len(line) + 1
		}
	}
	if float64(coveredChars) >= c.opts.CoverageFloor*float64(len(text)) {
		return chunks
	}
	c.logger.Debug("structural coverage below floor, adding windows",
		"path", filePath, "covered", coveredChars, "total", len(text))
	return append(chunks, c.windowChunks(filePath, language, text, len(chunks))...)
}

// windowChunks runs the sliding-window pass. startIdx offsets the
// window identity so supplemental windows never collide with an earlier
// pass over the same file.
func (c *Chunker) windowChunks(filePath, language, text string, startIdx int) []*Chunk {
	spans := windowPass(text, c.opts.WindowSize, c.opts.WindowOverlap, c.opts.MinChunkChars)
	chunks := make([]*Chunk, 0, len(spans))
	for i, w := range spans {
		identity := fmt.Sprintf("window:%d", startIdx+i)
		chunks = append(chunks, &Chunk{
			ID:        chunkID(filePath, w.Content, identity),
			FilePath:  filePath,
			Content:   w.Content,
			StartLine: w.StartLine,
			EndLine:   w.EndLine,
			Hash:      contentHash(w.Content),
			Metadata: Metadata{
				Language:     language,
				Size:         len(w.Content),
				Significance: SignificanceLow,
			},
		})
	}
	return chunks
}

// sectionChunks builds one chunk per heading section of a document.
func (c *Chunker) sectionChunks(filePath, language, text string, lines []string) []*Chunk {
	spans := sectionPass(text, MaxSectionChars, c.opts.MinChunkChars)
	chunks := make([]*Chunk, 0, len(spans))
	for i, s := range spans {
		identity := fmt.Sprintf("section:%s:%d", s.HeadingPath, i)
		chunks = append(chunks, &Chunk{
			ID:        chunkID(filePath, s.Content, identity),
			FilePath:  filePath,
			Content:   s.Content,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			Hash:      contentHash(s.Content),
			Metadata: Metadata{
				Language:     language,
				Size:         len(s.Content),
				Significance: SignificanceMedium,
				HeadingPath:  s.HeadingPath,
			},
		})
	}
	return chunks
}

// fullFileChunk builds the always-present whole-file chunk with summary
// metadata drawn from the extracted entities.
func (c *Chunker) fullFileChunk(filePath, language, text string, lines []string, entities []Entity) *Chunk {
	var functions, classes []string
	for _, e := range entities {
		switch e.Type {
		case EntityFunction, EntityMethod:
			functions = append(functions, e.QualifiedName())
		case EntityClass, EntityInterface:
			classes = append(classes, e.Name)
		}
	}

	sig := SignificanceLow
	switch {
	case len(entities) > 0:
		sig = SignificanceHigh
	case IsDocLanguage(language):
		sig = SignificanceMedium
	}

	return &Chunk{
		ID:         chunkID(filePath, text, "file"),
		FilePath:   filePath,
		Content:    text,
		StartLine:  1,
		EndLine:    len(lines),
		IsFullFile: true,
		Hash:       contentHash(text),
		Metadata: Metadata{
			Language:     language,
			Size:         len(text),
			Functions:    functions,
			Classes:      classes,
			Imports:      extractImports(language, lines),
			Significance: sig,
		},
	}
}

func entitySignificance(t EntityType) Significance {
	switch t {
	case EntityClass, EntityInterface:
		return SignificanceHigh
	case EntityFunction, EntityMethod, EntityTypeDef:
		return SignificanceMedium
	default:
		return SignificanceLow
	}
}

// chunkID derives a stable 16-hex-char identifier from the file path,
// the chunk content, and the chunk's role within the file. Re-chunking
// unchanged content yields the same IDs.
func chunkID(filePath, content, identity string) string {
	sum := sha256.Sum256([]byte(filePath + ":" + contentHash(content) + ":" + identity))
	return hex.EncodeToString(sum[:])[:16]
}

// contentHash is the truncated sha256 of chunk content.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// HashContent exposes the content hash used for change detection.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}

// sliceLines returns lines start..end inclusive, 1-indexed.
func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// looksBinary reports whether content appears to be non-text: NUL bytes
// or mostly invalid UTF-8 in the first 8KB.
func looksBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	if len(probe) == 0 {
		return false
	}
	invalid := 0
	for i := 0; i < len(probe); {
		if probe[i] == 0 {
			return true
		}
		r, size := utf8.DecodeRune(probe[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		i += size
	}
	return invalid*10 > len(probe)
}

var importPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^\s*(?:import\s+)?(?:[A-Za-z_][A-Za-z0-9_]*\s+)?"([^"]+)"`),
	"python":     regexp.MustCompile(`^\s*(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`),
	"javascript": regexp.MustCompile(`(?:import\s+.*?from\s+|require\()\s*['"]([^'"]+)['"]`),
}

// extractImports pulls import targets from the top of a file, capped to
// keep metadata small.
func extractImports(language string, lines []string) []string {
	patKey := language
	switch language {
	case "typescript", "tsx", "jsx":
		patKey = "javascript"
	}
	pattern, ok := importPatterns[patKey]
	if !ok {
		return nil
	}

	const maxImports = 20
	var imports []string
	seen := make(map[string]bool)
	inGoBlock := false

	limit := len(lines)
	if limit > 200 {
		limit = 200
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if language == "go" {
			if strings.HasPrefix(trimmed, "import (") {
				inGoBlock = true
				continue
			}
			if inGoBlock && trimmed == ")" {
				inGoBlock = false
				continue
			}
			if !inGoBlock && !strings.HasPrefix(trimmed, "import") {
				continue
			}
		}
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := ""
		for _, g := range m[1:] {
			if g != "" {
				target = g
				break
			}
		}
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		imports = append(imports, target)
		if len(imports) >= maxImports {
			break
		}
	}
	return imports
}
