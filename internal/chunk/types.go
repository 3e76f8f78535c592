// Package chunk splits source files and documents into retrievable
// units. Chunking is pure: the same path, content, and hash always
// produce the same chunks with the same IDs, which is what makes
// re-ingestion idempotent.
package chunk

// Default chunking parameters.
const (
	// DefaultWindowSize is the target logical window size in characters.
	DefaultWindowSize = 2000

	// DefaultWindowOverlap is the overlap fraction between consecutive windows.
	DefaultWindowOverlap = 0.15

	// DefaultMinChunkChars is the minimum viable chunk size.
	DefaultMinChunkChars = 50

	// DefaultMinEntityLines is the minimum body line count for a structural chunk.
	DefaultMinEntityLines = 2

	// DefaultStructuralThreshold is the size in bytes above which
	// unrecognized text still gets a structural pass.
	DefaultStructuralThreshold = 4096

	// DefaultCoverageFloor is the minimum fraction of a large file the
	// structural pass must cover; below it, windowing supplements.
	DefaultCoverageFloor = 0.6

	// MaxSectionChars is the size above which a document section is
	// recursively windowed instead of emitted whole.
	MaxSectionChars = 2 * DefaultWindowSize
)

// Significance is the coarse importance tier used as a ranking tie-break.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
)

// Rank returns an ordering value for tie-breaking (higher rank wins).
func (s Significance) Rank() int {
	switch s {
	case SignificanceHigh:
		return 2
	case SignificanceMedium:
		return 1
	default:
		return 0
	}
}

// Metadata carries per-chunk descriptive attributes.
type Metadata struct {
	Language     string       `json:"language,omitempty"`
	Size         int          `json:"size"`
	Functions    []string     `json:"functions,omitempty"`
	Classes      []string     `json:"classes,omitempty"`
	Imports      []string     `json:"imports,omitempty"`
	Significance Significance `json:"significance"`

	// HeadingPath is the "A > B > C" breadcrumb for document sections.
	HeadingPath string `json:"heading_path,omitempty"`
}

// Chunk is a retrievable unit of content.
type Chunk struct {
	ID         string   // Deterministic: content hash + structural identity
	FilePath   string   // Relative to project root; never changes after creation
	Content    string   // Chunk text
	StartLine  int      // 1-indexed
	EndLine    int      // Inclusive
	ChunkIndex int      // Ordinal within file (full-file chunk is 0)
	IsFullFile bool     // Exactly one per ingested file
	Hash       string   // Content hash of this chunk
	Metadata   Metadata
}

// EntityType classifies a detected structural entity.
type EntityType string

const (
	EntityFunction  EntityType = "function"
	EntityMethod    EntityType = "method"
	EntityClass     EntityType = "class"
	EntityInterface EntityType = "interface"
	EntityTypeDef   EntityType = "type"
)

// Entity is a class/function boundary detected by a Parser.
type Entity struct {
	Name      string
	Type      EntityType
	StartLine int // 1-indexed
	EndLine   int // Inclusive
	Parent    string // Enclosing class name, if nested
}

// QualifiedName returns "Parent.Name" for nested entities, "Name" otherwise.
func (e Entity) QualifiedName() string {
	if e.Parent != "" {
		return e.Parent + "." + e.Name
	}
	return e.Name
}

// Parser extracts structural entities from source text.
// Implementations must be deterministic and perform no I/O.
// The tree-sitter parsers cover supported languages; braceParser is
// the fallback for everything else.
type Parser interface {
	ExtractEntities(content []byte) ([]Entity, error)
}

// SkipReason explains why a file was not chunked.
type SkipReason string

const (
	SkipEmpty    SkipReason = "empty"
	SkipTooSmall SkipReason = "below_minimum_size"
	SkipBinary   SkipReason = "binary"
)

// SkipError reports a degenerate input that was skipped, not failed.
type SkipError struct {
	Path   string
	Reason SkipReason
}

func (e *SkipError) Error() string {
	return "skipped " + e.Path + ": " + string(e.Reason)
}

// IsSkip reports whether err is a SkipError and returns its reason.
func IsSkip(err error) (SkipReason, bool) {
	if se, ok := err.(*SkipError); ok {
		return se.Reason, true
	}
	return "", false
}

// Options configures the chunker.
type Options struct {
	WindowSize          int
	WindowOverlap       float64
	MinChunkChars       int
	MinEntityLines      int
	StructuralThreshold int
	CoverageFloor       float64
}

// DefaultOptions returns the default chunker options.
func DefaultOptions() Options {
	return Options{
		WindowSize:          DefaultWindowSize,
		WindowOverlap:       DefaultWindowOverlap,
		MinChunkChars:       DefaultMinChunkChars,
		MinEntityLines:      DefaultMinEntityLines,
		StructuralThreshold: DefaultStructuralThreshold,
		CoverageFloor:       DefaultCoverageFloor,
	}
}
