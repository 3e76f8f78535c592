package chunk

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how to find entities in a language's AST.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that declare functions, methods, classes, interfaces,
	// and named types, respectively.
	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	InterfaceTypes []string
	TypeDefTypes   []string

	// NameTypes are node types that carry the entity name, searched
	// depth-first inside a declaration node.
	NameTypes []string

	// ImportTypes are top-level node types holding import statements.
	ImportTypes []string
}

// LanguageRegistry maps languages to tree-sitter grammars and configs.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with the supported languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.register(&LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		TypeDefTypes:  []string{"type_declaration"},
		NameTypes:     []string{"identifier", "field_identifier", "type_identifier"},
		ImportTypes:   []string{"import_declaration"},
	}, golang.GetLanguage())

	tsConfig := &LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{"type_alias_declaration"},
		NameTypes:      []string{"identifier", "type_identifier", "property_identifier"},
		ImportTypes:    []string{"import_statement"},
	}
	r.register(tsConfig, typescript.GetLanguage())

	tsxConfig := *tsConfig
	tsxConfig.Name = "tsx"
	tsxConfig.Extensions = []string{".tsx"}
	r.register(&tsxConfig, tsx.GetLanguage())

	jsConfig := &LanguageConfig{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		NameTypes:     []string{"identifier", "property_identifier"},
		ImportTypes:   []string{"import_statement"},
	}
	r.register(jsConfig, javascript.GetLanguage())

	jsxConfig := *jsConfig
	jsxConfig.Name = "jsx"
	jsxConfig.Extensions = []string{".jsx"}
	r.register(&jsxConfig, javascript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		NameTypes:     []string{"identifier"},
		ImportTypes:   []string{"import_statement", "import_from_statement"},
	}, python.GetLanguage())

	return r
}

func (r *LanguageRegistry) register(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

// Get returns the config and grammar for a language name.
func (r *LanguageRegistry) Get(name string) (*LanguageConfig, *sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	if !ok {
		return nil, nil, false
	}
	return config, r.tsLanguages[name], true
}

// defaultRegistry is the shared language registry.
var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the shared language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}

// languageByExtension maps file extensions to language names, covering
// both parser-supported and heuristic-only languages.
var languageByExtension = map[string]string{
	".go":    "go",
	".ts":    "typescript",
	".tsx":   "tsx",
	".js":    "javascript",
	".jsx":   "jsx",
	".mjs":   "javascript",
	".py":    "python",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",

	".md":       "markdown",
	".markdown": "markdown",
	".mdx":      "markdown",
	".rst":      "rst",
	".txt":      "text",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",
	".html": "html",
	".css":  "css",
}

// codeLanguages are languages eligible for the structural pass.
var codeLanguages = map[string]bool{
	"go": true, "typescript": true, "tsx": true, "javascript": true,
	"jsx": true, "python": true, "rust": true, "java": true,
	"kotlin": true, "c": true, "cpp": true, "csharp": true,
	"ruby": true, "php": true, "swift": true, "scala": true,
}

// docLanguages are languages handled by the heading-aware pass.
var docLanguages = map[string]bool{
	"markdown": true, "rst": true,
}

// binaryExtensions are never chunked.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".exe": true,
	".so": true, ".dylib": true, ".dll": true, ".bin": true, ".wasm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".webm": true,
	".db": true, ".sqlite": true,
}

// DetectLanguage returns the language for a file path, or "" if unknown.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return languageByExtension[ext]
}

// IsCodeLanguage reports whether lang gets the structural pass.
func IsCodeLanguage(lang string) bool {
	return codeLanguages[lang]
}

// IsDocLanguage reports whether lang gets the heading-aware pass.
func IsDocLanguage(lang string) bool {
	return docLanguages[lang]
}

// IsBinaryPath reports whether a path has a known binary extension.
func IsBinaryPath(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
