// Package discover walks a project tree and lists the files worth
// indexing: an extension allowlist, directory excludes, and a size
// ceiling keep generated and binary trees out of the pipeline.
package discover

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semidx/semidx/internal/chunk"
	"github.com/semidx/semidx/internal/config"
	idxerrors "github.com/semidx/semidx/internal/errors"
)

// DefaultMaxFileSize is the ingestion ceiling when the config leaves
// it unset.
const DefaultMaxFileSize = 10 * 1024 * 1024

// defaultExcludedDirs are skipped regardless of config.
var defaultExcludedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".semidx":      true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
}

// ListFiles returns the indexable files under root as sorted,
// slash-separated paths relative to root.
func ListFiles(ctx context.Context, root string, cfg config.DiscoveryConfig) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, idxerrors.New(idxerrors.ErrCodeInvalidProject,
			"resolve project root "+root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, idxerrors.New(idxerrors.ErrCodeInvalidProject,
			"stat project root "+root, err)
	}
	if !info.IsDir() {
		return nil, idxerrors.New(idxerrors.ErrCodeInvalidProject,
			root+" is not a directory", nil)
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	include := includeSet(cfg.Include)

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if defaultExcludedDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if matchesExclude(rel, cfg.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}

		if !indexablePath(rel, include, cfg.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, idxerrors.New(idxerrors.ErrCodeInvalidProject,
			"walk project root "+root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Indexable reports whether a path relative to the project root would
// be picked up by ListFiles, ignoring the size ceiling. Watch mode uses
// it to filter filesystem events.
func Indexable(rel string, cfg config.DiscoveryConfig) bool {
	rel = filepath.ToSlash(rel)
	for _, segment := range strings.Split(rel, "/") {
		if segment == "" {
			continue
		}
		if defaultExcludedDirs[segment] || strings.HasPrefix(segment, ".") {
			return false
		}
	}
	return indexablePath(rel, includeSet(cfg.Include), cfg.Exclude)
}

func indexablePath(rel string, include map[string]bool, exclude []string) bool {
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return false
	}
	if matchesExclude(rel, exclude) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if include != nil {
		return include[ext]
	}
	return chunk.DetectLanguage(rel) != "" && !chunk.IsBinaryPath(rel)
}

// includeSet normalizes the allowlist into an extension lookup.
// Returns nil when the config uses the built-in language defaults.
func includeSet(include []string) map[string]bool {
	if len(include) == 0 {
		return nil
	}
	set := make(map[string]bool, len(include))
	for _, ext := range include {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// matchesExclude tests a relative path against exclusion patterns.
// Patterns match either a whole path segment or a filepath.Match glob
// against the path and its base name.
func matchesExclude(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		for _, segment := range strings.Split(rel, "/") {
			if segment == pattern {
				return true
			}
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
