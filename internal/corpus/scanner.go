package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// UncategorizedCategory is used for files placed directly under the corpus root.
const UncategorizedCategory = "general"

// File is a legal markdown file found during a corpus scan.
type File struct {
	RelPath  string // Relative path from corpus root (e.g., "codes/code-penal.md")
	Category string // First path segment (e.g., "codes")
	AbsPath  string
}

// SourceType maps a category to the kind of legal source it holds.
func (f File) SourceType() string {
	switch f.Category {
	case "codes":
		return "code"
	case "jurisprudence":
		return "ruling"
	case "lois", "laws":
		return "law"
	case "decrets", "decrees":
		return "decree"
	default:
		return "text"
	}
}

// Scan walks root and returns every markdown file, skipping hidden directories.
func Scan(ctx context.Context, root string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".md" && ext != ".markdown" {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		files = append(files, File{
			RelPath:  relPath,
			Category: CategoryOf(relPath),
			AbsPath:  path,
		})
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan corpus %s: %w", root, err)
	}
	return files, nil
}

// CategoryOf returns the first path segment of relPath, lower-cased.
func CategoryOf(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	i := strings.Index(relPath, "/")
	if i <= 0 {
		return UncategorizedCategory
	}
	return strings.ToLower(relPath[:i])
}
