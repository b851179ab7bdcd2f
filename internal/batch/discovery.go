package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
)

// ErrNoImages is returned by Discover when nothing matched.
var ErrNoImages = errors.New("no image files found")

// Discover expands args into image files. Directories are scanned (only
// their top level unless cfg.Recursive); plain files are kept when they pass
// the patterns. Only supported image extensions are returned from
// directories. Results keep argument order, then walk order.
func Discover(args []string, cfg Config) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if shouldInclude(arg, cfg) {
				files = append(files, arg)
			}
			continue
		}
		found, err := discoverInDirectory(arg, cfg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	return files, nil
}

func discoverInDirectory(dir string, cfg Config) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !cfg.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if acquire.IsSupportedImage(path) && shouldInclude(path, cfg) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}

// shouldInclude applies exclude patterns first, then include patterns.
func shouldInclude(path string, cfg Config) bool {
	if matchesAny(path, cfg.ExcludePatterns) {
		return false
	}
	return len(cfg.IncludePatterns) == 0 || matchesAny(path, cfg.IncludePatterns)
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := matchPattern(p, path); ok {
			return true
		}
	}
	return false
}

func matchPattern(pattern, path string) (bool, error) {
	return filepath.Match(pattern, filepath.Base(path))
}
