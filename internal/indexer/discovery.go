package indexer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// discoverFiles walks root honoring extensions and ignorePatterns, grounded
// on the teacher's internal/indexer/discovery.go FileDiscovery. Returns
// project-relative, slash-normalized paths — the disk set D of spec.md
// §4.4 step 1.
func discoverFiles(root string, extensions []string, ignorePatterns []string) ([]string, error) {
	compiled := make([]glob.Glob, 0, len(ignorePatterns))
	var doublestarPatterns []string
	for _, p := range ignorePatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			// gobwas/glob rejects some "**" forms that doublestar accepts;
			// fall back to doublestar matching for those patterns.
			doublestarPatterns = append(doublestarPatterns, p)
			continue
		}
		compiled = append(compiled, g)
	}

	extSet := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		extSet[e] = struct{}{}
	}

	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if shouldIgnore(rel+"/", compiled, doublestarPatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldIgnore(rel, compiled, doublestarPatterns) {
			return nil
		}
		if _, ok := extSet[strings.ToLower(filepath.Ext(rel))]; !ok {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func shouldIgnore(rel string, compiled []glob.Glob, doublestarPatterns []string) bool {
	for _, g := range compiled {
		if g.Match(rel) {
			return true
		}
	}
	for _, p := range doublestarPatterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
