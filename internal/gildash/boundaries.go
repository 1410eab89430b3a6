package gildash

import "path/filepath"

// ProjectBoundary is a discovered project root within the workspace, per
// spec.md §3's "process-wide ordered sequence" of boundaries.
type ProjectBoundary struct {
	RelDir  string
	Project string
}

// BoundaryDiscoverer locates project boundaries under projectRoot; the
// default treats the whole tree as a single project named after the root
// directory. Multi-project workspaces inject their own via Config.
type BoundaryDiscoverer func(projectRoot string) ([]ProjectBoundary, error)

// defaultDiscoverBoundaries implements the single-project default.
func defaultDiscoverBoundaries(projectRoot string) ([]ProjectBoundary, error) {
	return []ProjectBoundary{{RelDir: ".", Project: filepath.Base(projectRoot)}}, nil
}
