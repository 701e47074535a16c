package tools

import (
	"repolens/internal/runner"
	"repolens/internal/safeio"
)

// Host wires snapshot access for the inspection tools. Snapshot is the
// on-disk working copy for one repository; it may not exist yet when a
// session races the clone, which tools report as not_ready rather than
// failing.
type Host struct {
	Snapshot     string
	ExcerptLines int
	Searcher     *runner.Searcher
}

// StatusOK and friends discriminate tool observations; the session
// controller switches on them instead of sniffing strings.
const (
	StatusOK        = "ok"
	StatusNotReady  = "not_ready"
	StatusNotFound  = "not_found"
	StatusNoMatches = "no_matches"
	StatusTimedOut  = "timed_out"
)

// NewDefaultRegistry installs the full inspection tool set plus the
// terminal answer tool.
func NewDefaultRegistry(h Host) *Registry {
	return NewRegistry(
		newOverviewTool(h),
		newExcerptTool(h),
		newSearchTool(h),
		newFinalTool(),
	)
}

func (h Host) fs() (*safeio.FS, error) {
	return safeio.New(h.Snapshot)
}
