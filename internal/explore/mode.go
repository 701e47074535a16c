package explore

import "repolens/internal/tools"

// Mode is one named configuration of the exploration loop. The set of modes
// is closed: every field is required at construction time below, so an
// unsupported mode is a missing variable, not a runtime lookup miss.
type Mode struct {
	Name string
	// Instruction is the system instruction for the session.
	Instruction string
	// Schema describes the final-answer shape the model must commit.
	Schema string
	// ExcerptLines is the file-excerpt line budget for this mode.
	ExcerptLines int
	// Tools is the exact tool subset offered to the session.
	Tools []string
}

// FirstPass is the fast shallow mode. It deliberately omits text.search to
// force a quick tree-plus-manifest read instead of a deep dig.
var FirstPass = Mode{
	Name: "first_pass",
	Instruction: "You are inspecting an unfamiliar source repository. " +
		"Form a quick first impression: what the project is, which files matter, " +
		"and what its headline features are. Start from the tree overview, then " +
		"read at most a handful of manifest and entry-point files. Do not attempt " +
		"an exhaustive review.",
	Schema: `{"summary":"one paragraph","key_files":["path"],"features":["short feature name"]}`,
	ExcerptLines: 60,
	Tools:        []string{"repo.overview", "file.excerpt", tools.FinalToolName},
}

// General is the full structured understanding mode.
var General = Mode{
	Name: "general",
	Instruction: "You are analyzing a source repository to produce a structured " +
		"understanding of it: purpose, dependencies, infrastructure, user-facing " +
		"pages, and the user stories the code supports. Orient with the tree " +
		"overview, read the manifests and key modules, and search for routes, " +
		"schemas, and integrations before answering.",
	Schema: `{"summary":"one paragraph","key_files":["path"],"dependencies":["name"],` +
		`"infrastructure":["component"],"user_stories":["as a ..., I ..."],"pages":["route or screen"]}`,
	ExcerptLines: 120,
	Tools:        []string{"repo.overview", "file.excerpt", "text.search", tools.FinalToolName},
}

// Services is the deployment-configuration mode: it drafts the three
// service configuration files for running the project.
var Services = Mode{
	Name: "services",
	Instruction: "You are preparing deployment configuration for a source " +
		"repository. Determine how the project builds and runs, then draft a " +
		"Dockerfile, a docker-compose file, and a CI workflow for it. Read the " +
		"build manifests and any existing configuration before drafting.",
	Schema:       `{"summary":"one paragraph","dockerfile":"file body","compose_file":"file body","ci_workflow":"file body"}`,
	ExcerptLines: 150,
	Tools:        []string{"repo.overview", "file.excerpt", "text.search", tools.FinalToolName},
}

var modesByName = map[string]Mode{
	FirstPass.Name: FirstPass,
	General.Name:   General,
	Services.Name:  Services,
}

// ModeByName resolves a mode for callers arriving with a string (the HTTP
// layer); in-process callers use the package variables directly.
func ModeByName(name string) (Mode, bool) {
	m, ok := modesByName[name]
	return m, ok
}

// AllowsTool reports whether the mode's tool subset includes name.
func (m Mode) AllowsTool(name string) bool {
	for _, t := range m.Tools {
		if t == name {
			return true
		}
	}
	return false
}
