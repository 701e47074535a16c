package tools

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// --------------------- repo.overview ---------------------

const (
	defaultOverviewDepth = 3
	maxOverviewFiles     = 1500
)

type overviewTool struct{ host Host }

func newOverviewTool(h Host) *overviewTool { return &overviewTool{host: h} }

func (t *overviewTool) Spec() Spec {
	return Spec{
		Name:        "repo.overview",
		Description: "List the repository file tree to a bounded depth for orientation.",
		InputSchema: json.RawMessage(`{"max_depth":"int, optional, default 3"}`),
	}
}

type overviewInput struct {
	MaxDepth int `json:"max_depth"`
}

type overviewOutput struct {
	Status    string `json:"status"`
	Tree      string `json:"tree,omitempty"`
	FileCount int    `json:"file_count,omitempty"`
}

func (t *overviewTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in overviewInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, err
		}
	}
	if in.MaxDepth <= 0 {
		in.MaxDepth = defaultOverviewDepth
	}

	if st, err := os.Stat(t.host.Snapshot); err != nil || !st.IsDir() {
		return json.Marshal(overviewOutput{Status: StatusNotReady})
	}

	paths := make([]string, 0, 256)
	root := t.host.Snapshot
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch filepath.Base(path) {
			case ".git", ".hg", ".svn", "node_modules", "vendor", "target", "build", ".next", ".cache":
				return filepath.SkipDir
			}
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.Count(rel, "/") >= in.MaxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			paths = append(paths, rel)
			if len(paths) >= maxOverviewFiles {
				return filepath.SkipAll
			}
		}
		return nil
	})

	return json.Marshal(overviewOutput{
		Status:    StatusOK,
		Tree:      pathsToTree(paths),
		FileCount: len(paths),
	})
}

// pathsToTree converts a list of file paths into a visual tree string:
//
//	src
//	├── main.go
//	└── utils
//	    └── helper.go
func pathsToTree(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	root := make(map[string]any)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		current := root
		for _, part := range strings.Split(p, "/") {
			if part == "" || part == "." {
				continue
			}
			if _, ok := current[part]; !ok {
				current[part] = make(map[string]any)
			}
			current = current[part].(map[string]any)
		}
	}
	var sb strings.Builder
	renderTree(&sb, root, "")
	return strings.TrimSpace(sb.String())
}

func renderTree(sb *strings.Builder, node map[string]any, prefix string) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		isLast := i == len(keys)-1
		sb.WriteString(prefix)
		if isLast {
			sb.WriteString("└── ")
		} else {
			sb.WriteString("├── ")
		}
		sb.WriteString(k)
		sb.WriteString("\n")

		children := node[k].(map[string]any)
		if len(children) > 0 {
			newPrefix := prefix + "│   "
			if isLast {
				newPrefix = prefix + "    "
			}
			renderTree(sb, children, newPrefix)
		}
	}
}
