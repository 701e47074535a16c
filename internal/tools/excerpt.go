package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// --------------------- file.excerpt ---------------------

const (
	defaultExcerptLines = 120
	// maxLineChars bounds pathological (minified) lines.
	maxLineChars = 500
)

type excerptTool struct{ host Host }

func newExcerptTool(h Host) *excerptTool { return &excerptTool{host: h} }

func (t *excerptTool) Spec() Spec {
	return Spec{
		Name:        "file.excerpt",
		Description: "Read the first lines of a file from the repository.",
		InputSchema: json.RawMessage(`{"path":"string, repo-relative"}`),
	}
}

type excerptInput struct {
	Path string `json:"path"`
}

type excerptOutput struct {
	Status    string `json:"status"`
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (t *excerptTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in excerptInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	in.Path = strings.Trim(strings.TrimSpace(in.Path), `"'`)
	if in.Path == "" {
		return nil, fmt.Errorf("file.excerpt: path required")
	}

	fsys, err := t.host.fs()
	if err != nil {
		return json.Marshal(excerptOutput{Status: StatusNotReady, Path: in.Path})
	}
	f, err := fsys.Open(in.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return json.Marshal(excerptOutput{Status: StatusNotFound, Path: in.Path})
		}
		return nil, err
	}
	defer f.Close()

	budget := t.host.ExcerptLines
	if budget <= 0 {
		budget = defaultExcerptLines
	}

	var sb strings.Builder
	truncated := false
	reader := bufio.NewReaderSize(f, 64*1024)
	lines := 0
	eof := false
	for lines < budget {
		line, overlong, err := readBoundedLine(reader)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("file.excerpt: read %s: %w", in.Path, err)
		}
		if err == io.EOF {
			eof = true
			if line == "" {
				break
			}
		}
		if overlong {
			line += " …"
			truncated = true
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		lines++
		if eof {
			break
		}
	}
	if lines >= budget && !eof {
		truncated = true
	}

	return json.Marshal(excerptOutput{
		Status:    StatusOK,
		Path:      in.Path,
		Content:   sb.String(),
		Truncated: truncated,
	})
}

// readBoundedLine reads one line, keeping at most maxLineChars bytes of it
// and discarding the rest, so a single minified line can never exhaust
// memory or abort the read the way a fixed scanner buffer would.
func readBoundedLine(r *bufio.Reader) (line string, overlong bool, err error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return sb.String(), overlong, err
		}
		if b == '\n' {
			return strings.TrimSuffix(sb.String(), "\r"), overlong, nil
		}
		if sb.Len() < maxLineChars {
			sb.WriteByte(b)
		} else {
			overlong = true
		}
	}
}
