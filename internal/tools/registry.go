package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Spec documents a tool's contract for prompt inclusion.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Tool is a minimal in-process inspection tool. Tools are read-only and
// idempotent; none may write into the snapshot.
type Tool interface {
	Spec() Spec
	Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Provider is the tool surface offered to an exploration session.
type Provider interface {
	Specs() []Spec
	Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)
}

// Registry holds tool registrations and dispatches calls.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates a registry holding the provided tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	if r == nil || t == nil {
		return
	}
	spec := t.Spec()
	if spec.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[spec.Name]; !ok {
		r.order = append(r.order, spec.Name)
	}
	r.tools[spec.Name] = t
}

// Call invokes a registered tool.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	if r == nil {
		return nil, fmt.Errorf("tools: registry is nil")
	}
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %q", name)
	}
	return t.Call(ctx, input)
}

// Specs returns tool specs in registration order.
func (r *Registry) Specs() []Spec {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return out
}

// Subset restricts the registry to the named tools. Unlisted tools are
// invisible to Specs and rejected by Call: a hard capability restriction,
// not a runtime choice left to the model.
func (r *Registry) Subset(names ...string) Provider {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return &subset{reg: r, names: names, allowed: allowed}
}

type subset struct {
	reg     *Registry
	names   []string
	allowed map[string]struct{}
}

func (s *subset) Specs() []Spec {
	out := make([]Spec, 0, len(s.names))
	for _, spec := range s.reg.Specs() {
		if _, ok := s.allowed[spec.Name]; ok {
			out = append(out, spec)
		}
	}
	return out
}

func (s *subset) Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	if _, ok := s.allowed[name]; !ok {
		return nil, fmt.Errorf("tools: tool %q not offered in this session", name)
	}
	return s.reg.Call(ctx, name, input)
}
