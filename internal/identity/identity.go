package identity

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Identity names a remote repository as an (owner, name) pair. It is the
// stable key for clone paths, cache keys, event channels, and store
// directories. Case-sensitive as provided by the caller.
type Identity struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func New(owner, name string) (Identity, error) {
	id := Identity{Owner: strings.TrimSpace(owner), Name: strings.TrimSpace(name)}
	if err := validateSegment(id.Owner); err != nil {
		return Identity{}, fmt.Errorf("identity: owner: %w", err)
	}
	if err := validateSegment(id.Name); err != nil {
		return Identity{}, fmt.Errorf("identity: name: %w", err)
	}
	return id, nil
}

// Key returns the canonical "owner/name" form used for registry and
// event-channel keys.
func (id Identity) Key() string { return id.Owner + "/" + id.Name }

// DirKey returns a single filesystem-safe path segment for per-identity
// store directories.
func (id Identity) DirKey() string { return id.Owner + "__" + id.Name }

// ClonePath derives the snapshot location under base: one directory per
// owner, one subdirectory per repository name.
func (id Identity) ClonePath(base string) string {
	return filepath.Join(base, id.Owner, id.Name)
}

// CloneURL returns the https clone URL for the identity.
func (id Identity) CloneURL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", id.Owner, id.Name)
}

func (id Identity) String() string { return id.Key() }

// FromURL extracts an Identity from an https or ssh GitHub repository URL.
func FromURL(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, errors.New("identity: empty repo url")
	}

	if strings.HasPrefix(raw, "git@github.com:") {
		repoPath := strings.TrimSuffix(strings.TrimPrefix(raw, "git@github.com:"), ".git")
		return fromOwnerRepoPath(raw, repoPath)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: invalid repo url: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(u.Host), "github.com") {
		return Identity{}, fmt.Errorf("identity: only github.com is supported, got %q", u.Host)
	}
	repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	return fromOwnerRepoPath(raw, repoPath)
}

func fromOwnerRepoPath(raw, repoPath string) (Identity, error) {
	parts := strings.Split(strings.Trim(repoPath, "/"), "/")
	if len(parts) < 2 {
		return Identity{}, fmt.Errorf("identity: invalid github repo url %q", raw)
	}
	return New(parts[0], parts[1])
}

func validateSegment(s string) error {
	if s == "" {
		return errors.New("empty")
	}
	if s == "." || s == ".." {
		return fmt.Errorf("invalid segment %q", s)
	}
	if strings.ContainsAny(s, `/\`) {
		return errors.New("must be a single path segment")
	}
	return nil
}
