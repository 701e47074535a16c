package clone

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"repolens/internal/events"
	"repolens/internal/identity"
)

// Status is the lifecycle state of a clone job.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	// StatusUnknown is returned by GetResult when no snapshot exists and
	// no job has ever been started. It is not a failure.
	StatusUnknown Status = "unknown"
)

// Result is the observable outcome of a clone job.
type Result struct {
	ID       string            `json:"id,omitempty"`
	Identity identity.Identity `json:"identity"`
	Path     string            `json:"path,omitempty"`
	Status   Status            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration,omitempty"`
}

type job struct {
	result Result
	done   chan struct{}
}

// defaultGrace keeps a completed job registered briefly so closely-spaced
// duplicate requests still observe and reuse it. Tunable, not a fixed law.
const defaultGrace = 30 * time.Second

// runGitCommand executes git with the given args. Injectable in tests.
var runGitCommand = func(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Orchestrator turns "I need a local copy of repo X" into a deduplicated,
// awaitable background job. At most one clone job is in flight per identity.
type Orchestrator struct {
	// Base is the snapshot root: one directory per owner, one
	// subdirectory per repository name.
	Base string
	Bus  *events.Bus
	// Grace delays eviction of a completed job from the registry.
	Grace time.Duration
	// SubscriberWait, when positive, lets background clones wait for a
	// first event subscriber before emitting clone_started.
	SubscriberWait time.Duration

	mu   sync.Mutex
	jobs map[string]*job
}

func NewOrchestrator(base string, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		Base:  base,
		Bus:   bus,
		Grace: defaultGrace,
		jobs:  make(map[string]*job),
	}
}

// InBackground starts acquisition without blocking the caller. Terminal
// failure is logged and published on the bus; there is no propagation path
// for fire-and-forget callers.
func (o *Orchestrator) InBackground(id identity.Identity) {
	go func() {
		if o.SubscriberWait > 0 && o.Bus != nil {
			o.Bus.WaitForSubscriber(id, o.SubscriberWait)
		}
		res, err := o.Wait(context.Background(), id)
		if err != nil {
			log.Error().Err(err).Str("repo", id.Key()).Msg("background clone failed")
			return
		}
		if res.Status == StatusFailed {
			log.Warn().Str("repo", id.Key()).Str("error", res.Error).Msg("background clone failed")
		}
	}()
}

// Wait returns the clone result for id, reusing an in-flight job if one
// exists, starting a new one otherwise. If a valid snapshot already exists
// on disk it returns a synthesized success without touching git. The
// registry is consulted before the disk so a caller racing an in-flight
// clone joins the job rather than trusting whatever git has written so far.
func (o *Orchestrator) Wait(ctx context.Context, id identity.Identity) (Result, error) {
	path := id.ClonePath(o.Base)

	o.mu.Lock()
	if j, ok := o.jobs[id.Key()]; ok {
		o.mu.Unlock()
		return o.await(ctx, j)
	}
	if snapshotExists(path) {
		o.mu.Unlock()
		return Result{Identity: id, Path: path, Status: StatusSuccess}, nil
	}
	j := &job{
		result: Result{ID: uuid.NewString(), Identity: id, Path: path, Status: StatusPending},
		done:   make(chan struct{}),
	}
	o.jobs[id.Key()] = j
	o.mu.Unlock()

	o.run(id, j)
	return j.result, nil
}

// GetResult is non-blocking with respect to new work: it returns the known
// result if the snapshot exists, awaits an in-flight job if one exists, and
// otherwise reports StatusUnknown without starting anything.
func (o *Orchestrator) GetResult(ctx context.Context, id identity.Identity) (Result, error) {
	path := id.ClonePath(o.Base)
	o.mu.Lock()
	j, ok := o.jobs[id.Key()]
	o.mu.Unlock()
	if ok {
		return o.await(ctx, j)
	}
	if snapshotExists(path) {
		return Result{Identity: id, Path: path, Status: StatusSuccess}, nil
	}
	return Result{Identity: id, Status: StatusUnknown}, nil
}

// SnapshotPath reports the on-disk location for id and whether a valid
// snapshot is present there.
func (o *Orchestrator) SnapshotPath(id identity.Identity) (string, bool) {
	path := id.ClonePath(o.Base)
	return path, snapshotExists(path)
}

func (o *Orchestrator) await(ctx context.Context, j *job) (Result, error) {
	select {
	case <-j.done:
		return j.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (o *Orchestrator) run(id identity.Identity, j *job) {
	o.publish(id, events.TypeCloneStarted, nil, "")
	start := time.Now()

	err := o.acquire(id, j.result.Path)

	j.result.Duration = time.Since(start)
	if err != nil {
		j.result.Status = StatusFailed
		j.result.Error = err.Error()
		o.publish(id, events.TypeCloneCompleted, nil, err.Error())
		log.Warn().Str("repo", id.Key()).Err(err).Dur("took", j.result.Duration).Msg("clone failed")
	} else {
		j.result.Status = StatusSuccess
		o.publish(id, events.TypeCloneCompleted, map[string]any{"path": j.result.Path}, "")
		log.Info().Str("repo", id.Key()).Dur("took", j.result.Duration).Msg("clone completed")
	}
	close(j.done)
	o.scheduleEviction(id)
}

// acquire performs a shallow, single-branch fetch of only the latest
// revision; history and other branches are never needed. git writes into a
// staging directory that is renamed into place once the clone finishes, so
// the snapshot path never holds a partially checked-out tree.
func (o *Orchestrator) acquire(id identity.Identity, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("clone: mkdir owner dir: %w", err)
	}
	staging := path + ".partial-" + uuid.NewString()[:8]
	defer os.RemoveAll(staging)

	args := []string{"clone", "--depth", "1", "--single-branch", id.CloneURL(), staging}
	if err := runGitCommand(context.Background(), args...); err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	// A leftover at the target can only be an invalid remnant: a valid
	// snapshot would have been reused before starting this job.
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clone: clear target: %w", err)
	}
	if err := os.Rename(staging, path); err != nil {
		return fmt.Errorf("clone: move snapshot into place: %w", err)
	}
	return nil
}

func (o *Orchestrator) scheduleEviction(id identity.Identity) {
	grace := o.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	time.AfterFunc(grace, func() {
		o.mu.Lock()
		delete(o.jobs, id.Key())
		o.mu.Unlock()
	})
}

func (o *Orchestrator) publish(id identity.Identity, typ events.Type, data map[string]any, errMsg string) {
	if o.Bus == nil {
		return
	}
	ev := events.New(typ, id)
	ev.Data = data
	ev.Error = errMsg
	o.Bus.Publish(id, ev)
}

func snapshotExists(path string) bool {
	st, err := os.Stat(path)
	if err != nil || !st.IsDir() {
		return false
	}
	// A snapshot is valid once git has materialized it.
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return false
	}
	return true
}
