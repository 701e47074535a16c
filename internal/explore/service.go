package explore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"repolens/internal/clone"
	"repolens/internal/events"
	"repolens/internal/identity"
	"repolens/internal/store"
)

// DefaultMaxAgeHours is the staleness gate for reusing stored explorations.
const DefaultMaxAgeHours = 24

// Service orchestrates one exploration request end to end: staleness gate,
// snapshot acquisition, session run, durable write, lifecycle events.
type Service struct {
	Clones *clone.Orchestrator
	Loop   *Loop
	Store  store.ExplorationStore
	Bus    *events.Bus
	// MaxAgeHours gates reuse of stored results; zero means the default.
	MaxAgeHours float64
	// SubscriberWait lets background explorations wait for a first event
	// subscriber before emitting anything.
	SubscriberWait time.Duration
}

// Explore returns the exploration result for (id, mode), reusing a stored
// record when it is recent enough and force is unset. Acquisition and store
// write failures are hard errors; every path through the session itself
// yields a well-typed result.
func (s *Service) Explore(ctx context.Context, id identity.Identity, mode Mode, force bool) (Result, error) {
	maxAge := s.MaxAgeHours
	if maxAge <= 0 {
		maxAge = DefaultMaxAgeHours
	}
	if !force && s.Store != nil && s.Store.HasRecent(id, mode.Name, maxAge) {
		if rec, ok, err := s.Store.Load(id, mode.Name); err == nil && ok {
			var r Result
			if err := json.Unmarshal(rec.Result, &r); err == nil {
				return normalize(r), nil
			}
		}
	}

	cloneRes, err := s.Clones.Wait(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if cloneRes.Status != clone.StatusSuccess {
		s.publishFailed(id, mode, cloneRes.Error)
		return Result{}, fmt.Errorf("explore: snapshot acquisition failed: %s", cloneRes.Error)
	}

	result, err := s.Loop.Run(ctx, id, cloneRes.Path, mode)
	if err != nil {
		return Result{}, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return Result{}, fmt.Errorf("explore: marshal result: %w", err)
	}
	if s.Store != nil {
		if _, err := s.Store.Save(id, mode.Name, raw); err != nil {
			s.publishFailed(id, mode, err.Error())
			return Result{}, err
		}
	}

	if s.Bus != nil {
		ev := events.New(events.TypeExplorationCompleted, id)
		ev.Mode = mode.Name
		ev.Data = result
		s.Bus.Publish(id, ev)
	}
	return result, nil
}

// ExploreInBackground runs Explore fire-and-forget. Outcome is reported via
// the event bus; failures are additionally logged.
func (s *Service) ExploreInBackground(id identity.Identity, mode Mode) {
	go func() {
		if s.SubscriberWait > 0 && s.Bus != nil {
			s.Bus.WaitForSubscriber(id, s.SubscriberWait)
		}
		if _, err := s.Explore(context.Background(), id, mode, false); err != nil {
			log.Warn().Err(err).Str("repo", id.Key()).Str("mode", mode.Name).Msg("background exploration failed")
		}
	}()
}

func (s *Service) publishFailed(id identity.Identity, mode Mode, errMsg string) {
	if s.Bus == nil {
		return
	}
	ev := events.New(events.TypeExplorationFailed, id)
	ev.Mode = mode.Name
	ev.Error = errMsg
	s.Bus.Publish(id, ev)
}
