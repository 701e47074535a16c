package store

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// NewFromEnv picks the exploration store backend: Postgres when
// EXPLORATION_STORE_PG_DSN is set and reachable, JSON files under dir
// otherwise.
func NewFromEnv(dir string) ExplorationStore {
	dsn := strings.TrimSpace(os.Getenv("EXPLORATION_STORE_PG_DSN"))
	if dsn == "" {
		return NewFileStore(dir)
	}
	pg, err := NewPGStore(dsn)
	if err != nil {
		log.Warn().Err(err).Msg("postgres exploration store unavailable, falling back to files")
		return NewFileStore(dir)
	}
	log.Info().Msg("using postgres exploration store")
	return pg
}
