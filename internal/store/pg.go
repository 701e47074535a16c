package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"repolens/internal/identity"
)

// PGStore keeps exploration records in Postgres, one row per
// (identity, mode), overwritten by upsert. It satisfies the same contract
// as FileStore so the composition root can pick either from the
// environment.
type PGStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPGStore(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PGStore{db: db}, nil
}

func (p *PGStore) ensureSchema() error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.Exec(`
			CREATE TABLE IF NOT EXISTS explorations (
				identity   TEXT NOT NULL,
				mode       TEXT NOT NULL,
				payload    JSONB NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (identity, mode)
			);
			CREATE TABLE IF NOT EXISTS repo_basics (
				identity   TEXT PRIMARY KEY,
				payload    JSONB NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`)
	})
	return p.schemaErr
}

func (p *PGStore) Save(id identity.Identity, mode string, result json.RawMessage) (Stored, error) {
	if err := p.ensureSchema(); err != nil {
		return Stored{}, fmt.Errorf("store: pg schema: %w", err)
	}
	rec := Stored{
		Identity:  id,
		Mode:      mode,
		Result:    result,
		Timestamp: time.Now().Unix(),
		Version:   SchemaVersion,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Stored{}, fmt.Errorf("store: marshal exploration: %w", err)
	}
	_, err = p.db.Exec(`
		INSERT INTO explorations (identity, mode, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity, mode) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, id.Key(), mode, payload, rec.Timestamp)
	if err != nil {
		return Stored{}, fmt.Errorf("store: pg upsert: %w", err)
	}
	return rec, nil
}

func (p *PGStore) Load(id identity.Identity, mode string) (Stored, bool, error) {
	if err := p.ensureSchema(); err != nil {
		return Stored{}, false, fmt.Errorf("store: pg schema: %w", err)
	}
	var payload []byte
	err := p.db.QueryRow(
		`SELECT payload FROM explorations WHERE identity = $1 AND mode = $2`,
		id.Key(), mode,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return Stored{}, false, nil
	}
	if err != nil {
		return Stored{}, false, fmt.Errorf("store: pg select: %w", err)
	}
	var rec Stored
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Stored{}, false, fmt.Errorf("store: decode exploration: %w", err)
	}
	return rec, true, nil
}

func (p *PGStore) HasRecent(id identity.Identity, mode string, maxAgeHours float64) bool {
	rec, ok, err := p.Load(id, mode)
	if err != nil || !ok {
		return false
	}
	return rec.Age() < time.Duration(maxAgeHours*float64(time.Hour))
}

func (p *PGStore) SaveBasic(id identity.Identity, data json.RawMessage) error {
	if err := p.ensureSchema(); err != nil {
		return fmt.Errorf("store: pg schema: %w", err)
	}
	_, err := p.db.Exec(`
		INSERT INTO repo_basics (identity, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, id.Key(), []byte(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: pg upsert basic: %w", err)
	}
	return nil
}

func (p *PGStore) LoadBasic(id identity.Identity) (json.RawMessage, bool, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, false, fmt.Errorf("store: pg schema: %w", err)
	}
	var payload []byte
	err := p.db.QueryRow(`SELECT payload FROM repo_basics WHERE identity = $1`, id.Key()).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: pg select basic: %w", err)
	}
	return payload, true, nil
}

func (p *PGStore) Close() error { return p.db.Close() }
