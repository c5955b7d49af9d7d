package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portfolioSwap/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS engine_events (
	id         UUID PRIMARY KEY,
	sequence   BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	attributes JSONB NOT NULL,
	emitted_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS engine_state (
	name          TEXT PRIMARY KEY,
	last_sequence BIGINT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for engine events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the event tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// InsertEvents writes records, skipping ids already stored.
func (s *Store) InsertEvents(ctx context.Context, records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		attrs, err := json.Marshal(record.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}
		batch.Queue(`
			INSERT INTO engine_events (id, sequence, event_type, attributes, emitted_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`,
			record.ID,
			int64(record.Sequence),
			record.Type,
			attrs,
			record.EmittedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEventBatch implements storage.Storage.
func (s *Store) PutEventBatch(records []model.EventRecord) error {
	return s.InsertEvents(context.Background(), records)
}

// CountEvents returns the number of stored events of eventType.
func (s *Store) CountEvents(ctx context.Context, eventType string) (int64, error) {
	var count int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM engine_events WHERE event_type=$1`, eventType)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LoadState returns the last persisted sequence for a run name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_sequence FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts the last persisted sequence for a run name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, last_sequence, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_sequence = EXCLUDED.last_sequence, updated_at = now()
	`, name, int64(seq))
	return err
}
