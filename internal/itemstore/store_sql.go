package itemstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore persists item entries in the item_store table, scoped by session
// so one database can back several concurrent test sessions.
type SQLStore struct {
	db        *sql.DB
	sessionID string
}

func NewSQLStore(db *sql.DB, sessionID string) *SQLStore {
	return &SQLStore{db: db, sessionID: sessionID}
}

func (s *SQLStore) Get(ctx context.Context, identifier string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identifier, attempt, payload FROM item_store WHERE session_id=$1 AND identifier=$2`,
		s.sessionID, identifier)
	var e Entry
	var payload string
	if err := row.Scan(&e.Identifier, &e.Attempt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	if payload != "" {
		e.Payload = []byte(payload)
	}
	return e, true, nil
}

func (s *SQLStore) Set(ctx context.Context, e Entry) error {
	if e.Identifier == "" {
		return errors.New("itemstore: empty identifier")
	}
	prev, ok, err := s.Get(ctx, e.Identifier)
	if err != nil {
		return err
	}
	if ok && e.Attempt < prev.Attempt {
		return fmt.Errorf("%w: %q %d -> %d", ErrAttemptRegression, e.Identifier, prev.Attempt, e.Attempt)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO item_store (session_id, identifier, attempt, payload, updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (session_id, identifier)
		 DO UPDATE SET attempt=EXCLUDED.attempt, payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		s.sessionID, e.Identifier, e.Attempt, string(e.Payload), time.Now().Unix())
	return err
}

func (s *SQLStore) Delete(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM item_store WHERE session_id=$1 AND identifier=$2`, s.sessionID, identifier)
	return err
}

func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_store WHERE session_id=$1`, s.sessionID).Scan(&n)
	return n, err
}
