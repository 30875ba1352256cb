package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mind-engage/testnav/internal/jump"
)

// EventTypeJump is the event type recorded for every navigation decision.
const EventTypeJump = "jump"

type Event struct {
	Offset    int64
	SessionID string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// EventRepo appends and replays the navigation decision log. The log is the
// durable form of the jump table: after connectivity loss a session is
// rebuilt by replaying it in offset order.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (session_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SessionID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// AppendJump records one jump entry for a session.
func (r *EventRepo) AppendJump(ctx context.Context, sessionID string, entry jump.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.Append(ctx, Event{
		SessionID: sessionID,
		Type:      EventTypeJump,
		Key:       entry.Item,
		DataJSON:  string(data),
	})
}

// Jumps returns a session's recorded jump entries in append order.
func (r *EventRepo) Jumps(ctx context.Context, sessionID string) ([]jump.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM event_log WHERE session_id=$1 AND typ=$2 ORDER BY "offset" ASC`,
		sessionID, EventTypeJump)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jump.Entry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e jump.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replay rebuilds a jump service's table from the session's log.
func (r *EventRepo) Replay(ctx context.Context, sessionID string, svc *jump.Service) error {
	entries, err := r.Jumps(ctx, sessionID)
	if err != nil {
		return err
	}
	svc.Clear()
	for _, e := range entries {
		if err := svc.AddJump(ctx, e.Part, e.Section, e.Item, e.Position); err != nil {
			return err
		}
	}
	return nil
}
