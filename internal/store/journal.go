package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"morphogen/internal/events"
)

// Outbox buffers engine events until the next Commit writes them together
// with the state they describe.
type Outbox struct {
	mu      sync.Mutex
	pending []events.Event
}

// HandleEvent implements events.Sink.
func (o *Outbox) HandleEvent(ev events.Event) {
	o.mu.Lock()
	o.pending = append(o.pending, ev)
	o.mu.Unlock()
}

// Take empties the outbox and returns what it held.
func (o *Outbox) Take() []events.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	evs := o.pending
	o.pending = nil
	return evs
}

// Requeue puts evs back ahead of anything buffered since they were taken.
func (o *Outbox) Requeue(evs []events.Event) {
	if len(evs) == 0 {
		return
	}
	o.mu.Lock()
	o.pending = append(append([]events.Event(nil), evs...), o.pending...)
	o.mu.Unlock()
}

// Len returns the number of buffered events.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Append writes one event to the journal.
func (s *Store) Append(ctx context.Context, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEvent(ctx, s.db, ev)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEvent(ctx context.Context, db execer, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO events (id, kind, tick, artifact_id, payload) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), int64(ev.Tick), int64(ev.ArtifactID), string(payload))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// EventQuery filters journal reads. Zero fields match everything.
type EventQuery struct {
	ArtifactID uint64
	Kind       events.Kind
	Limit      int // most recent N; 0 means all
}

// Events returns journaled events oldest first.
func (s *Store) Events(ctx context.Context, q EventQuery) ([]events.Event, error) {
	var (
		where []string
		args  []any
	)
	if q.ArtifactID != 0 {
		where = append(where, "artifact_id = ?")
		args = append(args, int64(q.ArtifactID))
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}

	query := "SELECT payload FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev events.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountEvents returns the journal size per kind.
func (s *Store) CountEvents(ctx context.Context) (map[events.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.Kind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[events.Kind(kind)] = n
	}
	return counts, rows.Err()
}
