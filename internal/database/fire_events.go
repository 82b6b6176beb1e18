package database

import (
	"context"
	"fmt"
	"time"
)

// Outcome of a fire request
type Outcome string

const (
	OutcomeFired  Outcome = "fired"
	OutcomeDenied Outcome = "denied"
	OutcomeFailed Outcome = "failed"
)

// FireEvent is one audited fire decision
type FireEvent struct {
	ID               int64
	CreatedAt        time.Time
	UserKey          string
	Nick             string
	Channel          string // empty for private messages
	Reason           string
	Outcome          Outcome
	SecondsRemaining int
	RequestID        string
	Error            string
}

// RecordFireEvent inserts an event; a zero CreatedAt is stamped with the current time
func (db *DB) RecordFireEvent(ctx context.Context, event *FireEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO fire_events
			(created_at, user_key, nick, channel, reason, outcome, seconds_remaining, request_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.CreatedAt.UnixMilli(),
		event.UserKey,
		event.Nick,
		event.Channel,
		event.Reason,
		string(event.Outcome),
		event.SecondsRemaining,
		event.RequestID,
		event.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record fire event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get fire event id: %w", err)
	}
	event.ID = id

	return nil
}

// RecentFireEvents returns up to limit events, newest first
func (db *DB) RecentFireEvents(ctx context.Context, limit int) ([]*FireEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, created_at, user_key, nick, channel, reason, outcome, seconds_remaining, request_id, error
		FROM fire_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fire events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []*FireEvent
	for rows.Next() {
		var (
			event     FireEvent
			createdAt int64
			outcome   string
		)
		if err := rows.Scan(
			&event.ID,
			&createdAt,
			&event.UserKey,
			&event.Nick,
			&event.Channel,
			&event.Reason,
			&outcome,
			&event.SecondsRemaining,
			&event.RequestID,
			&event.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fire event: %w", err)
		}
		event.CreatedAt = time.UnixMilli(createdAt)
		event.Outcome = Outcome(outcome)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fire events: %w", err)
	}

	return events, nil
}

// CountFireEventsByOutcome counts events at or after since, grouped by outcome
func (db *DB) CountFireEventsByOutcome(ctx context.Context, since time.Time) (map[Outcome]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM fire_events
		WHERE created_at >= ?
		GROUP BY outcome
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to count fire events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := map[Outcome]int64{
		OutcomeFired:  0,
		OutcomeDenied: 0,
		OutcomeFailed: 0,
	}
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan fire event count: %w", err)
		}
		counts[Outcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fire event counts: %w", err)
	}

	return counts, nil
}

// PruneFireEvents deletes events created before cutoff and returns how many were removed
func (db *DB) PruneFireEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM fire_events WHERE created_at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune fire events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}
