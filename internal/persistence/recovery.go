package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/baofinance/harbor-app-sub003/internal/event"
)

// LoadEventsFrom streams logged events with sequence >= from, in order,
// decoded back into typed events for startup replay.
func LoadEventsFrom(ctx context.Context, db *sql.DB, from int64, apply func(event.Event) error) (int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sequence, event_type, payload
		FROM events
		WHERE sequence >= $1
		ORDER BY sequence ASC`, from)
	if err != nil {
		return 0, fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	var replayed int64
	for rows.Next() {
		var (
			seq       int64
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&seq, &eventType, &payload); err != nil {
			return replayed, fmt.Errorf("scan event row: %w", err)
		}
		evt, err := event.Decode(kindFromString(eventType), payload)
		if err != nil {
			return replayed, fmt.Errorf("decode event seq %d: %w", seq, err)
		}
		if err := apply(evt); err != nil {
			return replayed, fmt.Errorf("replay event seq %d: %w", seq, err)
		}
		replayed++
	}
	return replayed, rows.Err()
}

func kindFromString(s string) event.Kind {
	for k := event.KindTokenTransfer; k <= event.KindBlockTick; k++ {
		if k.String() == s {
			return k
		}
	}
	return event.KindUnknown
}

// LastSequence returns the highest logged sequence, or 0 on an empty log.
func LastSequence(ctx context.Context, db *sql.DB) (int64, error) {
	var seq sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
