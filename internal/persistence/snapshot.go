package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baofinance/harbor-app-sub003/internal/core"
	"github.com/baofinance/harbor-app-sub003/internal/observability"
)

// SnapshotStore saves and loads full engine snapshots. Snapshots bound
// replay time on restart: restore the latest one, then replay the event
// log from its sequence.
type SnapshotStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewSnapshotStore(db *sql.DB, metrics *observability.Metrics) *SnapshotStore {
	return &SnapshotStore{db: db, metrics: metrics}
}

// Save writes a snapshot and returns its row id.
func (s *SnapshotStore) Save(ctx context.Context, snap *core.Snapshot) (uuid.UUID, error) {
	start := time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode snapshot: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, sequence, data, created_at)
		VALUES ($1, $2, $3, NOW())`,
		id, snap.Sequence, data,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert snapshot: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SnapshotTaken.Inc()
		s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		s.metrics.SnapshotSizeBytes.Set(float64(len(data)))
		s.metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	}
	return id, nil
}

// LoadLatest returns the newest snapshot, or nil if none exists.
func (s *SnapshotStore) LoadLatest(ctx context.Context) (*core.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots ORDER BY sequence DESC, created_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Prune deletes all but the newest keep snapshots.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY sequence DESC, created_at DESC LIMIT $1
		)`, keep)
	return err
}
