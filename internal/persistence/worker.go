package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/baofinance/harbor-app-sub003/internal/core"
	"github.com/baofinance/harbor-app-sub003/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres. The
// core's sends are blocking, so if this worker falls behind the core
// stalls rather than losing an applied event.
type Worker struct {
	db           *sql.DB
	writer       *Writer
	inputChan    <-chan core.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan core.Output, batchSize int, flushTimeout time.Duration, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:           db,
		writer:       NewWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          observability.NewLogger("persistence"),
	}
}

// Run batches incoming outputs and flushes either when the batch is full
// or the flush timeout expires. Blocks until ctx is cancelled.
func (pw *Worker) Run(ctx context.Context) error {
	batch := make([]core.Output, 0, pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := pw.flush(context.Background(), batch); err != nil {
					pw.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := pw.flush(context.Background(), batch); err != nil {
						pw.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, output)
			if len(batch) >= pw.batchSize {
				pw.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				pw.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops
// a batch; it retries until the write succeeds or shutdown forces one
// final attempt.
func (pw *Worker) flushWithRetry(ctx context.Context, batch []core.Output) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(batch)).
				Msg("persistence retry")
			if pw.metrics != nil {
				pw.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := pw.flush(context.Background(), batch); err != nil {
					pw.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := pw.flush(ctx, batch); err == nil {
			if attempt > 0 {
				pw.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return
		} else if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("flush").Inc()
		}
	}
}

func (pw *Worker) flush(ctx context.Context, batch []core.Output) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := pw.writer.WriteEvents(ctx, tx, batch); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	balances, err := pw.writer.WriteBalances(ctx, tx, batch)
	if err != nil {
		return err
	}
	windows, err := pw.writer.WriteWindows(ctx, tx, batch)
	if err != nil {
		return err
	}
	positions, err := pw.writer.WritePositions(ctx, tx, batch)
	if err != nil {
		return err
	}
	statuses, err := pw.writer.WriteStatuses(ctx, tx, batch)
	if err != nil {
		return err
	}
	sail, err := pw.writer.WriteSailPositions(ctx, tx, batch)
	if err != nil {
		return err
	}
	if err := pw.writer.WriteSweepWatermark(ctx, tx, batch); err != nil {
		return fmt.Errorf("write sweep watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(batch)))
		pw.metrics.PersistEventsWritten.Add(float64(len(batch)))
		pw.metrics.PersistRowsWritten.WithLabelValues("marks_balances").Add(float64(balances))
		pw.metrics.PersistRowsWritten.WithLabelValues("boost_windows").Add(float64(windows))
		pw.metrics.PersistRowsWritten.WithLabelValues("genesis_positions").Add(float64(positions))
		pw.metrics.PersistRowsWritten.WithLabelValues("genesis_bonus_status").Add(float64(statuses))
		pw.metrics.PersistRowsWritten.WithLabelValues("sail_positions").Add(float64(sail))
		if len(batch) > 0 {
			pw.metrics.PersistLastSequence.Set(float64(batch[len(batch)-1].Envelope.Sequence))
		}
	}
	return nil
}
