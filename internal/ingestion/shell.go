package ingestion

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baofinance/harbor-app-sub003/internal/core"
	"github.com/baofinance/harbor-app-sub003/internal/observability"
)

// Snapshotter saves engine snapshots. Satisfied by
// persistence.SnapshotStore.
type Snapshotter interface {
	Save(ctx context.Context, snap *core.Snapshot) (uuid.UUID, error)
}

// Shell drains the raw event channel, parses each message, and feeds the
// single-writer engine. A message is acked only after the core applied it;
// parse failures ack too, since redelivery cannot fix a malformed payload.
//
// Snapshots are taken from inside the loop so they never race with event
// application.
type Shell struct {
	engine        *core.Engine
	eventChan     <-chan RawEvent
	subjects      []SubjectConfig
	snapshots     Snapshotter
	snapshotEvery int64
	applied       int64
	log           zerolog.Logger
}

func NewShell(engine *core.Engine, eventChan <-chan RawEvent, subjects []SubjectConfig, snapshots Snapshotter, snapshotEvery int64) *Shell {
	return &Shell{
		engine:        engine,
		eventChan:     eventChan,
		subjects:      subjects,
		snapshots:     snapshots,
		snapshotEvery: snapshotEvery,
		log:           observability.NewLogger("shell"),
	}
}

// Run processes events until the context is cancelled. This is the only
// goroutine that calls the engine.
func (s *Shell) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-s.eventChan:
			s.handle(ctx, raw)
		}
	}
}

func (s *Shell) handle(ctx context.Context, raw RawEvent) {
	eventType := s.eventTypeFor(raw.Subject)
	if eventType == "" {
		s.log.Warn().Str("subject", raw.Subject).Msg("message on unmapped subject")
		raw.AckFunc()
		return
	}

	evt, err := ParseRawEvent(raw, eventType)
	if err != nil {
		s.log.Error().Err(err).Str("subject", raw.Subject).Msg("dropping malformed event")
		raw.AckFunc()
		return
	}

	if err := s.engine.ProcessEvent(ctx, evt); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("process event failed")
		raw.NakFunc()
		return
	}
	raw.AckFunc()

	s.applied++
	if s.snapshots != nil && s.snapshotEvery > 0 && s.applied%s.snapshotEvery == 0 {
		if _, err := s.snapshots.Save(ctx, s.engine.Snapshot()); err != nil {
			s.log.Error().Err(err).Msg("snapshot save failed")
		} else {
			s.log.Info().Int64("sequence", s.engine.Sequence()).Msg("snapshot taken")
		}
	}
}

// eventTypeFor matches a delivered subject against the configured subject
// filters. Filters end in ".>", so a prefix match decides.
func (s *Shell) eventTypeFor(subject string) string {
	for _, cfg := range s.subjects {
		prefix := strings.TrimSuffix(cfg.Subject, ">")
		if strings.HasPrefix(subject, prefix) || subject == strings.TrimSuffix(prefix, ".") {
			return cfg.EventType
		}
	}
	return ""
}
