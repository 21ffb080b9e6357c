package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/baofinance/harbor-app-sub003/internal/core"
	"github.com/baofinance/harbor-app-sub003/internal/observability"
)

const outboundStream = "HARBOR_LEDGER"

// OutboundPublisher republishes applied envelopes for downstream
// consumers (analytics, the UI backend). It drains the projection channel,
// which the core fills with non-blocking sends: a slow downstream loses
// messages here but can always rebuild from the event log.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.Output
	log       zerolog.Logger
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.Output) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		log:       observability.NewLogger("publisher"),
	}
}

// Run publishes until the context is cancelled.
func (p *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			subject := fmt.Sprintf("harbor.ledger.applied.%s", strings.ToLower(out.Envelope.Kind.String()))
			if _, err := p.js.Publish(ctx, subject, out.Envelope.Payload); err != nil {
				p.log.Warn().Err(err).Str("subject", subject).Msg("outbound publish failed")
			}
		}
	}
}

// EnsureOutboundStream creates the stream outbound envelopes land on.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      outboundStream,
		Subjects:  []string{"harbor.ledger.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", outboundStream, err)
	}
	return nil
}
