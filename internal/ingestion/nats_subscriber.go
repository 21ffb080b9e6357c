package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/baofinance/harbor-app-sub003/internal/observability"
)

// NATSSubscriber subscribes to JetStream subjects and feeds raw events
// into the shell's event channel. The channel preserves delivery order;
// the core applies events one at a time.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
	log       zerolog.Logger
}

// RawEvent is a delivered-but-untyped message, ready to be parsed and
// handed to the core.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func()
	NakFunc   func()
}

// SubjectConfig maps one NATS subject to an event type.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject layout published by the
// upstream indexer.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "harbor.transfers.>", EventType: "TokenTransfer", ConsumerName: "marks-transfers", StreamName: "HARBOR_TRANSFERS"},
		{Subject: "harbor.pools.deposit.>", EventType: "PoolDeposit", ConsumerName: "marks-pool-deposit", StreamName: "HARBOR_POOLS"},
		{Subject: "harbor.pools.withdraw.>", EventType: "PoolWithdraw", ConsumerName: "marks-pool-withdraw", StreamName: "HARBOR_POOLS"},
		{Subject: "harbor.pools.change.>", EventType: "PoolDepositChange", ConsumerName: "marks-pool-change", StreamName: "HARBOR_POOLS"},
		{Subject: "harbor.campaigns.deposit.>", EventType: "CampaignDeposit", ConsumerName: "marks-campaign-deposit", StreamName: "HARBOR_CAMPAIGNS"},
		{Subject: "harbor.campaigns.withdraw.>", EventType: "CampaignWithdraw", ConsumerName: "marks-campaign-withdraw", StreamName: "HARBOR_CAMPAIGNS"},
		{Subject: "harbor.campaigns.end.>", EventType: "CampaignEnd", ConsumerName: "marks-campaign-end", StreamName: "HARBOR_CAMPAIGNS"},
		{Subject: "harbor.campaigns.claim.>", EventType: "GenesisClaim", ConsumerName: "marks-campaign-claim", StreamName: "HARBOR_CAMPAIGNS"},
		{Subject: "harbor.sail.mint.>", EventType: "TokenMint", ConsumerName: "marks-sail-mint", StreamName: "HARBOR_SAIL"},
		{Subject: "harbor.sail.redeem.>", EventType: "TokenRedeem", ConsumerName: "marks-sail-redeem", StreamName: "HARBOR_SAIL"},
		{Subject: "harbor.ticks.>", EventType: "BlockTick", ConsumerName: "marks-ticks", StreamName: "HARBOR_TICKS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
		log:       observability.NewLogger("ingestion"),
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't
// exist. Streams use file storage with a 72h retention window; the
// Postgres event log is the durable record.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{Name: "HARBOR_TRANSFERS", Subjects: []string{"harbor.transfers.>"}},
		{Name: "HARBOR_POOLS", Subjects: []string{"harbor.pools.>"}},
		{Name: "HARBOR_CAMPAIGNS", Subjects: []string{"harbor.campaigns.>"}},
		{Name: "HARBOR_SAIL", Subjects: []string{"harbor.sail.>"}},
		{Name: "HARBOR_TICKS", Subjects: []string{"harbor.ticks.>"}},
	}

	log := observability.NewLogger("ingestion")
	for _, cfg := range streams {
		cfg.Storage = jetstream.FileStorage
		cfg.Retention = jetstream.LimitsPolicy
		cfg.MaxAge = 72 * time.Hour
		cfg.Replicas = 1
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.log.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream
// context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	log := observability.NewLogger("nats")
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
