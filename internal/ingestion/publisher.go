package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PoolLedger/internal/event"
	"PoolLedger/internal/observability"
)

// OutboundPublisher publishes applied commands to NATS for downstream
// consumers (billing, member apps, analytics). Publishing happens after
// the core has applied the command; a publish failure is non-fatal since
// consumers can replay from the event log.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableEvent
	logger    zerolog.Logger
}

// PublishableEvent is an applied command ready for outbound publishing
type PublishableEvent struct {
	Sequence       int64        `json:"sequence"`
	CommandType    string       `json:"command_type"`
	IdempotencyKey string       `json:"idempotency_key"`
	Result         event.Result `json:"result"`
	StateHash      []byte       `json:"state_hash"`
	Timestamp      int64        `json:"timestamp_us"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableEvent) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		logger:    observability.NewLogger("publisher"),
	}
}

// Run starts the outbound publisher loop. Subjects follow
// pool.ledger.events.{command_type}; surplus shares additionally fan out
// per member on pool.surplus.shares.{member_id}.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, evt); err != nil {
				op.logger.Warn().Err(err).
					Int64("sequence", evt.Sequence).
					Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("pool.ledger.events.%s", evt.CommandType)
	if _, err := op.js.Publish(ctx, subject, data); err != nil {
		return err
	}

	// Surplus distributions carry per-member share reports; each member
	// gets their own subject so apps can subscribe narrowly.
	for _, share := range evt.Result.Shares {
		shareData, err := json.Marshal(share)
		if err != nil {
			return fmt.Errorf("marshal share report: %w", err)
		}
		shareSubject := fmt.Sprintf("pool.surplus.shares.%s", share.MemberID)
		if _, err := op.js.Publish(ctx, shareSubject, shareData); err != nil {
			return fmt.Errorf("publish share for %s: %w", share.MemberID, err)
		}
	}

	return nil
}

// EnsureOutboundStreams creates the outbound event and surplus streams
func EnsureOutboundStreams(ctx context.Context, js jetstream.JetStream) error {
	logger := observability.NewLogger("publisher")

	streams := []jetstream.StreamConfig{
		{
			Name:      "POOL_LEDGER_EVENTS",
			Subjects:  []string{"pool.ledger.events.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "POOL_SURPLUS",
			Subjects:  []string{"pool.surplus.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("ensured outbound stream")
	}

	return nil
}
