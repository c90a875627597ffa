package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/payloads"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/registry"
)

const auditConsumerName = "ledger-audit"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type idempotencyChecker interface {
	Processed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
}

// Consumer exports ledger domain events to BigQuery for audit and
// back-office reporting, honoring Redis idempotency on the event id.
type Consumer struct {
	client   tableInserter
	table    string
	manager  idempotencyChecker
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

// NewConsumer builds the ledger audit consumer.
func NewConsumer(client tableInserter, table string, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventCommissionAccrued, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.CommissionAccruedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	decoders.Register(enums.EventPayoutRequested, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.PayoutRequestedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})

	return &Consumer{
		client:   client,
		table:    strings.TrimSpace(table),
		manager:  manager,
		decoders: decoders,
		logg:     logg,
	}, nil
}

// Process ingests one outbox envelope into the audit table.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.Processed(ctx, auditConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already exported")
		return nil
	}

	row, err := c.buildRow(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build ledger event row", err)
		return err
	}

	if err := c.client.InsertRows(ctx, c.table, []any{row}); err != nil {
		c.logg.Error(logCtx, "failed to insert ledger event row", err)
		return err
	}

	// Marked only after the insert succeeds so a crash cannot ack an
	// unexported event.
	if _, err := c.manager.CheckAndMarkProcessed(ctx, auditConsumerName, eventID); err != nil {
		c.logg.Warn(logCtx, "failed to mark event exported")
	}

	c.logg.Info(logCtx, "ledger event exported")
	return nil
}

type ledgerEventRow struct {
	EventID           string             `bigquery:"event_id"`
	EventType         string             `bigquery:"event_type"`
	OccurredAt        time.Time          `bigquery:"occurred_at"`
	StoreID           string             `bigquery:"store_id"`
	AccountID         *string            `bigquery:"account_id"`
	PayoutRequestID   *string            `bigquery:"payout_request_id"`
	OrderID           *string            `bigquery:"order_id"`
	AmountCents       int64              `bigquery:"amount_cents"`
	BalanceAfterCents *int64             `bigquery:"balance_after_cents"`
	Payload           cbigquery.NullJSON `bigquery:"payload"`
}

func (c *Consumer) buildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*ledgerEventRow, error) {
	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	row := &ledgerEventRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt,
	}
	if len(envelope.Data) > 0 {
		row.Payload = cbigquery.NullJSON{Valid: true, JSONVal: string(envelope.Data)}
	}

	switch event := decoded.(type) {
	case payloads.CommissionAccruedEvent:
		accountID := event.AccountID.String()
		balanceAfter := event.BalanceAfterCents
		row.StoreID = event.StoreID.String()
		row.AccountID = &accountID
		row.AmountCents = event.AmountCents
		row.BalanceAfterCents = &balanceAfter
		if trimmed := strings.TrimSpace(event.OrderID); trimmed != "" {
			row.OrderID = &trimmed
		}
	case payloads.PayoutRequestedEvent:
		payoutID := event.PayoutRequestID.String()
		row.StoreID = event.StoreID.String()
		row.PayoutRequestID = &payoutID
		row.AmountCents = event.ReservedAmountCents
	default:
		return nil, fmt.Errorf("unsupported payload type %T", decoded)
	}
	return row, nil
}
