package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sibusisodube/canopay-backend/internal/commission"
	"github.com/sibusisodube/canopay-backend/internal/ledger"
	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/metrics"
	"github.com/sibusisodube/canopay-backend/pkg/money"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/registry"
)

const ordersConsumerName = "earnings"

type idempotencyChecker interface {
	Processed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
}

type storeReader interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// OrderDeliveredMessage is the marketplace event that triggers a commission
// accrual. CommissionCents is set when the marketplace already computed the
// store's cut; otherwise it is derived from the order total.
type OrderDeliveredMessage struct {
	EventID            string     `json:"eventId"`
	OrderID            string     `json:"orderId"`
	StoreID            uuid.UUID  `json:"storeId"`
	PayeeUserID        uuid.UUID  `json:"payeeUserId"`
	OrderTotalCents    int64      `json:"orderTotalCents"`
	CommissionCents    *int64     `json:"commissionCents,omitempty"`
	FulfillmentChannel string     `json:"fulfillmentChannel"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
}

// Consumer turns delivered marketplace orders into commission accruals. The
// ledger's source-event dedup makes accrual idempotent even when the Redis
// fast path misses, so redelivery is always safe.
type Consumer struct {
	ledger    ledger.Service
	manager   idempotencyChecker
	stores    storeReader
	cfg       config.EarningsConfig
	collector *metrics.EarningsMetrics
	logg      *logger.Logger
}

// NewConsumer builds the order-delivered consumer. The store reader is
// optional; when present, events for stores this service has never seen are
// dropped instead of dead-lettering on a foreign key violation.
func NewConsumer(ledgerSvc ledger.Service, manager idempotencyChecker, storeRepo storeReader, cfg config.EarningsConfig, collector *metrics.EarningsMetrics, logg *logger.Logger) (*Consumer, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		ledger:    ledgerSvc,
		manager:   manager,
		stores:    storeRepo,
		cfg:       cfg,
		collector: collector,
		logg:      logg,
	}, nil
}

// Process handles one raw message from the orders subscription.
func (c *Consumer) Process(ctx context.Context, data []byte) error {
	var msg OrderDeliveredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.observe("malformed", 0)
		return registry.NewNonRetryableError(fmt.Errorf("decode order message: %w", err))
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id": msg.EventID,
		"order_id": msg.OrderID,
		"store_id": msg.StoreID.String(),
	})

	if err := validateMessage(msg); err != nil {
		c.logg.Error(logCtx, "rejecting malformed order event", err)
		c.observe("malformed", 0)
		return registry.NewNonRetryableError(err)
	}

	channel, err := enums.ParseFulfillmentChannel(msg.FulfillmentChannel)
	if err != nil {
		c.logg.Error(logCtx, "rejecting order event with unknown channel", err)
		c.observe("malformed", 0)
		return registry.NewNonRetryableError(err)
	}
	if !channel.Accrues() {
		c.logg.Info(logCtx, "order channel does not accrue commission")
		c.observe("skipped_channel", 0)
		return nil
	}

	if c.stores != nil {
		known, err := c.stores.Exists(ctx, msg.StoreID)
		if err != nil {
			return fmt.Errorf("store lookup: %w", err)
		}
		if !known {
			c.logg.Warn(logCtx, "dropping order event for unknown store")
			c.observe("unknown_store", 0)
			return registry.NewNonRetryableError(fmt.Errorf("store %s not found", msg.StoreID))
		}
	}

	eventID, err := uuid.Parse(msg.EventID)
	if err != nil {
		c.observe("malformed", 0)
		return registry.NewNonRetryableError(fmt.Errorf("parse event id: %w", err))
	}
	already, err := c.manager.Processed(ctx, ordersConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "order event already processed")
		c.observe("duplicate", 0)
		return nil
	}

	amountCents, err := commission.Resolve(msg.OrderTotalCents, msg.CommissionCents, c.cfg.Rate())
	if err != nil {
		c.logg.Error(logCtx, "commission resolution failed", err)
		c.observe("malformed", 0)
		return registry.NewNonRetryableError(err)
	}

	result, err := c.ledger.Accrue(ctx, ledger.AccrueInput{
		StoreID:       msg.StoreID,
		UserID:        msg.PayeeUserID,
		AmountCents:   amountCents,
		SourceEventID: msg.OrderID,
		Description: fmt.Sprintf("commission of %s for order %s",
			money.FormatRand(amountCents), msg.OrderID),
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			c.logg.Error(logCtx, "rejecting order event failing accrual validation", err)
			c.observe("malformed", 0)
			return registry.NewNonRetryableError(err)
		}
		return fmt.Errorf("accrue commission: %w", err)
	}

	// The Redis mark lands only after the accrual commits. A crash between
	// the two redelivers the event, and the ledger's source-event dedup
	// absorbs the replay.
	if _, err := c.manager.CheckAndMarkProcessed(ctx, ordersConsumerName, eventID); err != nil {
		c.logg.Warn(logCtx, "failed to mark order event processed")
	}

	if !result.Applied {
		c.logg.Info(logCtx, "commission already accrued for order")
		c.observe("duplicate", 0)
		return nil
	}

	doneCtx := c.logg.WithFields(logCtx, map[string]any{
		"amount_cents":  amountCents,
		"balance_cents": result.Account.CurrentBalanceCents,
	})
	c.logg.Info(doneCtx, "commission accrued")
	c.observe("applied", amountCents)
	return nil
}

func (c *Consumer) observe(outcome string, amountCents int64) {
	if c.collector != nil {
		c.collector.ObserveAccrual(outcome, amountCents)
	}
}

func validateMessage(msg OrderDeliveredMessage) error {
	if strings.TrimSpace(msg.EventID) == "" {
		return fmt.Errorf("event id missing")
	}
	if strings.TrimSpace(msg.OrderID) == "" {
		return fmt.Errorf("order id missing")
	}
	if msg.StoreID == uuid.Nil {
		return fmt.Errorf("store id missing")
	}
	if msg.PayeeUserID == uuid.Nil {
		return fmt.Errorf("payee user id missing")
	}
	if msg.OrderTotalCents <= 0 {
		return fmt.Errorf("order total must be positive, got %d", msg.OrderTotalCents)
	}
	return nil
}
