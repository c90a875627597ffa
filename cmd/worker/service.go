package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/sibusisodube/canopay-backend/internal/consumers/audit"
	"github.com/sibusisodube/canopay-backend/internal/consumers/orders"
	"github.com/sibusisodube/canopay-backend/pkg/bigquery"
	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/db"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/registry"
	"github.com/sibusisodube/canopay-backend/pkg/pubsub"
	"github.com/sibusisodube/canopay-backend/pkg/redis"
)

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Redis         *redis.Client
	PubSub        *pubsub.Client
	BigQuery      *bigquery.Client
	OrdersHandler *orders.Consumer
	AuditHandler  *audit.Consumer
}

// Service drives the two worker subscriptions: delivered-order events from the
// marketplace feed the ledger, and the domain outbox stream feeds the audit
// export.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	redis    *redis.Client
	pubsub   *pubsub.Client
	bigquery *bigquery.Client
	orders   *orders.Consumer
	audit    *audit.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.BigQuery == nil {
		return nil, errors.New("bigquery client is required")
	}
	if params.OrdersHandler == nil {
		return nil, errors.New("orders consumer is required")
	}
	if params.AuditHandler == nil {
		return nil, errors.New("audit consumer is required")
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		pubsub:   params.PubSub,
		bigquery: params.BigQuery,
		orders:   params.OrdersHandler,
		audit:    params.AuditHandler,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "bigquery", s.bigquery.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ordersSub := s.pubsub.OrdersSubscription()
	if ordersSub == nil {
		return errors.New("orders subscription not configured")
	}
	domainSub := s.pubsub.DomainSubscription()
	if domainSub == nil {
		return errors.New("domain subscription not configured")
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.receiveOrders(ctx, ordersSub)
	}()
	go func() {
		errCh <- s.receiveDomain(ctx, domainSub)
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		}
		return err
	}
}

func (s *Service) receiveOrders(ctx context.Context, sub *gcppubsub.Subscriber) error {
	return sub.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		logCtx := s.logg.WithField(innerCtx, "message_id", msg.ID)

		err := s.orders.Process(logCtx, msg.Data)
		if err == nil {
			msg.Ack()
			return
		}

		var nonRetryable registry.NonRetryableError
		if errors.As(err, &nonRetryable) {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping undeliverable order event")
			msg.Ack()
			return
		}

		s.logg.Error(logCtx, "order event processing failed", err)
		msg.Nack()
	})
}

func (s *Service) receiveDomain(ctx context.Context, sub *gcppubsub.Subscriber) error {
	return sub.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		logCtx := s.logg.WithField(innerCtx, "message_id", msg.ID)

		eventType, envelope, err := decodeDomainMessage(msg)
		if err != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping malformed domain event")
			msg.Ack()
			return
		}

		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"event_id":    envelope.EventID,
			"event_type":  eventType.String(),
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		})

		if err := s.audit.Process(logCtx, eventType, *envelope); err != nil {
			s.logg.Error(logCtx, "audit export failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func decodeDomainMessage(msg *gcppubsub.Message) (enums.OutboxEventType, *outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return "", nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return "", nil, fmt.Errorf("event_type: %w", err)
	}

	if strings.TrimSpace(envelope.EventID) == "" {
		envelope.EventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if envelope.EventID == "" {
		return "", nil, errors.New("event_id missing")
	}

	return eventType, &envelope, nil
}
