package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/sibusisodube/canopay-backend/pkg/db"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/money"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/payloads"
	"github.com/sibusisodube/canopay-backend/pkg/pagination"
)

// errDuplicateEvent aborts an accrual transaction when the source event was
// already applied; the caller converts it into a no-op.
var errDuplicateEvent = errors.New("duplicate source event")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns all balance mutations on earnings accounts and the read paths
// over the transaction log.
type Service interface {
	Accrue(ctx context.Context, input AccrueInput) (*AccrualResult, error)
	GetAccount(ctx context.Context, storeID, userID uuid.UUID) (*models.EarningsAccount, error)
	GetAccountByID(ctx context.Context, accountID uuid.UUID) (*models.EarningsAccount, error)
	ListStoreAccounts(ctx context.Context, storeID uuid.UUID) ([]models.EarningsAccount, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.EarningsTransaction, string, error)
}

// AccrueInput captures one commission credit against a store member.
type AccrueInput struct {
	StoreID       uuid.UUID
	UserID        uuid.UUID
	Role          enums.MemberRole
	AmountCents   int64
	SourceEventID string
	Description   string
}

// AccrualResult reports the post-accrual account state. Applied is false when
// the source event had already been credited.
type AccrualResult struct {
	Account     *models.EarningsAccount
	Transaction *models.EarningsTransaction
	Applied     bool
}

type service struct {
	repo   Repository
	tx     txRunner
	events *outbox.Service
	logg   *logger.Logger
}

// NewService wires the ledger service. The outbox service may be nil when the
// caller does not publish domain events.
func NewService(repo Repository, tx txRunner, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, events: events, logg: logg}, nil
}

func (s *service) Accrue(ctx context.Context, input AccrueInput) (*AccrualResult, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accrual amount must be positive")
	}
	if input.SourceEventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source event id is required")
	}
	role := input.Role
	if role == "" {
		role = enums.MemberRoleOwner
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid member role %q", role))
	}

	result := &AccrualResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := repo.FindAccount(ctx, input.StoreID, input.UserID)
		if err != nil {
			return err
		}
		if account == nil {
			// ON CONFLICT DO NOTHING keeps the transaction usable when a
			// concurrent accrual creates the row first; a plain unique
			// violation would abort it on Postgres. The follow-up read
			// returns whichever writer won.
			fresh := &models.EarningsAccount{
				StoreID: input.StoreID,
				UserID:  input.UserID,
				Role:    role,
			}
			if err := tx.WithContext(ctx).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "store_id"}, {Name: "user_id"}},
					DoNothing: true,
				}).
				Create(fresh).Error; err != nil {
				return err
			}
			account, err = repo.FindAccount(ctx, input.StoreID, input.UserID)
			if err != nil {
				return err
			}
			if account == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "earnings account missing after create")
			}
		}

		applied, err := repo.HasTransaction(ctx, account.ID, input.SourceEventID)
		if err != nil {
			return err
		}
		if applied {
			return errDuplicateEvent
		}

		res := tx.WithContext(ctx).
			Model(&models.EarningsAccount{}).
			Where("id = ?", account.ID).
			Updates(map[string]any{
				"current_balance_cents": gorm.Expr("current_balance_cents + ?", input.AmountCents),
				"total_earned_cents":    gorm.Expr("total_earned_cents + ?", input.AmountCents),
			})
		if res.Error != nil {
			return res.Error
		}

		account, err = repo.FindAccountByID(ctx, account.ID)
		if err != nil {
			return err
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "earnings account vanished mid-accrual")
		}

		description := input.Description
		if description == "" {
			description = fmt.Sprintf("commission of %s for order %s",
				money.FormatRand(input.AmountCents), input.SourceEventID)
		}
		transaction := &models.EarningsTransaction{
			AccountID:         account.ID,
			StoreID:           input.StoreID,
			SourceEventID:     input.SourceEventID,
			Kind:              enums.TransactionKindCommission,
			AmountCents:       input.AmountCents,
			BalanceAfterCents: account.CurrentBalanceCents,
			Description:       description,
		}
		if err := tx.WithContext(ctx).Create(transaction).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_earnings_transactions_account_source") {
				return errDuplicateEvent
			}
			return err
		}

		if s.events != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventCommissionAccrued,
				AggregateType: enums.AggregateEarningsAccount,
				AggregateID:   account.ID,
				Version:       1,
				OccurredAt:    time.Now().UTC(),
				Data: payloads.CommissionAccruedEvent{
					AccountID:         account.ID,
					StoreID:           input.StoreID,
					UserID:            input.UserID,
					OrderID:           input.SourceEventID,
					TransactionID:     transaction.ID,
					Kind:              transaction.Kind,
					AmountCents:       transaction.AmountCents,
					BalanceAfterCents: transaction.BalanceAfterCents,
					AccruedAt:         time.Now().UTC(),
				},
			}
			if err := s.events.Emit(ctx, tx, event); err != nil {
				return err
			}
		}

		result.Account = account
		result.Transaction = transaction
		result.Applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, errDuplicateEvent) {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"store_id":        input.StoreID.String(),
					"user_id":         input.UserID.String(),
					"source_event_id": input.SourceEventID,
				})
				s.logg.Info(logCtx, "accrual skipped, source event already applied")
			}
			// Re-read outside the rolled-back transaction so the returned
			// snapshot reflects committed state only.
			account, ferr := s.repo.FindAccount(ctx, input.StoreID, input.UserID)
			if ferr != nil {
				return nil, ferr
			}
			return &AccrualResult{Account: account, Applied: false}, nil
		}
		return nil, err
	}
	return result, nil
}

func (s *service) GetAccount(ctx context.Context, storeID, userID uuid.UUID) (*models.EarningsAccount, error) {
	if storeID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and user id are required")
	}
	return s.repo.FindAccount(ctx, storeID, userID)
}

func (s *service) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*models.EarningsAccount, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return s.repo.FindAccountByID(ctx, accountID)
}

func (s *service) ListStoreAccounts(ctx context.Context, storeID uuid.UUID) ([]models.EarningsAccount, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	return s.repo.ListAccountsByStore(ctx, storeID)
}

func (s *service) ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.EarningsTransaction, string, error) {
	if accountID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	transactions, err := s.repo.ListTransactions(ctx, accountID, limit+1, cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(transactions) > limit {
		transactions = transactions[:limit]
		last := transactions[len(transactions)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return transactions, next, nil
}
