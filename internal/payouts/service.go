package payouts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/internal/ledger"
	"github.com/sibusisodube/canopay-backend/internal/obligations"
	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/money"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/payloads"
	"github.com/sibusisodube/canopay-backend/pkg/security"
	"github.com/sibusisodube/canopay-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type roleChecker interface {
	UserHasRole(ctx context.Context, userID, storeID uuid.UUID, roles ...enums.MemberRole) (bool, error)
}

// Service creates and reads payout requests. A request and its balance
// reservation commit in one transaction, so every pending request is fully
// backed by pending balances.
type Service interface {
	RequestIndividual(ctx context.Context, input IndividualRequest) (*models.PayoutRequest, error)
	RequestCombined(ctx context.Context, input CombinedRequest) (*models.PayoutRequest, error)
	GetPayout(ctx context.Context, storeID, payoutID uuid.UUID) (*models.PayoutRequest, error)
	ListPayouts(ctx context.Context, storeID uuid.UUID, limit int) ([]models.PayoutRequest, error)
}

// IndividualRequest withdraws from the requester's own earnings account.
type IndividualRequest struct {
	StoreID         uuid.UUID
	RequesterUserID uuid.UUID
	AmountCents     int64
	Banking         types.BankingDetails
}

// CombinedRequest sweeps the requester's account plus the named member
// accounts into a single disbursement. Each swept account gives up its entire
// available balance, so the reserved total can exceed the requested amount.
type CombinedRequest struct {
	StoreID          uuid.UUID
	RequesterUserID  uuid.UUID
	AmountCents      int64
	MemberAccountIDs []uuid.UUID
	Banking          types.BankingDetails
}

type service struct {
	repo        Repository
	ledgerRepo  ledger.Repository
	obligations obligations.Service
	members     roleChecker
	vault       *security.BankingVault
	tx          txRunner
	events      *outbox.Service
	cfg         config.EarningsConfig
	logg        *logger.Logger
	validate    *validator.Validate
}

// NewService wires the payout workflow. The outbox service may be nil when no
// downstream consumers are configured.
func NewService(
	repo Repository,
	ledgerRepo ledger.Repository,
	obligationSvc obligations.Service,
	members roleChecker,
	vault *security.BankingVault,
	tx txRunner,
	events *outbox.Service,
	cfg config.EarningsConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if obligationSvc == nil {
		return nil, fmt.Errorf("obligations service required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership reader required")
	}
	if vault == nil {
		return nil, fmt.Errorf("banking vault required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:        repo,
		ledgerRepo:  ledgerRepo,
		obligations: obligationSvc,
		members:     members,
		vault:       vault,
		tx:          tx,
		events:      events,
		cfg:         cfg,
		logg:        logg,
		validate:    validator.New(),
	}, nil
}

func (s *service) RequestIndividual(ctx context.Context, input IndividualRequest) (*models.PayoutRequest, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.RequesterUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester user id required")
	}
	if input.AmountCents < s.cfg.PayoutMinimumCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payout of %s is below the minimum of %s",
				money.FormatRand(input.AmountCents), money.FormatRand(s.cfg.PayoutMinimumCents)))
	}
	if err := s.validate.Struct(input.Banking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid banking details")
	}

	account, err := s.ledgerRepo.FindAccount(ctx, input.StoreID, input.RequesterUserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "earnings account not found")
	}

	breakdown, err := s.obligations.Breakdown(ctx, input.StoreID)
	if err != nil {
		return nil, err
	}
	sealed, err := s.vault.Seal(input.Banking)
	if err != nil {
		return nil, err
	}

	request := &models.PayoutRequest{
		ID:                   uuid.New(),
		StoreID:              input.StoreID,
		RequesterUserID:      input.RequesterUserID,
		Mode:                 enums.PayoutModeIndividual,
		Status:               enums.PayoutStatusPending,
		RequestedAmountCents: input.AmountCents,
		ReservedAmountCents:  input.AmountCents,
		SalesRevenueCents:    account.TotalEarnedCents,
		DriverOwedCents:      breakdown.DriverOwedCents,
		VendorOwedCents:      breakdown.VendorOwedCents,
		BankingDetailsEnc:    sealed,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return err
		}
		reserved, err := ledger.ReserveFunds(ctx, tx, input.StoreID, request.ID.String(), []ledger.ReserveRequest{
			{AccountID: account.ID, AmountCents: input.AmountCents},
		})
		if err != nil {
			return err
		}
		if err := s.ledgerRepo.WithTx(tx).UpdateBankingDetails(ctx, account.ID, sealed); err != nil {
			return err
		}
		return s.emitRequested(ctx, tx, request, len(reserved))
	})
	if err != nil {
		return nil, err
	}

	s.logRequested(ctx, request)
	return request, nil
}

func (s *service) RequestCombined(ctx context.Context, input CombinedRequest) (*models.PayoutRequest, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.RequesterUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester user id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested amount must be positive")
	}
	if len(input.MemberAccountIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one member account required")
	}
	if err := s.validate.Struct(input.Banking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid banking details")
	}

	allowed, err := s.members.UserHasRole(ctx, input.RequesterUserID, input.StoreID,
		enums.MemberRoleOwner, enums.MemberRoleAdmin)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "combined payouts require an owner or admin role")
	}

	requesterAccount, err := s.ledgerRepo.FindAccount(ctx, input.StoreID, input.RequesterUserID)
	if err != nil {
		return nil, err
	}
	if requesterAccount == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "requester earnings account not found")
	}

	memberAccounts, err := s.ledgerRepo.ListAccountsByIDs(ctx, input.MemberAccountIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.EarningsAccount, len(memberAccounts))
	for _, acct := range memberAccounts {
		byID[acct.ID] = acct
	}

	// The requester's account is always part of the sweep, whether or not it
	// was named in the member list.
	sweep := []models.EarningsAccount{*requesterAccount}
	seen := map[uuid.UUID]bool{requesterAccount.ID: true}
	for _, accountID := range input.MemberAccountIDs {
		if seen[accountID] {
			continue
		}
		acct, ok := byID[accountID]
		if !ok || acct.StoreID != input.StoreID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("member account %s not found in store", accountID))
		}
		sweep = append(sweep, acct)
		seen[accountID] = true
	}

	var totalAvailable, salesRevenue int64
	for _, acct := range sweep {
		totalAvailable += acct.CurrentBalanceCents
		salesRevenue += acct.TotalEarnedCents
	}
	if totalAvailable < input.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("available balance %s is less than the requested %s",
				money.FormatRand(totalAvailable), money.FormatRand(input.AmountCents)))
	}

	// Sweep semantics: every account in the set gives up its whole available
	// balance. Accounts already at zero are left untouched.
	var reserveRequests []ledger.ReserveRequest
	shares := make([]models.PayoutMemberShare, 0, len(sweep))
	for _, acct := range sweep {
		shares = append(shares, models.PayoutMemberShare{
			AccountID:     acct.ID,
			UserID:        acct.UserID,
			ReservedCents: acct.CurrentBalanceCents,
		})
		if acct.CurrentBalanceCents > 0 {
			reserveRequests = append(reserveRequests, ledger.ReserveRequest{
				AccountID:   acct.ID,
				AmountCents: acct.CurrentBalanceCents,
			})
		}
	}
	memberBreakdown, err := json.Marshal(shares)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.obligations.Breakdown(ctx, input.StoreID)
	if err != nil {
		return nil, err
	}
	sealed, err := s.vault.Seal(input.Banking)
	if err != nil {
		return nil, err
	}

	request := &models.PayoutRequest{
		ID:                   uuid.New(),
		StoreID:              input.StoreID,
		RequesterUserID:      input.RequesterUserID,
		Mode:                 enums.PayoutModeCombined,
		Status:               enums.PayoutStatusPending,
		RequestedAmountCents: input.AmountCents,
		ReservedAmountCents:  totalAvailable,
		SalesRevenueCents:    salesRevenue,
		DriverOwedCents:      breakdown.DriverOwedCents,
		VendorOwedCents:      breakdown.VendorOwedCents,
		BankingDetailsEnc:    sealed,
		MemberBreakdown:      memberBreakdown,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return err
		}
		reserved, err := ledger.ReserveFunds(ctx, tx, input.StoreID, request.ID.String(), reserveRequests)
		if err != nil {
			return err
		}
		if err := s.ledgerRepo.WithTx(tx).UpdateBankingDetails(ctx, requesterAccount.ID, sealed); err != nil {
			return err
		}
		return s.emitRequested(ctx, tx, request, len(reserved))
	})
	if err != nil {
		return nil, err
	}

	s.logRequested(ctx, request)
	return request, nil
}

func (s *service) GetPayout(ctx context.Context, storeID, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	if storeID == uuid.Nil || payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and payout id required")
	}
	request, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if request == nil || request.StoreID != storeID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
	}
	return request, nil
}

func (s *service) ListPayouts(ctx context.Context, storeID uuid.UUID, limit int) ([]models.PayoutRequest, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	return s.repo.ListByStore(ctx, storeID, limit)
}

func (s *service) emitRequested(ctx context.Context, tx *gorm.DB, request *models.PayoutRequest, accountCount int) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutRequested,
		AggregateType: enums.AggregatePayoutRequest,
		AggregateID:   request.ID,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		Data: payloads.PayoutRequestedEvent{
			PayoutRequestID:      request.ID,
			StoreID:              request.StoreID,
			RequesterUserID:      request.RequesterUserID,
			Mode:                 request.Mode,
			RequestedAmountCents: request.RequestedAmountCents,
			ReservedAmountCents:  request.ReservedAmountCents,
			AccountCount:         accountCount,
			RequestedAt:          time.Now().UTC(),
		},
	})
}

func (s *service) logRequested(ctx context.Context, request *models.PayoutRequest) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payout_request_id": request.ID.String(),
		"store_id":          request.StoreID.String(),
		"mode":              request.Mode.String(),
		"requested_cents":   request.RequestedAmountCents,
		"reserved_cents":    request.ReservedAmountCents,
	})
	s.logg.Info(logCtx, "payout request created")
}
