package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/money"
)

// ReserveRequest asks for one account's funds to be moved from current to
// pending.
type ReserveRequest struct {
	AccountID   uuid.UUID
	AmountCents int64
}

// ReservedAccount reports the outcome of one account's reservation.
type ReservedAccount struct {
	AccountID         uuid.UUID
	UserID            uuid.UUID
	ReservedCents     int64
	BalanceAfterCents int64
}

// ReserveFunds moves funds from current to pending across every requested
// account and appends one ledger transaction per account. It must run inside
// the caller's transaction: if any account's balance is insufficient the
// returned error aborts the transaction and no account is left mutated.
//
// The sufficiency check happens in the UPDATE itself rather than a prior
// read, so two concurrent reservations against the same account cannot both
// observe a stale balance.
func ReserveFunds(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, sourceEventID string, requests []ReserveRequest) ([]ReservedAccount, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if sourceEventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source event id is required")
	}
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(requests))
	for _, req := range requests {
		if req.AccountID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
		}
		if req.AmountCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation amount must be positive")
		}
		if _, dup := seen[req.AccountID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate account in reservation batch")
		}
		seen[req.AccountID] = struct{}{}
	}

	results := make([]ReservedAccount, 0, len(requests))
	for _, req := range requests {
		reserved, err := reserveOne(ctx, tx, storeID, sourceEventID, req)
		if err != nil {
			return nil, err
		}
		results = append(results, *reserved)
	}
	return results, nil
}

func reserveOne(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, sourceEventID string, req ReserveRequest) (*ReservedAccount, error) {
	// RETURNING hands back the post-update row, so the balance recorded on
	// the transaction is the one this UPDATE produced and not a later read.
	var account models.EarningsAccount
	res := tx.WithContext(ctx).
		Model(&account).
		Clauses(clause.Returning{}).
		Where("id = ? AND store_id = ? AND current_balance_cents >= ?", req.AccountID, storeID, req.AmountCents).
		Updates(map[string]any{
			"current_balance_cents": gorm.Expr("current_balance_cents - ?", req.AmountCents),
			"pending_balance_cents": gorm.Expr("pending_balance_cents + ?", req.AmountCents),
			"total_withdrawn_cents": gorm.Expr("total_withdrawn_cents + ?", req.AmountCents),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing models.EarningsAccount
		err := tx.WithContext(ctx).
			Where("id = ? AND store_id = ?", req.AccountID, storeID).
			First(&existing).Error
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "earnings account not found")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("account balance %s is below the requested %s",
				money.FormatRand(existing.CurrentBalanceCents), money.FormatRand(req.AmountCents)))
	}

	transaction := models.EarningsTransaction{
		AccountID:         account.ID,
		StoreID:           storeID,
		SourceEventID:     sourceEventID,
		Kind:              enums.TransactionKindPayoutReserve,
		AmountCents:       -req.AmountCents,
		BalanceAfterCents: account.CurrentBalanceCents,
		Description:       fmt.Sprintf("payout reservation of %s", money.FormatRand(req.AmountCents)),
	}
	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, err
	}

	return &ReservedAccount{
		AccountID:         account.ID,
		UserID:            account.UserID,
		ReservedCents:     req.AmountCents,
		BalanceAfterCents: account.CurrentBalanceCents,
	}, nil
}
