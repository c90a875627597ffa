package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
)

const reconciliationBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerAuditRepo interface {
	ScanAccounts(ctx context.Context, offset, limit int) ([]models.EarningsAccount, error)
	ListAllTransactions(ctx context.Context, accountID uuid.UUID) ([]models.EarningsTransaction, error)
}

// LedgerReconciliationJobParams configures the nightly ledger audit.
type LedgerReconciliationJobParams struct {
	Logger    *logger.Logger
	Ledger    ledgerAuditRepo
	BatchSize int
}

// NewLedgerReconciliationJob constructs the job that replays each account's
// transaction log and checks the stored balances against it.
func NewLedgerReconciliationJob(params LedgerReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = reconciliationBatchSize
	}
	return &ledgerReconciliationJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		batchSize: batchSize,
	}, nil
}

type ledgerReconciliationJob struct {
	logg      *logger.Logger
	ledger    ledgerAuditRepo
	batchSize int
}

func (j *ledgerReconciliationJob) Name() string { return "ledger-reconciliation" }

func (j *ledgerReconciliationJob) Run(ctx context.Context) error {
	var (
		audited int
		errs    error
	)
	for offset := 0; ; offset += j.batchSize {
		accounts, err := j.ledger.ScanAccounts(ctx, offset, j.batchSize)
		if err != nil {
			return fmt.Errorf("scan accounts: %w", err)
		}
		if len(accounts) == 0 {
			break
		}
		for i := range accounts {
			audited++
			if err := j.auditAccount(ctx, accounts[i]); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if len(accounts) < j.batchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"accounts_audited": audited,
		"mismatches":       len(multierr.Errors(errs)),
	})
	if errs != nil {
		j.logg.Error(logCtx, "ledger reconciliation found mismatched accounts", errs)
		return errs
	}
	j.logg.Info(logCtx, "ledger reconciliation clean")
	return nil
}

func (j *ledgerReconciliationJob) auditAccount(ctx context.Context, account models.EarningsAccount) error {
	transactions, err := j.ledger.ListAllTransactions(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("account %s: load transactions: %w", account.ID, err)
	}

	var replayed int64
	for i := range transactions {
		replayed += transactions[i].AmountCents
	}

	var errs error
	if replayed != account.CurrentBalanceCents {
		errs = multierr.Append(errs, fmt.Errorf(
			"account %s: replayed balance %d does not match current balance %d",
			account.ID, replayed, account.CurrentBalanceCents))
	}
	if earned := account.TotalEarnedCents - account.TotalWithdrawnCents; earned != account.CurrentBalanceCents {
		errs = multierr.Append(errs, fmt.Errorf(
			"account %s: lifetime totals (%d earned, %d withdrawn) do not match current balance %d",
			account.ID, account.TotalEarnedCents, account.TotalWithdrawnCents, account.CurrentBalanceCents))
	}
	if len(transactions) > 0 {
		last := transactions[len(transactions)-1]
		if last.BalanceAfterCents != account.CurrentBalanceCents {
			errs = multierr.Append(errs, fmt.Errorf(
				"account %s: last transaction snapshot %d does not match current balance %d",
				account.ID, last.BalanceAfterCents, account.CurrentBalanceCents))
		}
	}
	if errs != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"account_id":       account.ID.String(),
			"store_id":         account.StoreID.String(),
			"current_balance":  account.CurrentBalanceCents,
			"replayed_balance": replayed,
		})
		j.logg.Error(logCtx, "account failed reconciliation", errs)
	}
	return errs
}
