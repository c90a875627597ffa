package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/pagination"
)

// Repository manages persistence for earnings accounts and their transaction
// log. Balance mutations go through the package-level transactional helpers,
// not through this interface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, storeID, userID uuid.UUID) (*models.EarningsAccount, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*models.EarningsAccount, error)
	ListAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]models.EarningsAccount, error)
	ListAccountsByIDs(ctx context.Context, accountIDs []uuid.UUID) ([]models.EarningsAccount, error)
	ScanAccounts(ctx context.Context, offset, limit int) ([]models.EarningsAccount, error)
	HasTransaction(ctx context.Context, accountID uuid.UUID, sourceEventID string) (bool, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.EarningsTransaction, error)
	ListAllTransactions(ctx context.Context, accountID uuid.UUID) ([]models.EarningsTransaction, error)
	UpdateBankingDetails(ctx context.Context, accountID uuid.UUID, sealed []byte) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccount(ctx context.Context, storeID, userID uuid.UUID) (*models.EarningsAccount, error) {
	var account models.EarningsAccount
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND user_id = ?", storeID, userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*models.EarningsAccount, error) {
	var account models.EarningsAccount
	err := r.db.WithContext(ctx).
		Where("id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]models.EarningsAccount, error) {
	var accounts []models.EarningsAccount
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) ListAccountsByIDs(ctx context.Context, accountIDs []uuid.UUID) ([]models.EarningsAccount, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var accounts []models.EarningsAccount
	if err := r.db.WithContext(ctx).
		Where("id IN ?", accountIDs).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ScanAccounts pages through every account in creation order. Used by the
// reconciliation job to walk the whole ledger in batches.
func (r *repository) ScanAccounts(ctx context.Context, offset, limit int) ([]models.EarningsAccount, error) {
	var accounts []models.EarningsAccount
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) HasTransaction(ctx context.Context, accountID uuid.UUID, sourceEventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EarningsTransaction{}).
		Where("account_id = ? AND source_event_id = ?", accountID, sourceEventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.EarningsTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var transactions []models.EarningsTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) ListAllTransactions(ctx context.Context, accountID uuid.UUID) ([]models.EarningsTransaction, error) {
	var transactions []models.EarningsTransaction
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) UpdateBankingDetails(ctx context.Context, accountID uuid.UUID, sealed []byte) error {
	return r.db.WithContext(ctx).
		Model(&models.EarningsAccount{}).
		Where("id = ?", accountID).
		Update("banking_details_enc", sealed).Error
}
