package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// EarningsAccount is the payable balance record for one commission recipient
// within a store. Accounts are created lazily on first accrual and are never
// deleted; every balance mutation happens inside a ledger transaction.
type EarningsAccount struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	StoreID             uuid.UUID        `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_earnings_accounts_store_user,priority:1"`
	UserID              uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_earnings_accounts_store_user,priority:2"`
	Role                enums.MemberRole `gorm:"column:role;type:member_role;not null"`
	CurrentBalanceCents int64            `gorm:"column:current_balance_cents;not null;default:0"`
	PendingBalanceCents int64            `gorm:"column:pending_balance_cents;not null;default:0"`
	TotalEarnedCents    int64            `gorm:"column:total_earned_cents;not null;default:0"`
	TotalWithdrawnCents int64            `gorm:"column:total_withdrawn_cents;not null;default:0"`
	BankingDetailsEnc   []byte           `gorm:"column:banking_details_enc"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID app-side so inserts work the same against
// Postgres and the sqlite test databases.
func (a *EarningsAccount) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
