package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// EarningsTransaction is an immutable, append-only ledger entry. AmountCents
// is signed: accruals are positive, payout reservations negative.
// BalanceAfterCents captures the account's current balance immediately after
// this entry was applied. SourceEventID ties the entry back to the order or
// payout request that caused it and is unique per account, which is what
// makes accrual replay-safe.
type EarningsTransaction struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	AccountID         uuid.UUID             `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_earnings_transactions_account_source,priority:1"`
	StoreID           uuid.UUID             `gorm:"column:store_id;type:uuid;not null;index"`
	SourceEventID     string                `gorm:"column:source_event_id;not null;uniqueIndex:ux_earnings_transactions_account_source,priority:2"`
	Kind              enums.TransactionKind `gorm:"column:kind;type:transaction_kind_enum;not null"`
	AmountCents       int64                 `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int64                 `gorm:"column:balance_after_cents;not null"`
	Description       string                `gorm:"column:description;not null"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name used by GORM.
func (EarningsTransaction) TableName() string {
	return "earnings_transactions"
}

// BeforeCreate assigns the ID app-side so inserts work the same against
// Postgres and the sqlite test databases.
func (t *EarningsTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
