package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// PayoutRequest documents a request to disburse reserved funds. Its creation
// is committed in the same transaction as the balance reservation, so a
// pending request always has matching pending balances behind it. The
// back-office disbursement flow moves it to paid or rejected.
type PayoutRequest struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StoreID              uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index"`
	RequesterUserID      uuid.UUID          `gorm:"column:requester_user_id;type:uuid;not null"`
	Mode                 enums.PayoutMode   `gorm:"column:mode;type:payout_mode_enum;not null"`
	Status               enums.PayoutStatus `gorm:"column:status;type:payout_status_enum;not null"`
	RequestedAmountCents int64              `gorm:"column:requested_amount_cents;not null"`
	ReservedAmountCents  int64              `gorm:"column:reserved_amount_cents;not null"`
	SalesRevenueCents    int64              `gorm:"column:sales_revenue_cents;not null"`
	DriverOwedCents      int64              `gorm:"column:driver_owed_cents;not null"`
	VendorOwedCents      int64              `gorm:"column:vendor_owed_cents;not null"`
	BankingDetailsEnc    []byte             `gorm:"column:banking_details_enc;not null"`
	MemberBreakdown      json.RawMessage    `gorm:"column:member_breakdown;type:jsonb"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// PayoutMemberShare is one member's slice of a combined payout, stored inside
// MemberBreakdown.
type PayoutMemberShare struct {
	AccountID     uuid.UUID `json:"accountId"`
	UserID        uuid.UUID `json:"userId"`
	ReservedCents int64     `json:"reservedCents"`
}

// BeforeCreate assigns the ID app-side so inserts work the same against
// Postgres and the sqlite test databases.
func (p *PayoutRequest) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
