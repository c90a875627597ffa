package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// PartnerObligation is a driver's or vendor's claim for payment against a
// store's funds. Obligations are created and settled by the partner-payment
// flow elsewhere on the platform; this service only reads them to show a
// store how much of its balance is already spoken for.
type PartnerObligation struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	StoreID     uuid.UUID              `gorm:"column:store_id;type:uuid;not null;index"`
	PayeeUserID uuid.UUID              `gorm:"column:payee_user_id;type:uuid;not null"`
	Crew        enums.CrewKind         `gorm:"column:crew;type:crew_kind_enum;not null"`
	Status      enums.ObligationStatus `gorm:"column:status;type:obligation_status_enum;not null"`
	AmountCents int64                  `gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID app-side so inserts work the same against
// Postgres and the sqlite test databases.
func (o *PartnerObligation) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
