package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// StoreMembership links a user with a store and captures their role. Crew is
// only set for staff who are part of a payable crew (driver or vendor);
// memberships created before crews existed have it nil.
type StoreMembership struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID        `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_store_memberships_store_user,priority:1"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_store_memberships_store_user,priority:2"`
	Role      enums.MemberRole `gorm:"column:role;type:member_role;not null"`
	Crew      *enums.CrewKind  `gorm:"column:crew;type:crew_kind_enum"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID app-side so inserts work the same against
// Postgres and the sqlite test databases.
func (m *StoreMembership) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
