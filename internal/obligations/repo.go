package obligations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// Repository reads partner obligation records. Obligations are written and
// settled by the partner-payment flow; this service never mutates them.
type Repository interface {
	ListOutstanding(ctx context.Context, storeID uuid.UUID, crew enums.CrewKind) ([]models.PartnerObligation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an obligations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListOutstanding(ctx context.Context, storeID uuid.UUID, crew enums.CrewKind) ([]models.PartnerObligation, error) {
	var rows []models.PartnerObligation
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND crew = ? AND status IN ?", storeID, crew,
			[]enums.ObligationStatus{enums.ObligationStatusPending, enums.ObligationStatusApproved}).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
