package memberships

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/internal/repo"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// Repository exposes read access to store memberships. Membership writes
// happen in the identity service; this service only verifies roles and crews.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// GetMembership retrieves a membership by user and store. Returns nil when no
// membership exists.
func (r *Repository) GetMembership(ctx context.Context, userID, storeID uuid.UUID) (*models.StoreMembership, error) {
	var membership models.StoreMembership
	err := r.DB(ctx).
		Where("user_id = ? AND store_id = ?", userID, storeID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// ListByStoreAndUsers fetches the memberships for the given users within one
// store as a single query, keyed by user ID.
func (r *Repository) ListByStoreAndUsers(ctx context.Context, storeID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]models.StoreMembership, error) {
	result := make(map[uuid.UUID]models.StoreMembership, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	var rows []models.StoreMembership
	err := r.DB(ctx).
		Where("store_id = ? AND user_id IN ?", storeID, userIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.UserID] = row
	}
	return result, nil
}

// ListStoreMembers returns every membership for the store.
func (r *Repository) ListStoreMembers(ctx context.Context, storeID uuid.UUID) ([]models.StoreMembership, error) {
	var rows []models.StoreMembership
	err := r.DB(ctx).
		Where("store_id = ?", storeID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UserHasRole reports whether the user holds one of the provided roles for the store.
func (r *Repository) UserHasRole(ctx context.Context, userID, storeID uuid.UUID, roles ...enums.MemberRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	var count int64
	err := r.DB(ctx).
		Model(&models.StoreMembership{}).
		Where("user_id = ? AND store_id = ? AND role IN ?", userID, storeID, roles).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
