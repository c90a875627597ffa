package memberships

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:memberships_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.StoreMembership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedMembership(t *testing.T, db *gorm.DB, storeID uuid.UUID, role enums.MemberRole, crew *enums.CrewKind) models.StoreMembership {
	t.Helper()
	membership := models.StoreMembership{
		StoreID: storeID,
		UserID:  uuid.New(),
		Role:    role,
		Crew:    crew,
	}
	require.NoError(t, db.Create(&membership).Error)
	return membership
}

func TestGetMembership(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()
	seeded := seedMembership(t, db, storeID, enums.MemberRoleAdmin, nil)

	found, err := repo.GetMembership(ctx, seeded.UserID, storeID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.MemberRoleAdmin, found.Role)

	missing, err := repo.GetMembership(ctx, uuid.New(), storeID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByStoreAndUsers(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()

	driver := enums.CrewKindDriver
	a := seedMembership(t, db, storeID, enums.MemberRoleStaff, &driver)
	b := seedMembership(t, db, storeID, enums.MemberRoleStaff, nil)
	seedMembership(t, db, uuid.New(), enums.MemberRoleStaff, &driver)

	byUser, err := repo.ListByStoreAndUsers(ctx, storeID, []uuid.UUID{a.UserID, b.UserID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	require.NotNil(t, byUser[a.UserID].Crew)
	assert.Equal(t, enums.CrewKindDriver, *byUser[a.UserID].Crew)
	assert.Nil(t, byUser[b.UserID].Crew)
}

func TestUserHasRole(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()
	admin := seedMembership(t, db, storeID, enums.MemberRoleAdmin, nil)
	staff := seedMembership(t, db, storeID, enums.MemberRoleStaff, nil)

	ok, err := repo.UserHasRole(ctx, admin.UserID, storeID, enums.MemberRoleOwner, enums.MemberRoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UserHasRole(ctx, staff.UserID, storeID, enums.MemberRoleOwner, enums.MemberRoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UserHasRole(ctx, admin.UserID, storeID)
	require.NoError(t, err)
	assert.False(t, ok)
}
