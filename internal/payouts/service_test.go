package payouts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/internal/ledger"
	"github.com/sibusisodube/canopay-backend/internal/memberships"
	"github.com/sibusisodube/canopay-backend/internal/obligations"
	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/security"
	"github.com/sibusisodube/canopay-backend/pkg/types"
)

const testBankingKey = "8f3a1c5e9b7d2f4a6c8e0b1d3f5a7c9e2b4d6f8a0c2e4b6d8f0a2c4e6b8d0f1a"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payouts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.EarningsAccount{},
		&models.EarningsTransaction{},
		&models.PayoutRequest{},
		&models.PartnerObligation{},
		&models.StoreMembership{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	memberRepo := memberships.NewRepository(db)
	obligationSvc, err := obligations.NewService(obligations.NewRepository(db), memberRepo, nil)
	require.NoError(t, err)
	vault, err := security.NewBankingVault(testBankingKey)
	require.NoError(t, err)
	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(
		NewRepository(db),
		ledger.NewRepository(db),
		obligationSvc,
		memberRepo,
		vault,
		&testTxRunner{db: db},
		events,
		config.EarningsConfig{PayoutMinimumCents: 50000},
		nil,
	)
	require.NoError(t, err)
	return svc
}

func validBanking() types.BankingDetails {
	return types.BankingDetails{
		AccountHolder: "Thandi Mokoena",
		BankName:      "Capitec",
		AccountNumber: "1234567890",
		BranchCode:    "470010",
		AccountType:   "savings",
	}
}

func seedAccount(t *testing.T, db *gorm.DB, storeID, userID uuid.UUID, currentCents int64) *models.EarningsAccount {
	t.Helper()
	account := &models.EarningsAccount{
		ID:                  uuid.New(),
		StoreID:             storeID,
		UserID:              userID,
		CurrentBalanceCents: currentCents,
		TotalEarnedCents:    currentCents,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func seedMembership(t *testing.T, db *gorm.DB, storeID, userID uuid.UUID, role enums.MemberRole) {
	t.Helper()
	require.NoError(t, db.Create(&models.StoreMembership{
		ID:      uuid.New(),
		StoreID: storeID,
		UserID:  userID,
		Role:    role,
	}).Error)
}

func TestRequestIndividualAtMinimum(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	account := seedAccount(t, db, storeID, userID, 50000)

	request, err := svc.RequestIndividual(ctx, IndividualRequest{
		StoreID:         storeID,
		RequesterUserID: userID,
		AmountCents:     50000,
		Banking:         validBanking(),
	})
	require.NoError(t, err)

	assert.Equal(t, enums.PayoutModeIndividual, request.Mode)
	assert.Equal(t, enums.PayoutStatusPending, request.Status)
	assert.Equal(t, int64(50000), request.RequestedAmountCents)
	assert.Equal(t, int64(50000), request.ReservedAmountCents)
	assert.NotEmpty(t, request.BankingDetailsEnc)

	var updated models.EarningsAccount
	require.NoError(t, db.First(&updated, "id = ?", account.ID).Error)
	assert.Equal(t, int64(0), updated.CurrentBalanceCents)
	assert.Equal(t, int64(50000), updated.PendingBalanceCents)
	assert.Equal(t, int64(50000), updated.TotalWithdrawnCents)
	assert.NotEmpty(t, updated.BankingDetailsEnc)

	var tx models.EarningsTransaction
	require.NoError(t, db.First(&tx, "account_id = ?", account.ID).Error)
	assert.Equal(t, enums.TransactionKindPayoutReserve, tx.Kind)
	assert.Equal(t, int64(-50000), tx.AmountCents)
	assert.Equal(t, int64(0), tx.BalanceAfterCents)
	assert.Equal(t, request.ID.String(), tx.SourceEventID)

	var outboxCount int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPayoutRequested).
		Count(&outboxCount).Error)
	assert.Equal(t, int64(1), outboxCount)
}

func TestRequestIndividualBelowMinimum(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	account := seedAccount(t, db, storeID, userID, 50000)

	_, err := svc.RequestIndividual(ctx, IndividualRequest{
		StoreID:         storeID,
		RequesterUserID: userID,
		AmountCents:     49999,
		Banking:         validBanking(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	var untouched models.EarningsAccount
	require.NoError(t, db.First(&untouched, "id = ?", account.ID).Error)
	assert.Equal(t, int64(50000), untouched.CurrentBalanceCents)
	assert.Equal(t, int64(0), untouched.PendingBalanceCents)

	var requestCount int64
	require.NoError(t, db.Model(&models.PayoutRequest{}).Count(&requestCount).Error)
	assert.Equal(t, int64(0), requestCount)
}

func TestRequestIndividualInsufficientBalanceRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	seedAccount(t, db, storeID, userID, 60000)

	_, err := svc.RequestIndividual(ctx, IndividualRequest{
		StoreID:         storeID,
		RequesterUserID: userID,
		AmountCents:     70000,
		Banking:         validBanking(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))

	var requestCount int64
	require.NoError(t, db.Model(&models.PayoutRequest{}).Count(&requestCount).Error)
	assert.Equal(t, int64(0), requestCount)

	var txCount int64
	require.NoError(t, db.Model(&models.EarningsTransaction{}).Count(&txCount).Error)
	assert.Equal(t, int64(0), txCount)
}

func TestRequestIndividualRejectsInvalidBanking(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	seedAccount(t, db, storeID, userID, 60000)

	banking := validBanking()
	banking.BranchCode = "47001" // five digits

	_, err := svc.RequestIndividual(ctx, IndividualRequest{
		StoreID:         storeID,
		RequesterUserID: userID,
		AmountCents:     50000,
		Banking:         banking,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestRequestIndividualUnknownAccount(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.RequestIndividual(context.Background(), IndividualRequest{
		StoreID:         uuid.New(),
		RequesterUserID: uuid.New(),
		AmountCents:     50000,
		Banking:         validBanking(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRequestCombinedSweepsFullBalances(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()

	adminUser := uuid.New()
	memberAUser := uuid.New()
	memberBUser := uuid.New()
	seedMembership(t, db, storeID, adminUser, enums.MemberRoleAdmin)
	admin := seedAccount(t, db, storeID, adminUser, 20000)
	memberA := seedAccount(t, db, storeID, memberAUser, 30000)
	memberB := seedAccount(t, db, storeID, memberBUser, 0)

	request, err := svc.RequestCombined(ctx, CombinedRequest{
		StoreID:          storeID,
		RequesterUserID:  adminUser,
		AmountCents:      45000,
		MemberAccountIDs: []uuid.UUID{admin.ID, memberA.ID, memberB.ID},
		Banking:          validBanking(),
	})
	require.NoError(t, err)

	assert.Equal(t, enums.PayoutModeCombined, request.Mode)
	assert.Equal(t, int64(45000), request.RequestedAmountCents)
	// Sweep reserves each member's whole balance, not just the requested sum.
	assert.Equal(t, int64(50000), request.ReservedAmountCents)

	var shares []models.PayoutMemberShare
	require.NoError(t, json.Unmarshal(request.MemberBreakdown, &shares))
	require.Len(t, shares, 3)
	reservedByAccount := map[uuid.UUID]int64{}
	for _, share := range shares {
		reservedByAccount[share.AccountID] = share.ReservedCents
	}
	assert.Equal(t, int64(20000), reservedByAccount[admin.ID])
	assert.Equal(t, int64(30000), reservedByAccount[memberA.ID])
	assert.Equal(t, int64(0), reservedByAccount[memberB.ID])

	for _, tc := range []struct {
		accountID    uuid.UUID
		wantPending  int64
		wantWithdraw int64
	}{
		{admin.ID, 20000, 20000},
		{memberA.ID, 30000, 30000},
		{memberB.ID, 0, 0},
	} {
		var acct models.EarningsAccount
		require.NoError(t, db.First(&acct, "id = ?", tc.accountID).Error)
		assert.Equal(t, int64(0), acct.CurrentBalanceCents)
		assert.Equal(t, tc.wantPending, acct.PendingBalanceCents)
		assert.Equal(t, tc.wantWithdraw, acct.TotalWithdrawnCents)
	}

	// The zero-balance member gets no reservation transaction.
	var txCount int64
	require.NoError(t, db.Model(&models.EarningsTransaction{}).
		Where("account_id = ?", memberB.ID).
		Count(&txCount).Error)
	assert.Equal(t, int64(0), txCount)

	require.NoError(t, db.Model(&models.EarningsTransaction{}).
		Where("source_event_id = ?", request.ID.String()).
		Count(&txCount).Error)
	assert.Equal(t, int64(2), txCount)
}

func TestRequestCombinedRequiresAdminRole(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()

	staffUser := uuid.New()
	seedMembership(t, db, storeID, staffUser, enums.MemberRoleStaff)
	staff := seedAccount(t, db, storeID, staffUser, 60000)

	_, err := svc.RequestCombined(ctx, CombinedRequest{
		StoreID:          storeID,
		RequesterUserID:  staffUser,
		AmountCents:      10000,
		MemberAccountIDs: []uuid.UUID{staff.ID},
		Banking:          validBanking(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestRequestCombinedInsufficientTotal(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()

	adminUser := uuid.New()
	memberUser := uuid.New()
	seedMembership(t, db, storeID, adminUser, enums.MemberRoleOwner)
	admin := seedAccount(t, db, storeID, adminUser, 20000)
	member := seedAccount(t, db, storeID, memberUser, 10000)

	_, err := svc.RequestCombined(ctx, CombinedRequest{
		StoreID:          storeID,
		RequesterUserID:  adminUser,
		AmountCents:      40000,
		MemberAccountIDs: []uuid.UUID{admin.ID, member.ID},
		Banking:          validBanking(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))

	var untouched models.EarningsAccount
	require.NoError(t, db.First(&untouched, "id = ?", member.ID).Error)
	assert.Equal(t, int64(10000), untouched.CurrentBalanceCents)
}

func TestRequestCombinedRejectsForeignAccount(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	otherStoreID := uuid.New()

	adminUser := uuid.New()
	seedMembership(t, db, storeID, adminUser, enums.MemberRoleAdmin)
	seedAccount(t, db, storeID, adminUser, 20000)
	foreign := seedAccount(t, db, otherStoreID, uuid.New(), 30000)

	_, err := svc.RequestCombined(ctx, CombinedRequest{
		StoreID:          storeID,
		RequesterUserID:  adminUser,
		AmountCents:      10000,
		MemberAccountIDs: []uuid.UUID{foreign.ID},
		Banking:          validBanking(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestGetPayoutScopedToStore(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	userID := uuid.New()
	seedAccount(t, db, storeID, userID, 50000)

	request, err := svc.RequestIndividual(ctx, IndividualRequest{
		StoreID:         storeID,
		RequesterUserID: userID,
		AmountCents:     50000,
		Banking:         validBanking(),
	})
	require.NoError(t, err)

	found, err := svc.GetPayout(ctx, storeID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, found.ID)

	_, err = svc.GetPayout(ctx, uuid.New(), request.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
