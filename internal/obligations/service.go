package obligations

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sibusisodube/canopay-backend/internal/memberships"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
)

type membershipReader interface {
	ListByStoreAndUsers(ctx context.Context, storeID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]models.StoreMembership, error)
}

// Service aggregates what a store owes its drivers and vendors. The sums are
// informational: they show a requester how much of their balance is already
// spoken for, but they never gate a payout.
type Service interface {
	SumObligations(ctx context.Context, storeID uuid.UUID, crew enums.CrewKind) (int64, error)
	Breakdown(ctx context.Context, storeID uuid.UUID) (*Breakdown, error)
}

// Breakdown summarizes outstanding obligations per crew.
type Breakdown struct {
	DriverOwedCents int64
	VendorOwedCents int64
}

type service struct {
	repo    Repository
	members membershipReader
	logg    *logger.Logger
}

// NewService wires the obligation aggregator.
func NewService(repo Repository, members membershipReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("obligations repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership reader required")
	}
	return &service{repo: repo, members: members, logg: logg}, nil
}

var _ membershipReader = (*memberships.Repository)(nil)

func (s *service) SumObligations(ctx context.Context, storeID uuid.UUID, crew enums.CrewKind) (int64, error) {
	if storeID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if !crew.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid crew %q", crew))
	}

	rows, err := s.repo.ListOutstanding(ctx, storeID, crew)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	payeeIDs := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.PayeeUserID]; ok {
			continue
		}
		seen[row.PayeeUserID] = struct{}{}
		payeeIDs = append(payeeIDs, row.PayeeUserID)
	}

	membershipsByUser, err := s.members.ListByStoreAndUsers(ctx, storeID, payeeIDs)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range rows {
		var membership *models.StoreMembership
		if found, ok := membershipsByUser[row.PayeeUserID]; ok {
			membership = &found
		}
		verification := VerifyPayee(membership, crew)
		if !verification.Verified {
			s.warn(ctx, row, verification.Reason)
			continue
		}
		if verification.NeedsReview {
			s.warn(ctx, row, verification.Reason)
		}
		total += row.AmountCents
	}
	return total, nil
}

func (s *service) Breakdown(ctx context.Context, storeID uuid.UUID) (*Breakdown, error) {
	driverOwed, err := s.SumObligations(ctx, storeID, enums.CrewKindDriver)
	if err != nil {
		return nil, err
	}
	vendorOwed, err := s.SumObligations(ctx, storeID, enums.CrewKindVendor)
	if err != nil {
		return nil, err
	}
	return &Breakdown{
		DriverOwedCents: driverOwed,
		VendorOwedCents: vendorOwed,
	}, nil
}

func (s *service) warn(ctx context.Context, row models.PartnerObligation, reason string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"obligation_id": row.ID.String(),
		"store_id":      row.StoreID.String(),
		"payee_user_id": row.PayeeUserID.String(),
		"reason":        reason,
	})
	s.logg.Warn(logCtx, "obligation payee verification flagged")
}
