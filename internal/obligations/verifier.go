package obligations

import (
	"fmt"

	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// Verification is the outcome of checking a claimed payee against the store's
// membership records.
type Verification struct {
	Verified bool
	// NeedsReview marks obligations counted despite incomplete records, such
	// as a membership created before crews existed.
	NeedsReview bool
	Reason      string
}

// VerifyPayee cross-checks an obligation's claimed payee against their actual
// membership. A payee whose role is not staff is excluded outright: their
// claim belongs to a different payment channel and counting it here would
// leak funds across that boundary. A staff payee with no crew recorded is
// still counted, because missing corroborating data is not grounds for
// silently discarding money owed, but the result is flagged for review.
func VerifyPayee(membership *models.StoreMembership, expectedCrew enums.CrewKind) Verification {
	if membership == nil {
		return Verification{Reason: "payee has no membership in this store"}
	}
	if membership.Role != enums.MemberRoleStaff {
		return Verification{Reason: fmt.Sprintf("payee role is %s, expected %s", membership.Role, enums.MemberRoleStaff)}
	}
	if membership.Crew == nil {
		return Verification{
			Verified:    true,
			NeedsReview: true,
			Reason:      "membership predates crew classification",
		}
	}
	if *membership.Crew != expectedCrew {
		return Verification{Reason: fmt.Sprintf("payee crew is %s, expected %s", *membership.Crew, expectedCrew)}
	}
	return Verification{Verified: true}
}
