package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

// CommissionAccruedEvent is emitted after a store owner's commission lands on
// their earnings account.
type CommissionAccruedEvent struct {
	AccountID         uuid.UUID             `json:"accountId"`
	StoreID           uuid.UUID             `json:"storeId"`
	UserID            uuid.UUID             `json:"userId"`
	OrderID           string                `json:"orderId"`
	TransactionID     uuid.UUID             `json:"transactionId"`
	Kind              enums.TransactionKind `json:"kind"`
	AmountCents       int64                 `json:"amountCents"`
	BalanceAfterCents int64                 `json:"balanceAfterCents"`
	AccruedAt         time.Time             `json:"accruedAt"`
}

// PayoutRequestedEvent is emitted when a payout request has been created and
// its funds moved into pending balances.
type PayoutRequestedEvent struct {
	PayoutRequestID      uuid.UUID        `json:"payoutRequestId"`
	StoreID              uuid.UUID        `json:"storeId"`
	RequesterUserID      uuid.UUID        `json:"requesterUserId"`
	Mode                 enums.PayoutMode `json:"mode"`
	RequestedAmountCents int64            `json:"requestedAmountCents"`
	ReservedAmountCents  int64            `json:"reservedAmountCents"`
	AccountCount         int              `json:"accountCount"`
	RequestedAt          time.Time        `json:"requestedAt"`
}
