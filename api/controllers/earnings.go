package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sibusisodube/canopay-backend/api/middleware"
	"github.com/sibusisodube/canopay-backend/api/responses"
	"github.com/sibusisodube/canopay-backend/api/validators"
	"github.com/sibusisodube/canopay-backend/internal/ledger"
	"github.com/sibusisodube/canopay-backend/internal/obligations"
	"github.com/sibusisodube/canopay-backend/internal/payouts"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/metrics"
	"github.com/sibusisodube/canopay-backend/pkg/pagination"
	"github.com/sibusisodube/canopay-backend/pkg/types"
)

type earningsAccountResponse struct {
	AccountID           uuid.UUID `json:"accountId"`
	StoreID             uuid.UUID `json:"storeId"`
	UserID              uuid.UUID `json:"userId"`
	CurrentBalanceCents int64     `json:"currentBalanceCents"`
	PendingBalanceCents int64     `json:"pendingBalanceCents"`
	TotalEarnedCents    int64     `json:"totalEarnedCents"`
	TotalWithdrawnCents int64     `json:"totalWithdrawnCents"`
	DriverOwedCents     int64     `json:"driverOwedCents"`
	VendorOwedCents     int64     `json:"vendorOwedCents"`
	HasBankingDetails   bool      `json:"hasBankingDetails"`
}

type transactionResponse struct {
	ID                uuid.UUID `json:"id"`
	Kind              string    `json:"kind"`
	SourceEventID     string    `json:"sourceEventId"`
	AmountCents       int64     `json:"amountCents"`
	BalanceAfterCents int64     `json:"balanceAfterCents"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"createdAt"`
}

type transactionPage struct {
	Transactions []transactionResponse `json:"transactions"`
	NextCursor   string                `json:"nextCursor,omitempty"`
}

type payoutResponse struct {
	ID                   uuid.UUID `json:"id"`
	StoreID              uuid.UUID `json:"storeId"`
	RequesterUserID      uuid.UUID `json:"requesterUserId"`
	Mode                 string    `json:"mode"`
	Status               string    `json:"status"`
	RequestedAmountCents int64     `json:"requestedAmountCents"`
	ReservedAmountCents  int64     `json:"reservedAmountCents"`
	SalesRevenueCents    int64     `json:"salesRevenueCents"`
	DriverOwedCents      int64     `json:"driverOwedCents"`
	VendorOwedCents      int64     `json:"vendorOwedCents"`
	CreatedAt            time.Time `json:"createdAt"`
}

type createPayoutRequest struct {
	Mode             string               `json:"mode" validate:"required,oneof=individual combined"`
	AmountCents      int64                `json:"amountCents" validate:"required,gt=0"`
	MemberAccountIDs []uuid.UUID          `json:"memberAccountIds,omitempty"`
	Banking          types.BankingDetails `json:"banking" validate:"required"`
}

func toPayoutResponse(request *models.PayoutRequest) payoutResponse {
	return payoutResponse{
		ID:                   request.ID,
		StoreID:              request.StoreID,
		RequesterUserID:      request.RequesterUserID,
		Mode:                 request.Mode.String(),
		Status:               request.Status.String(),
		RequestedAmountCents: request.RequestedAmountCents,
		ReservedAmountCents:  request.ReservedAmountCents,
		SalesRevenueCents:    request.SalesRevenueCents,
		DriverOwedCents:      request.DriverOwedCents,
		VendorOwedCents:      request.VendorOwedCents,
		CreatedAt:            request.CreatedAt,
	}
}

func requestIdentity(r *http.Request) (storeID, userID uuid.UUID, err error) {
	storeID, err = uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	userID, err = uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return storeID, userID, nil
}

// EarningsSummary returns the caller's balance snapshot plus the store's
// advisory obligation breakdown.
func EarningsSummary(ledgerSvc ledger.Service, obligationSvc obligations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, userID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := ledgerSvc.GetAccount(r.Context(), storeID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if account == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "earnings account not found"))
			return
		}

		breakdown, err := obligationSvc.Breakdown(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, earningsAccountResponse{
			AccountID:           account.ID,
			StoreID:             account.StoreID,
			UserID:              account.UserID,
			CurrentBalanceCents: account.CurrentBalanceCents,
			PendingBalanceCents: account.PendingBalanceCents,
			TotalEarnedCents:    account.TotalEarnedCents,
			TotalWithdrawnCents: account.TotalWithdrawnCents,
			DriverOwedCents:     breakdown.DriverOwedCents,
			VendorOwedCents:     breakdown.VendorOwedCents,
			HasBankingDetails:   len(account.BankingDetailsEnc) > 0,
		})
	}
}

// EarningsTransactions returns the caller's transaction log, newest first.
func EarningsTransactions(ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, userID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := ledgerSvc.GetAccount(r.Context(), storeID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if account == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "earnings account not found"))
			return
		}

		transactions, nextCursor, err := ledgerSvc.ListTransactions(r.Context(), account.ID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page := transactionPage{
			Transactions: make([]transactionResponse, 0, len(transactions)),
			NextCursor:   nextCursor,
		}
		for i := range transactions {
			tx := transactions[i]
			page.Transactions = append(page.Transactions, transactionResponse{
				ID:                tx.ID,
				Kind:              tx.Kind.String(),
				SourceEventID:     tx.SourceEventID,
				AmountCents:       tx.AmountCents,
				BalanceAfterCents: tx.BalanceAfterCents,
				Description:       tx.Description,
				CreatedAt:         tx.CreatedAt,
			})
		}
		responses.WriteSuccess(w, page)
	}
}

// CreatePayout handles both payout modes on one endpoint.
func CreatePayout(payoutSvc payouts.Service, collector *metrics.EarningsMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, userID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createPayoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode, err := enums.ParsePayoutMode(body.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout mode"))
			return
		}

		var request *models.PayoutRequest
		switch mode {
		case enums.PayoutModeIndividual:
			request, err = payoutSvc.RequestIndividual(r.Context(), payouts.IndividualRequest{
				StoreID:         storeID,
				RequesterUserID: userID,
				AmountCents:     body.AmountCents,
				Banking:         body.Banking,
			})
		case enums.PayoutModeCombined:
			request, err = payoutSvc.RequestCombined(r.Context(), payouts.CombinedRequest{
				StoreID:          storeID,
				RequesterUserID:  userID,
				AmountCents:      body.AmountCents,
				MemberAccountIDs: body.MemberAccountIDs,
				Banking:          body.Banking,
			})
		}
		if err != nil {
			if collector != nil {
				collector.ObservePayoutRequest(mode.String(), "rejected", 0)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if collector != nil {
			collector.ObservePayoutRequest(mode.String(), "created", request.ReservedAmountCents)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPayoutResponse(request))
	}
}

// ListPayouts returns recent payout requests for the store.
func ListPayouts(payoutSvc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := payoutSvc.ListPayouts(r.Context(), storeID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]payoutResponse, 0, len(requests))
		for i := range requests {
			out = append(out, toPayoutResponse(&requests[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// PayoutDetail returns one payout request scoped to the store.
func PayoutDetail(payoutSvc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		request, err := payoutSvc.GetPayout(r.Context(), storeID, payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPayoutResponse(request))
	}
}
