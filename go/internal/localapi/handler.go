// Package localapi exposes the synchronized auction state over HTTP on the local machine.
package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/clients/auction_api_client"
	"github.com/mcdev12/subasta/go/internal/auctions"
	"github.com/mcdev12/subasta/go/internal/bidding"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/mcdev12/subasta/go/internal/realtime"
	"github.com/mcdev12/subasta/go/internal/session"
	"github.com/rs/zerolog/log"
)

// StateProvider is the read side of the store
type StateProvider interface {
	Snapshot() auctions.Snapshot
}

// BidSubmitter is the intent side of the store
type BidSubmitter interface {
	SubmitBid(ctx context.Context, id int64, amount float64) (models.Bid, error)
}

// StateResponse is served by GET /api/state
type StateResponse struct {
	auctions.Snapshot
	Connection realtime.Status `json:"connection"`
}

type bidRequest struct {
	Amount *float64 `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the local view of the synchronized auction state
type Handler struct {
	state      StateProvider
	bids       BidSubmitter
	connection func() realtime.Status
}

func NewHandler(state StateProvider, bids BidSubmitter, connection func() realtime.Status) *Handler {
	if connection == nil {
		connection = func() realtime.Status { return realtime.StatusIdle }
	}
	return &Handler{state: state, bids: bids, connection: connection}
}

// RegisterRoutes registers the local API routes on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/state", h.HandleGetState)
	mux.HandleFunc("POST /api/auctions/{id}/bids", h.HandleCreateBid)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

// HandleGetState handles GET /api/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Snapshot:   h.state.Snapshot(),
		Connection: h.connection(),
	})
}

// HandleCreateBid handles POST /api/auctions/{id}/bids
func (h *Handler) HandleCreateBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"amount\": number}"})
		return
	}

	bid, err := h.bids.SubmitBid(r.Context(), id, *req.Amount)
	if err != nil {
		writeError(w, err, id, "bid submission failed upstream")
		return
	}

	writeJSON(w, http.StatusCreated, bid)
}

// statusFor maps store and API errors onto local HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, auctions.ErrBidInFlight):
		return http.StatusConflict
	case bidding.IsValidationError(err), errors.Is(err, auction_api_client.ErrBidRejected),
		errors.Is(err, auctions.ErrInvalidAuction), errors.Is(err, auctions.ErrInvalidExtension):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auctions.ErrAuctionNotLoaded), errors.Is(err, auctions.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, auctions.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, clients.ErrUnauthorized), errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case clients.StatusOf(err) == http.StatusForbidden, clients.StatusOf(err) == http.StatusNotFound:
		return clients.StatusOf(err)
	case clients.StatusOf(err) >= 400 && clients.StatusOf(err) < 500:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func messageFor(err error) string {
	var rejection *auction_api_client.RejectionError
	if errors.As(err, &rejection) && rejection.Reason != "" {
		return rejection.Reason
	}
	return clients.MessageOf(err, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
