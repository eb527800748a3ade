package localapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/rs/zerolog/log"
)

// AuctionManager is the management side of the store
type AuctionManager interface {
	CreateAuction(ctx context.Context, req models.AuctionRequest) (models.Auction, error)
	UpdateAuction(ctx context.Context, id int64, req models.AuctionRequest) (models.Auction, error)
	DeleteAuction(ctx context.Context, id int64) error
	StartAuction(ctx context.Context, id int64) (models.Auction, error)
	EndAuction(ctx context.Context, id int64) (models.Auction, error)
	ExtendAuction(ctx context.Context, id int64, minutes int) (models.Auction, error)
}

// SessionRefresher renews the signed-in session
type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

type extendRequest struct {
	Minutes int `json:"minutes"`
}

// ManageHandler serves auction management and session upkeep
type ManageHandler struct {
	auctions AuctionManager
	session  SessionRefresher
}

func NewManageHandler(auctions AuctionManager, session SessionRefresher) *ManageHandler {
	return &ManageHandler{auctions: auctions, session: session}
}

// RegisterRoutes registers the management routes on mux
func (h *ManageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auctions", h.HandleCreateAuction)
	mux.HandleFunc("PUT /api/auctions/{id}", h.HandleUpdateAuction)
	mux.HandleFunc("DELETE /api/auctions/{id}", h.HandleDeleteAuction)
	mux.HandleFunc("POST /api/auctions/{id}/start", h.HandleStartAuction)
	mux.HandleFunc("POST /api/auctions/{id}/end", h.HandleEndAuction)
	mux.HandleFunc("POST /api/auctions/{id}/extend", h.HandleExtendAuction)
	mux.HandleFunc("POST /api/session/refresh", h.HandleRefreshSession)
}

// HandleCreateAuction handles POST /api/auctions
func (h *ManageHandler) HandleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid auction body"})
		return
	}

	a, err := h.auctions.CreateAuction(r.Context(), req)
	if err != nil {
		writeError(w, err, 0, "auction creation failed upstream")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleUpdateAuction handles PUT /api/auctions/{id}
func (h *ManageHandler) HandleUpdateAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req models.AuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid auction body"})
		return
	}

	a, err := h.auctions.UpdateAuction(r.Context(), id, req)
	if err != nil {
		writeError(w, err, id, "auction update failed upstream")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleDeleteAuction handles DELETE /api/auctions/{id}
func (h *ManageHandler) HandleDeleteAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	if err := h.auctions.DeleteAuction(r.Context(), id); err != nil {
		writeError(w, err, id, "auction deletion failed upstream")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStartAuction handles POST /api/auctions/{id}/start
func (h *ManageHandler) HandleStartAuction(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.auctions.StartAuction)
}

// HandleEndAuction handles POST /api/auctions/{id}/end
func (h *ManageHandler) HandleEndAuction(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.auctions.EndAuction)
}

// HandleExtendAuction handles POST /api/auctions/{id}/extend
func (h *ManageHandler) HandleExtendAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"minutes\": number}"})
		return
	}

	a, err := h.auctions.ExtendAuction(r.Context(), id, req.Minutes)
	if err != nil {
		writeError(w, err, id, "auction extension failed upstream")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleRefreshSession handles POST /api/session/refresh
func (h *ManageHandler) HandleRefreshSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		writeError(w, err, 0, "session refresh failed upstream")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ManageHandler) moderate(w http.ResponseWriter, r *http.Request, action func(context.Context, int64) (models.Auction, error)) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	a, err := action(r.Context(), id)
	if err != nil {
		writeError(w, err, id, "auction moderation failed upstream")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// auctionID parses the {id} path value, answering 400 when it is not a positive integer
func auctionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid auction id"})
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error, id int64, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int64("auction_id", id).Msg(msg)
	}
	writeJSON(w, status, errorResponse{Error: messageFor(err)})
}
