package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/auctions"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/mcdev12/subasta/go/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeManager struct {
	auction    models.Auction
	err        error
	gotAction  string
	gotID      int64
	gotReq     models.AuctionRequest
	gotMinutes int
}

func (f *fakeManager) CreateAuction(ctx context.Context, req models.AuctionRequest) (models.Auction, error) {
	f.gotAction, f.gotReq = "create", req
	return f.auction, f.err
}

func (f *fakeManager) UpdateAuction(ctx context.Context, id int64, req models.AuctionRequest) (models.Auction, error) {
	f.gotAction, f.gotID, f.gotReq = "update", id, req
	return f.auction, f.err
}

func (f *fakeManager) DeleteAuction(ctx context.Context, id int64) error {
	f.gotAction, f.gotID = "delete", id
	return f.err
}

func (f *fakeManager) StartAuction(ctx context.Context, id int64) (models.Auction, error) {
	f.gotAction, f.gotID = "start", id
	return f.auction, f.err
}

func (f *fakeManager) EndAuction(ctx context.Context, id int64) (models.Auction, error) {
	f.gotAction, f.gotID = "end", id
	return f.auction, f.err
}

func (f *fakeManager) ExtendAuction(ctx context.Context, id int64, minutes int) (models.Auction, error) {
	f.gotAction, f.gotID, f.gotMinutes = "extend", id, minutes
	return f.auction, f.err
}

type fakeRefresher struct {
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls++
	return f.err
}

func newManageServer(t *testing.T, manager *fakeManager, refresher *fakeRefresher) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewManageHandler(manager, refresher).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestManageHandler_Routes(t *testing.T) {
	t.Parallel()

	body := `{"description":"Cuadro","startingPrice":300,"itemCategory":"ARTE","daysToEndTime":3}`
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		expectedAction string
		expectedID     int64
	}{
		{"create", http.MethodPost, "/api/auctions", body, http.StatusCreated, "create", 0},
		{"update", http.MethodPut, "/api/auctions/12", body, http.StatusOK, "update", 12},
		{"delete", http.MethodDelete, "/api/auctions/12", "", http.StatusNoContent, "delete", 12},
		{"start", http.MethodPost, "/api/auctions/12/start", "", http.StatusOK, "start", 12},
		{"end", http.MethodPost, "/api/auctions/12/end", "", http.StatusOK, "end", 12},
		{"extend", http.MethodPost, "/api/auctions/12/extend", `{"minutes":15}`, http.StatusOK, "extend", 12},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			manager := &fakeManager{auction: models.Auction{ID: 12, Description: "Cuadro", State: models.AuctionStateActive}}
			srv := newManageServer(t, manager, &fakeRefresher{})

			resp := doRequest(t, tc.method, srv.URL+tc.path, tc.body)
			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			require.Equal(t, tc.expectedAction, manager.gotAction)
			require.Equal(t, tc.expectedID, manager.gotID)

			switch tc.name {
			case "create", "update":
				require.Equal(t, "Cuadro", manager.gotReq.Description)
				require.Equal(t, 3, manager.gotReq.DaysToEndTime)
			case "extend":
				require.Equal(t, 15, manager.gotMinutes)
			}
			if tc.expectedStatus != http.StatusNoContent {
				var got models.Auction
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
				require.Equal(t, int64(12), got.ID)
			}
		})
	}
}

func TestManageHandler_BadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create_malformed", http.MethodPost, "/api/auctions", `{"description":`},
		{"update_bad_id", http.MethodPut, "/api/auctions/abc", `{}`},
		{"delete_zero_id", http.MethodDelete, "/api/auctions/0", ""},
		{"start_negative_id", http.MethodPost, "/api/auctions/-4/start", ""},
		{"extend_malformed", http.MethodPost, "/api/auctions/12/extend", `{"minutes":"ten"}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			manager := &fakeManager{}
			srv := newManageServer(t, manager, &fakeRefresher{})
			resp := doRequest(t, tc.method, srv.URL+tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Empty(t, manager.gotAction)
		})
	}
}

func TestManageHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{"forbidden", auctions.ErrForbidden, http.StatusForbidden, auctions.ErrForbidden.Error()},
		{"invalid_extension", auctions.ErrInvalidExtension, http.StatusUnprocessableEntity, ""},
		{"not_found", fmt.Errorf("%w: %d", auctions.ErrAuctionNotFound, 12), http.StatusNotFound, ""},
		{"upstream_forbidden", &clients.APIError{StatusCode: http.StatusForbidden, Message: "Solo moderadores"}, http.StatusForbidden, "Solo moderadores"},
		{"upstream_conflict", &clients.APIError{StatusCode: http.StatusConflict, Message: "La subasta ya finalizó"}, http.StatusUnprocessableEntity, "La subasta ya finalizó"},
		{"upstream_down", errors.New("connection refused"), http.StatusBadGateway, "connection refused"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newManageServer(t, &fakeManager{err: tc.err}, &fakeRefresher{})
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/auctions/12/extend", `{"minutes":0}`)
			require.Equal(t, tc.expectedStatus, resp.StatusCode)

			var got errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			require.NotEmpty(t, got.Error)
			if tc.expectedMsg != "" {
				require.Equal(t, tc.expectedMsg, got.Error)
			}
		})
	}
}

func TestManageHandler_RefreshSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"refreshed", nil, http.StatusNoContent},
		{"signed_out", session.ErrNotAuthenticated, http.StatusUnauthorized},
		{"token_expired", fmt.Errorf("failed to refresh session: %w", &clients.APIError{StatusCode: http.StatusUnauthorized}), http.StatusUnauthorized},
		{"upstream_down", errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			refresher := &fakeRefresher{err: tc.err}
			srv := newManageServer(t, &fakeManager{}, refresher)
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/session/refresh", "")
			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			require.Equal(t, 1, refresher.calls)
		})
	}
}
