package auction_api_client

import (
	"context"
	"net/http"
	"testing"

	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateAuction(t *testing.T) {
	t.Parallel()

	c, rec := newTestServer(t, http.StatusCreated, `{"auctionId": 12, "description": "Cuadro", "startingPrice": 300, "estado": "programada"}`)

	a, err := c.CreateAuction(context.Background(), models.AuctionRequest{
		Description:   "Cuadro",
		StartingPrice: 300,
		ItemCategory:  "ARTE",
		DaysToEndTime: 3,
	})
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, rec.method)
	require.Equal(t, AuctionsEndpoint, rec.path)
	require.JSONEq(t, `{"description":"Cuadro","startingPrice":300,"itemStatus":"","itemCategory":"ARTE","daysToEndTime":3}`, string(rec.body))

	require.Equal(t, int64(12), a.ID)
	require.Equal(t, 300.0, a.CurrentPrice)
	require.Equal(t, models.AuctionStateScheduled, a.State)
}

func TestClient_UpdateAuction(t *testing.T) {
	t.Parallel()

	c, rec := newTestServer(t, http.StatusOK, `{"description": "Cuadro firmado", "startingPrice": 350}`)

	a, err := c.UpdateAuction(context.Background(), 12, models.AuctionRequest{Description: "Cuadro firmado", StartingPrice: 350, DaysToEndTime: 3})
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, rec.method)
	require.Equal(t, "/api/v1/subastas/12", rec.path)
	require.Equal(t, int64(12), a.ID)
	require.Equal(t, "Cuadro firmado", a.Description)
}

func TestClient_DeleteAuction(t *testing.T) {
	t.Parallel()

	c, rec := newTestServer(t, http.StatusNoContent, "")
	require.NoError(t, c.DeleteAuction(context.Background(), 12))
	require.Equal(t, http.MethodDelete, rec.method)
	require.Equal(t, "/api/v1/subastas/12", rec.path)

	c, _ = newTestServer(t, http.StatusForbidden, `{"message": "No autorizado"}`)
	err := c.DeleteAuction(context.Background(), 12)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, clients.StatusOf(err))
	require.Equal(t, "No autorizado", clients.MessageOf(err, ""))
}

func TestClient_ModerationActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		call         func(c *Client) (models.Auction, error)
		expectedPath string
		expectedBody string
	}{
		{
			name:         "start",
			call:         func(c *Client) (models.Auction, error) { return c.StartAuction(context.Background(), 4) },
			expectedPath: "/api/v1/subastas/4/start",
		},
		{
			name:         "end",
			call:         func(c *Client) (models.Auction, error) { return c.EndAuction(context.Background(), 4) },
			expectedPath: "/api/v1/subastas/4/end",
		},
		{
			name:         "extend",
			call:         func(c *Client) (models.Auction, error) { return c.ExtendAuction(context.Background(), 4, 15) },
			expectedPath: "/api/v1/subastas/4/extend",
			expectedBody: `{"minutes":15}`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, rec := newTestServer(t, http.StatusOK, `{"estado": "activa", "startingPrice": 10}`)
			a, err := tc.call(c)
			require.NoError(t, err)
			require.Equal(t, http.MethodPost, rec.method)
			require.Equal(t, tc.expectedPath, rec.path)
			if tc.expectedBody != "" {
				require.JSONEq(t, tc.expectedBody, string(rec.body))
			} else {
				require.Empty(t, rec.body)
			}
			require.Equal(t, int64(4), a.ID)
			require.Equal(t, models.AuctionStateActive, a.State)
		})
	}
}
