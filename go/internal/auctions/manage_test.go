package auctions

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/auctions/mocks"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/stretchr/testify/require"
)

func newModeratorStore(t *testing.T, role models.Role) (*Store, *mocks.MockAuctionAPI) {
	t.Helper()

	ctrl := gomock.NewController(t)
	api := mocks.NewMockAuctionAPI(ctrl)
	store := NewStore(api,
		WithClock(clockwork.NewFakeClock()),
		WithRoleCheck(func(required models.Role) bool { return role == required || role == models.RoleAdministrator }),
	)
	return store, api
}

func validRequest() models.AuctionRequest {
	return models.AuctionRequest{Description: "Cuadro", StartingPrice: 300, ItemCategory: "ARTE", DaysToEndTime: 3}
}

func loadList(t *testing.T, store *Store, api *mocks.MockAuctionAPI, auctions ...models.Auction) {
	t.Helper()

	api.EXPECT().ListAuctions(gomock.Any(), "", 0, DefaultPageLimit).Return(auctions, nil)
	require.NoError(t, store.LoadList(context.Background(), Filter{}))
}

func TestValidateAuctionRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(r *models.AuctionRequest)
		valid  bool
	}{
		{"valid", func(r *models.AuctionRequest) {}, true},
		{"blank_description", func(r *models.AuctionRequest) { r.Description = "  " }, false},
		{"zero_price", func(r *models.AuctionRequest) { r.StartingPrice = 0 }, false},
		{"price_over_ceiling", func(r *models.AuctionRequest) { r.StartingPrice = 1_000_000 }, false},
		{"no_duration", func(r *models.AuctionRequest) { r.DaysToEndTime = 0 }, false},
		{"negative_increment", func(r *models.AuctionRequest) { r.MinIncrement = -1 }, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := validRequest()
			tc.mutate(&req)
			err := ValidateAuctionRequest(req)
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidAuction)
		})
	}
}

func TestStore_CreateAuction(t *testing.T) {
	t.Parallel()

	t.Run("prepends_to_list", func(t *testing.T) {
		t.Parallel()

		store, api := newTestStore(t)
		loadList(t, store, api, activeAuction(1, 10, 1))

		api.EXPECT().CreateAuction(gomock.Any(), validRequest()).
			Return(models.Auction{ID: 12, Description: "Cuadro", StartingPrice: 300}, nil)

		a, err := store.CreateAuction(context.Background(), validRequest())
		require.NoError(t, err)
		require.Equal(t, int64(12), a.ID)
		require.Equal(t, models.AuctionStateScheduled, a.State)

		snap := store.Snapshot()
		require.Len(t, snap.List.Auctions, 2)
		require.Equal(t, int64(12), snap.List.Auctions[0].ID)
		require.Equal(t, 300.0, snap.List.Auctions[0].CurrentPrice)
		require.False(t, snap.Action.Pending)
		require.Empty(t, snap.Action.Error)
	})

	t.Run("validation_runs_before_network", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		req := validRequest()
		req.Description = ""

		_, err := store.CreateAuction(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidAuction)
		require.False(t, store.Snapshot().Action.Pending)
	})

	t.Run("failure_is_recorded", func(t *testing.T) {
		t.Parallel()

		store, api := newTestStore(t)
		api.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).
			Return(models.Auction{}, &clients.APIError{StatusCode: http.StatusBadRequest, Message: "La fecha de inicio no puede ser en el pasado"})

		_, err := store.CreateAuction(context.Background(), validRequest())
		require.Error(t, err)

		snap := store.Snapshot()
		require.False(t, snap.Action.Pending)
		require.Equal(t, "La fecha de inicio no puede ser en el pasado", snap.Action.Error)
		require.Empty(t, snap.List.Auctions)
	})
}

func TestStore_UpdateAuction(t *testing.T) {
	t.Parallel()

	store, api := newTestStore(t)
	ctx := context.Background()
	loadList(t, store, api, activeAuction(3, 100, 5), activeAuction(4, 50, 1))
	focus(t, store, api, activeAuction(3, 100, 5), []models.Bid{{ID: 1, Amount: 130}})

	req := validRequest()
	req.Description = "Cuadro firmado"
	api.EXPECT().UpdateAuction(gomock.Any(), int64(3), req).
		Return(models.Auction{Description: "Cuadro firmado", StartingPrice: 100, CurrentPrice: 100, State: models.AuctionStateScheduled}, nil)

	a, err := store.UpdateAuction(ctx, 3, req)
	require.NoError(t, err)
	require.Equal(t, int64(3), a.ID)

	snap := store.Snapshot()
	require.Equal(t, "Cuadro firmado", snap.List.Auctions[0].Description)
	require.Equal(t, "lote", snap.List.Auctions[1].Description)
	require.Equal(t, "Cuadro firmado", snap.Focused.Auction.Description)
	// never back to scheduled, never below the top bid
	require.Equal(t, models.AuctionStateActive, snap.Focused.Auction.State)
	require.Equal(t, 130.0, snap.Focused.Auction.CurrentPrice)
}

func TestStore_DeleteAuction(t *testing.T) {
	t.Parallel()

	t.Run("drops_row_and_focus", func(t *testing.T) {
		t.Parallel()

		store, api := newTestStore(t)
		loadList(t, store, api, activeAuction(3, 100, 5), activeAuction(4, 50, 1))
		focus(t, store, api, activeAuction(3, 100, 5), nil)

		api.EXPECT().DeleteAuction(gomock.Any(), int64(3)).Return(nil)
		require.NoError(t, store.DeleteAuction(context.Background(), 3))

		snap := store.Snapshot()
		require.Len(t, snap.List.Auctions, 1)
		require.Equal(t, int64(4), snap.List.Auctions[0].ID)
		require.Nil(t, snap.Focused.Auction)
		require.Zero(t, snap.Focused.AuctionID)
	})

	t.Run("not_found_keeps_list", func(t *testing.T) {
		t.Parallel()

		store, api := newTestStore(t)
		loadList(t, store, api, activeAuction(3, 100, 5))

		api.EXPECT().DeleteAuction(gomock.Any(), int64(3)).
			Return(&clients.APIError{StatusCode: http.StatusNotFound, Message: "Subasta no encontrada"})

		err := store.DeleteAuction(context.Background(), 3)
		require.ErrorIs(t, err, ErrAuctionNotFound)
		require.True(t, IsNotFound(err))

		snap := store.Snapshot()
		require.Len(t, snap.List.Auctions, 1)
		require.Equal(t, "Subasta no encontrada", snap.Action.Error)
	})
}

func TestStore_Moderation(t *testing.T) {
	t.Parallel()

	t.Run("requires_moderator_role", func(t *testing.T) {
		t.Parallel()

		store, _ := newModeratorStore(t, models.RoleParticipant)
		ctx := context.Background()

		_, err := store.StartAuction(ctx, 3)
		require.ErrorIs(t, err, ErrForbidden)
		_, err = store.EndAuction(ctx, 3)
		require.ErrorIs(t, err, ErrForbidden)
		_, err = store.ExtendAuction(ctx, 3, 10)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("default_store_refuses", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		_, err := store.StartAuction(context.Background(), 3)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("start_updates_list_row", func(t *testing.T) {
		t.Parallel()

		store, api := newModeratorStore(t, models.RoleModerator)
		scheduled := activeAuction(3, 100, 5)
		scheduled.State = models.AuctionStateScheduled
		loadList(t, store, api, scheduled)

		started := scheduled
		started.State = models.AuctionStateActive
		api.EXPECT().StartAuction(gomock.Any(), int64(3)).Return(started, nil)

		a, err := store.StartAuction(context.Background(), 3)
		require.NoError(t, err)
		require.Equal(t, models.AuctionStateActive, a.State)
		require.Equal(t, models.AuctionStateActive, store.Snapshot().List.Auctions[0].State)
	})

	t.Run("end_is_monotonic", func(t *testing.T) {
		t.Parallel()

		store, api := newModeratorStore(t, models.RoleAdministrator)
		ctx := context.Background()
		focus(t, store, api, activeAuction(3, 100, 5), nil)

		// the acknowledgement carries no state; ending is still recorded
		api.EXPECT().EndAuction(gomock.Any(), int64(3)).Return(models.Auction{}, nil)
		a, err := store.EndAuction(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, models.AuctionStateEnded, a.State)

		api.EXPECT().GetAuction(gomock.Any(), int64(3)).Return(activeAuction(3, 100, 5), nil)
		api.EXPECT().GetBids(gomock.Any(), int64(3)).Return(nil, nil)
		require.NoError(t, store.LoadFocused(ctx, 3))
		require.Equal(t, models.AuctionStateEnded, store.Snapshot().Focused.Auction.State)
	})

	t.Run("extend", func(t *testing.T) {
		t.Parallel()

		store, api := newModeratorStore(t, models.RoleModerator)
		ctx := context.Background()
		focus(t, store, api, activeAuction(3, 100, 5), nil)

		_, err := store.ExtendAuction(ctx, 3, 0)
		require.ErrorIs(t, err, ErrInvalidExtension)

		extended := activeAuction(3, 100, 5)
		extended.DaysToEndTime = 2
		api.EXPECT().ExtendAuction(gomock.Any(), int64(3), 30).Return(extended, nil)
		_, err = store.ExtendAuction(ctx, 3, 30)
		require.NoError(t, err)
		require.Equal(t, 2, store.Snapshot().Focused.Auction.DaysToEndTime)

		api.EXPECT().ExtendAuction(gomock.Any(), int64(3), 30).Return(models.Auction{}, errors.New("gateway timeout"))
		_, err = store.ExtendAuction(ctx, 3, 30)
		require.EqualError(t, err, "gateway timeout")
		require.Equal(t, "gateway timeout", store.Snapshot().Action.Error)
	})
}
