package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseClient_SendsBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL + "/")
	c.SetTokenSource(func() string { return "abc" })

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/ping", &out))
	require.True(t, out.OK)
	require.Equal(t, "Bearer abc", gotAuth)
	require.Equal(t, "application/json", gotContentType)
}

func TestBaseClient_NoTokenNoHeader(t *testing.T) {
	t.Parallel()

	gotAuth := "unset"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetTokenSource(func() string { return "" })

	_, err := c.Get(context.Background(), "/")
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestBaseClient_ErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"La subasta no está activa"}`))
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	_, err := c.Post(context.Background(), "/bids", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "La subasta no está activa", MessageOf(err, "fallback"))
	require.Equal(t, http.StatusBadRequest, StatusOf(err))
	require.False(t, errors.Is(err, ErrUnauthorized))
}

func TestBaseClient_UnauthorizedRunsHandler(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var calls int32
	c := NewBaseClient(srv.URL)
	c.SetUnauthorizedHandler(func() { atomic.AddInt32(&calls, 1) })

	_, err := c.Get(context.Background(), "/secure")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Equal(t, "fallback", MessageOf(err, "fallback"))
}

func TestBaseClient_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewBaseClient(url)
	_, err := c.Get(context.Background(), "/")
	require.Error(t, err)
	require.Equal(t, 0, StatusOf(err))
}
