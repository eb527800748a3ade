package auction_api_client

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/models"
)

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.PostJSON(ctx, LoginEndpoint, req, &resp); err != nil {
		return models.AuthResponse{}, fmt.Errorf("failed to login: %w", err)
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	if err := c.PostJSON(ctx, RegisterEndpoint, req, nil); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	return nil
}

func (c *Client) RefreshToken(ctx context.Context) (models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.PostJSON(ctx, RefreshTokenEndpoint, nil, &resp); err != nil {
		return models.AuthResponse{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return resp, nil
}

// ValidateToken reports whether the current token is still accepted.
// A rejection is not an error; transport failures are.
func (c *Client) ValidateToken(ctx context.Context) (bool, error) {
	if _, err := c.Get(ctx, ValidateTokenEndpoint); err != nil {
		var apiErr *clients.APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to validate token: %w", err)
	}
	return true, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.PostJSON(ctx, LogoutEndpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}
