package auction_api_client

import (
	"github.com/mcdev12/subasta/go/clients"
)

// Client talks to the auction marketplace REST API
type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}
