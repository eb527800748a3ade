package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/subasta/go/internal/models"
)

// Kind is the normalized name of a push event
type Kind string

const (
	KindNewBid           Kind = "new-bid"
	KindAuctionExtended  Kind = "auction-extended"
	KindAuctionEnded     Kind = "auction-ended"
	KindModeratorJoined  Kind = "moderator-joined"
	KindNotification     Kind = "notification"
	KindConnectionStatus Kind = "connection-status"
)

// Status is the state of the channel's connection as seen by subscribers
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

var ErrMalformedEvent = errors.New("malformed event")

// Event is a push notification after normalization.
// Price is a hint only and is zero when the payload carried none.
type Event struct {
	Kind           Kind      `json:"kind"`
	Name           string    `json:"name"`
	AuctionID      int64     `json:"auctionId,omitempty"`
	Price          float64   `json:"price,omitempty"`
	BidderUsername string    `json:"bidderUsername,omitempty"`
	NewEndTime     time.Time `json:"newEndTime,omitempty"`
	WinnerUsername string    `json:"winnerUsername,omitempty"`
	ModeratorName  string    `json:"moderatorName,omitempty"`
	Message        string    `json:"message,omitempty"`
	Status         Status    `json:"status,omitempty"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// NormalizeKind maps the names used by the different event sources onto one Kind
func NormalizeKind(name string) Kind {
	switch strings.TrimSpace(name) {
	case "nueva_puja", "new-bid", "NEW_BID":
		return KindNewBid
	case "subasta_extendida", "tiempo_actualizado", "auction-extended", "AUCTION_EXTENDED":
		return KindAuctionExtended
	case "subasta_finalizada", "auction-ended", "AUCTION_ENDED":
		return KindAuctionEnded
	case "moderador_ingreso", "moderator-joined", "MODERATOR_JOINED":
		return KindModeratorJoined
	default:
		return KindNotification
	}
}

type eventPayload struct {
	AuctionID      models.LooseID   `json:"auctionId"`
	NewPrice       *float64         `json:"newPrice"`
	Amount         *float64         `json:"amount"`
	BidPrice       *float64         `json:"bidPrice"`
	BidderUsername string           `json:"bidderUsername"`
	NewEndTime     models.Timestamp `json:"newEndTime"`
	WinnerUsername string           `json:"winnerUsername"`
	ModeratorName  string           `json:"moderatorName"`
	Message        string           `json:"message"`
	Mensaje        string           `json:"mensaje"`
}

func (p eventPayload) price() float64 {
	for _, v := range []*float64{p.NewPrice, p.Amount, p.BidPrice} {
		if v != nil {
			return *v
		}
	}
	return 0
}

// wireMessage covers both the websocket frame {event, data} and the
// broker envelope {eventId, eventType, auctionId, timestamp, payload}
type wireMessage struct {
	Event     string           `json:"event"`
	Data      json.RawMessage  `json:"data"`
	EventID   string           `json:"eventId"`
	EventType string           `json:"eventType"`
	AuctionID models.LooseID   `json:"auctionId"`
	Timestamp models.Timestamp `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

// DecodeMessage parses one raw message from either transport
func DecodeMessage(raw []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	name, body := msg.Event, msg.Data
	if name == "" {
		name, body = msg.EventType, msg.Payload
	}
	if name == "" {
		return Event{}, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}

	ev, err := decodePayload(name, body)
	if err != nil {
		return Event{}, err
	}
	if ev.AuctionID == 0 {
		ev.AuctionID = int64(msg.AuctionID)
	}
	if !msg.Timestamp.IsZero() {
		ev.ReceivedAt = msg.Timestamp.Time
	}
	return ev, nil
}

func decodePayload(name string, body json.RawMessage) (Event, error) {
	ev := Event{
		Kind:       NormalizeKind(name),
		Name:       name,
		ReceivedAt: time.Now(),
	}
	if len(body) == 0 || string(body) == "null" {
		return ev, nil
	}

	var p eventPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, name, err)
	}

	ev.AuctionID = int64(p.AuctionID)
	ev.Price = p.price()
	ev.BidderUsername = p.BidderUsername
	ev.NewEndTime = p.NewEndTime.Time
	ev.WinnerUsername = p.WinnerUsername
	ev.ModeratorName = p.ModeratorName
	ev.Message = p.Message
	if ev.Message == "" {
		ev.Message = p.Mensaje
	}
	return ev, nil
}

func statusEvent(s Status) Event {
	return Event{
		Kind:       KindConnectionStatus,
		Name:       string(KindConnectionStatus),
		Status:     s,
		ReceivedAt: time.Now(),
	}
}
