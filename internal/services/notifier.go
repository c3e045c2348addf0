package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rescueroute/rescueroute-backend/internal/models"
)

// Lifecycle event names
const (
	EventClaimAccepted  = "claim.accepted"
	EventClaimCompleted = "claim.completed"
)

// Event is the payload published after a committed lifecycle transition
type Event struct {
	Name      string                 `json:"name"`
	ClaimID   string                 `json:"claim_id"`
	ListingID string                 `json:"listing_id"`
	Receiver  models.ReceiverSummary `json:"receiver"`

	// Set only on claim.accepted; forces the event onto the donor-scoped
	// subject so the code never reaches the receiver side.
	VerificationCode string `json:"verification_code,omitempty"`

	// Set only when claim.completed resulted from a code-verified pickup
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	// Target donor for donor-scoped delivery
	DonorID string `json:"-"`
}

// Notifier is a fire-and-forget event sink. Implementations must never
// propagate delivery failures back to the lifecycle engine: the transition
// is already committed by the time Publish runs.
type Notifier interface {
	Publish(event Event)
}

// LogNotifier writes events to the process log. Used when NATS_URL is unset.
type LogNotifier struct{}

func (LogNotifier) Publish(event Event) {
	log.Printf("📣 event %s: claim=%s listing=%s", event.Name, event.ClaimID, event.ListingID)
}

// NatsNotifier publishes lifecycle events over NATS. Events carrying a
// verification code go to rescueroute.donor.<id>; everything else broadcasts
// on rescueroute.events.
type NatsNotifier struct {
	conn *nats.Conn
}

// NewNatsNotifier connects to the given NATS endpoint
func NewNatsNotifier(url string) (*NatsNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("rescueroute-backend"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NatsNotifier{conn: nc}, nil
}

// Close drains the underlying connection
func (n *NatsNotifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

func (n *NatsNotifier) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to encode %s event for claim %s: %v", event.Name, event.ClaimID, err)
		return
	}

	subject := "rescueroute.events"
	if event.VerificationCode != "" {
		subject = fmt.Sprintf("rescueroute.donor.%s", event.DonorID)
	}

	if err := n.conn.Publish(subject, data); err != nil {
		log.Printf("❌ Failed to publish %s event for claim %s: %v", event.Name, event.ClaimID, err)
	}
}
