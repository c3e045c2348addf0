package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Claim statuses
const (
	ClaimStatusPending   = "PENDING"
	ClaimStatusAccepted  = "ACCEPTED"
	ClaimStatusRejected  = "REJECTED"
	ClaimStatusCompleted = "COMPLETED"
)

// Rejection reasons used by the lifecycle engine
const (
	RejectReasonDonor      = "Rejected by donor"
	RejectReasonSuperseded = "Another claim was accepted for this listing"
	RejectReasonExpired    = "Listing expired"
)

// Claim represents a receiving organization's request to take a listing
type Claim struct {
	gorm.Model

	ClaimID    string `json:"claim_id" gorm:"uniqueIndex"`
	ListingID  string `json:"listing_id" gorm:"index"`
	ReceiverID string `json:"receiver_id" gorm:"index"`

	Status string `json:"status" gorm:"index;default:PENDING"` // "PENDING", "ACCEPTED", "REJECTED", "COMPLETED"

	Message    string     `json:"message,omitempty"`
	PickupTime *time.Time `json:"pickup_time,omitempty"` // receiver-suggested

	RejectedReason string `json:"rejected_reason,omitempty"`

	// Set on accept, proves physical handoff on verify. Hidden in JSON:
	// the code reaches the donor only through the accept response and the
	// donor-scoped notifier event.
	VerificationCode *string `json:"-"`

	VerifiedAt  *time.Time `json:"verified_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// BeforeCreate generates ClaimID
func (c *Claim) BeforeCreate(tx *gorm.DB) error {
	if c.ClaimID == "" {
		c.ClaimID = fmt.Sprintf("CLM-%s", uuid.NewString())
	}
	return nil
}

// Active reports whether the claim blocks other claims on its listing
func (c *Claim) Active() bool {
	return c.Status == ClaimStatusPending || c.Status == ClaimStatusAccepted
}
