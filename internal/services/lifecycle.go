package services

import (
	"fmt"
	"log"
	"time"

	"github.com/rescueroute/rescueroute-backend/internal/apperrors"
	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
	"github.com/rescueroute/rescueroute-backend/internal/utils"
)

// LifecycleService is the sole authority for listing/claim state transitions.
// Every mutation funnels through here or the expiry sweeper; both lean on the
// store's atomic conditional transitions, so a transition that loses a race
// fails with ErrInvalidState instead of half-applying.
type LifecycleService struct {
	store    storage.Store
	notifier Notifier
	now      func() time.Time
}

// NewLifecycleService creates the lifecycle controller
func NewLifecycleService(store storage.Store, notifier Notifier) *LifecycleService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &LifecycleService{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateListingInput carries the donor-supplied listing fields
type CreateListingInput struct {
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Category            string                `json:"category"`
	Quantity            float64               `json:"quantity"`
	Unit                string                `json:"unit"`
	AvailableFrom       *time.Time            `json:"available_from"`
	AvailableUntil      time.Time             `json:"available_until"`
	PickupLocation      models.PickupLocation `json:"pickup_location"`
	Images              []string              `json:"images"`
	SpecialInstructions string                `json:"special_instructions"`
}

// CreateListing validates the input and inserts an AVAILABLE listing
func (s *LifecycleService) CreateListing(donorID string, input CreateListingInput) (*models.Listing, error) {
	if input.Title == "" || input.Description == "" {
		return nil, fmt.Errorf("%w: title and description are required", apperrors.ErrValidation)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrValidation)
	}
	if input.AvailableUntil.IsZero() {
		return nil, fmt.Errorf("%w: available_until is required", apperrors.ErrValidation)
	}

	category := input.Category
	if category == "" {
		category = models.CategoryOther
	} else if !models.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", apperrors.ErrValidation, category)
	}
	unit := input.Unit
	if unit == "" {
		unit = models.UnitServings
	} else if !models.ValidUnit(unit) {
		return nil, fmt.Errorf("%w: unknown unit %q", apperrors.ErrValidation, unit)
	}

	from := s.now()
	if input.AvailableFrom != nil {
		from = *input.AvailableFrom
	}
	if !input.AvailableUntil.After(from) {
		return nil, fmt.Errorf("%w: available_until must be after available_from", apperrors.ErrValidation)
	}

	listing := &models.Listing{
		DonorID:             donorID,
		Title:               input.Title,
		Description:         input.Description,
		Category:            category,
		Quantity:            input.Quantity,
		Unit:                unit,
		PickupLocation:      input.PickupLocation,
		Images:              input.Images,
		SpecialInstructions: input.SpecialInstructions,
		AvailableFrom:       from,
		AvailableUntil:      input.AvailableUntil,
	}
	return s.store.CreateListing(listing)
}

// GetListing retrieves a listing by ID
func (s *LifecycleService) GetListing(listingID string) (*models.Listing, error) {
	return s.store.GetListing(listingID)
}

// ListDonorListings returns the donor's own listings, newest first
func (s *LifecycleService) ListDonorListings(donorID string) ([]*models.Listing, error) {
	return s.store.GetListingsByDonor(donorID)
}

// ListAvailableListings returns claimable listings, soonest-expiring first
func (s *LifecycleService) ListAvailableListings() ([]*models.Listing, error) {
	return s.store.GetAvailableListings(s.now())
}

// DeleteListing removes the donor's own listing while it is still AVAILABLE
func (s *LifecycleService) DeleteListing(listingID, donorID string) error {
	listing, err := s.store.GetListing(listingID)
	if err != nil {
		return err
	}
	if listing.DonorID != donorID {
		return fmt.Errorf("%w: not authorized to delete this listing", apperrors.ErrForbidden)
	}
	return s.store.DeleteListing(listingID)
}

// CreateClaim inserts a PENDING claim against an available, unexpired
// listing with no other active claim. The store checks those preconditions
// and inserts as one atomic unit.
func (s *LifecycleService) CreateClaim(listingID, receiverID, message string, pickupTime *time.Time) (*models.Claim, error) {
	if listingID == "" {
		return nil, fmt.Errorf("%w: listingId is required", apperrors.ErrValidation)
	}

	claim := &models.Claim{
		ListingID:  listingID,
		ReceiverID: receiverID,
		Message:    message,
		PickupTime: pickupTime,
	}
	return s.store.CreateClaim(claim, s.now())
}

// GetClaim returns the claim, visible only to the claiming receiver and the
// listing's donor
func (s *LifecycleService) GetClaim(claimID, callerID string) (*models.Claim, error) {
	claim, err := s.store.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	if claim.ReceiverID == callerID {
		return claim, nil
	}
	listing, err := s.store.GetListing(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != callerID {
		return nil, fmt.Errorf("%w: not authorized to view this claim", apperrors.ErrForbidden)
	}
	return claim, nil
}

// ListReceiverClaims returns the receiver's claims, newest first
func (s *LifecycleService) ListReceiverClaims(receiverID string) ([]*models.Claim, error) {
	return s.store.GetClaimsByReceiver(receiverID)
}

// ListReceivedClaims returns claims against the donor's listings, newest first
func (s *LifecycleService) ListReceivedClaims(donorID string) ([]*models.Claim, error) {
	return s.store.GetClaimsForDonor(donorID)
}

// AcceptClaim accepts a pending claim: the claim turns ACCEPTED with a fresh
// verification code, the listing turns CLAIMED, and every other pending claim
// on the listing is rejected as superseded, all in one atomic store
// transition. The accepted event carries the code and goes to the donor only.
func (s *LifecycleService) AcceptClaim(claimID, donorID string) (*models.Claim, error) {
	claim, err := s.store.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, fmt.Errorf("%w: not authorized to accept this claim", apperrors.ErrForbidden)
	}

	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification code: %w", err)
	}

	accepted, err := s.store.AcceptClaim(claimID, code, s.now())
	if err != nil {
		return nil, err
	}

	s.publish(Event{
		Name:             EventClaimAccepted,
		ClaimID:          accepted.ClaimID,
		ListingID:        accepted.ListingID,
		Receiver:         s.receiverSummary(accepted.ReceiverID),
		VerificationCode: code,
		DonorID:          donorID,
	})
	return accepted, nil
}

// RejectClaim rejects a pending claim with the donor's reason
func (s *LifecycleService) RejectClaim(claimID, donorID, reason string) (*models.Claim, error) {
	claim, err := s.store.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, fmt.Errorf("%w: not authorized to reject this claim", apperrors.ErrForbidden)
	}

	if reason == "" {
		reason = models.RejectReasonDonor
	}
	return s.store.RejectClaim(claimID, reason, s.now())
}

// CompleteClaim marks an accepted claim completed without a code check
func (s *LifecycleService) CompleteClaim(claimID, donorID string) (*models.Claim, error) {
	claim, err := s.store.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, fmt.Errorf("%w: not authorized to complete this claim", apperrors.ErrForbidden)
	}

	completed, err := s.store.CompleteClaim(claimID, false, s.now())
	if err != nil {
		return nil, err
	}

	s.publish(Event{
		Name:      EventClaimCompleted,
		ClaimID:   completed.ClaimID,
		ListingID: completed.ListingID,
		Receiver:  s.receiverSummary(completed.ReceiverID),
	})
	return completed, nil
}

// VerifyPickup completes an accepted claim iff the submitted code matches the
// stored one exactly. A mismatch changes nothing and never reveals the code.
func (s *LifecycleService) VerifyPickup(claimID, donorID, submittedCode string) (*models.Claim, error) {
	if !utils.ValidCodeFormat(submittedCode) {
		return nil, fmt.Errorf("%w: verification code must be exactly 6 digits", apperrors.ErrValidation)
	}

	claim, err := s.store.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListing(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, fmt.Errorf("%w: not authorized to verify this claim", apperrors.ErrForbidden)
	}
	if claim.Status != models.ClaimStatusAccepted {
		return nil, fmt.Errorf("%w: only accepted claims can be verified", apperrors.ErrInvalidState)
	}
	if claim.VerificationCode == nil {
		return nil, fmt.Errorf("%w: no verification code found for this claim", apperrors.ErrInvalidState)
	}
	if *claim.VerificationCode != submittedCode {
		return nil, fmt.Errorf("%w: invalid verification code", apperrors.ErrCodeMismatch)
	}

	verified, err := s.store.CompleteClaim(claimID, true, s.now())
	if err != nil {
		return nil, err
	}

	s.publish(Event{
		Name:       EventClaimCompleted,
		ClaimID:    verified.ClaimID,
		ListingID:  verified.ListingID,
		Receiver:   s.receiverSummary(verified.ReceiverID),
		VerifiedAt: verified.VerifiedAt,
	})
	return verified, nil
}

// publish fires the event after the transition committed; failures stay here
func (s *LifecycleService) publish(event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Notifier panic on %s event for claim %s: %v", event.Name, event.ClaimID, r)
		}
	}()
	s.notifier.Publish(event)
}

func (s *LifecycleService) receiverSummary(receiverID string) models.ReceiverSummary {
	user, err := s.store.GetUser(receiverID)
	if err != nil {
		return models.ReceiverSummary{}
	}
	return models.ReceiverSummary{Name: user.Name, Organization: user.Organization}
}
