package storage

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescueroute/rescueroute-backend/internal/apperrors"
	"github.com/rescueroute/rescueroute-backend/internal/models"
)

// MemoryStore holds all data in memory for testing and small deployments.
//
// One mutex guards all maps: the accept effect spans a claim, its listing
// and the listing's other claims, and has to land as a single critical
// section for the exclusivity invariant to hold.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	listings map[string]*models.Listing
	claims   map[string]*models.Claim
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		listings: make(map[string]*models.Listing),
		claims:   make(map[string]*models.Claim),
	}
}

// User operations

func (m *MemoryStore) CreateUser(user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.UserID == "" {
		user.UserID = fmt.Sprintf("USR-%s", uuid.NewString())
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, fmt.Errorf("%w: email already registered", apperrors.ErrValidation)
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	m.users[user.UserID] = user
	return user, nil
}

func (m *MemoryStore) GetUser(userID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
	}
	return user, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, email)
}

// Listing operations

func (m *MemoryStore) CreateListing(listing *models.Listing) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if listing.ListingID == "" {
		listing.ListingID = fmt.Sprintf("LST-%s", uuid.NewString())
	}
	listing.Status = models.ListingStatusAvailable
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = listing.CreatedAt

	m.listings[listing.ListingID] = listing
	return listing, nil
}

func (m *MemoryStore) GetListing(listingID string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getListingLocked(listingID)
}

func (m *MemoryStore) getListingLocked(listingID string) (*models.Listing, error) {
	listing, exists := m.listings[listingID]
	if !exists {
		return nil, fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, listingID)
	}
	return listing, nil
}

func (m *MemoryStore) GetListingsByDonor(donorID string) ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var listings []*models.Listing
	for _, listing := range m.listings {
		if listing.DonorID == donorID {
			listings = append(listings, listing)
		}
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings, nil
}

func (m *MemoryStore) GetAvailableListings(now time.Time) ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var listings []*models.Listing
	for _, listing := range m.listings {
		if listing.Status == models.ListingStatusAvailable && listing.AvailableUntil.After(now) {
			listings = append(listings, listing)
		}
	}
	// Soonest-expiring first
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].AvailableUntil.Before(listings[j].AvailableUntil)
	})
	return listings, nil
}

func (m *MemoryStore) DeleteListing(listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, exists := m.listings[listingID]
	if !exists {
		return fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, listingID)
	}
	if listing.Status != models.ListingStatusAvailable {
		return fmt.Errorf("%w: cannot delete a listing that is %s", apperrors.ErrInvalidState, listing.Status)
	}

	delete(m.listings, listingID)
	return nil
}

// Claim operations

func (m *MemoryStore) GetClaim(claimID string) (*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	claim, exists := m.claims[claimID]
	if !exists {
		return nil, fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
	}
	return claim, nil
}

func (m *MemoryStore) GetClaimsByReceiver(receiverID string) ([]*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var claims []*models.Claim
	for _, claim := range m.claims {
		if claim.ReceiverID == receiverID {
			claims = append(claims, claim)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].CreatedAt.After(claims[j].CreatedAt)
	})
	return claims, nil
}

func (m *MemoryStore) GetClaimsForDonor(donorID string) ([]*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	donorListings := make(map[string]bool)
	for _, listing := range m.listings {
		if listing.DonorID == donorID {
			donorListings[listing.ListingID] = true
		}
	}

	var claims []*models.Claim
	for _, claim := range m.claims {
		if donorListings[claim.ListingID] {
			claims = append(claims, claim)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].CreatedAt.After(claims[j].CreatedAt)
	})
	return claims, nil
}

func (m *MemoryStore) CreateClaim(claim *models.Claim, now time.Time) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, err := m.getListingLocked(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusAvailable {
		return nil, fmt.Errorf("%w: listing is not available for claiming", apperrors.ErrInvalidState)
	}
	if !now.Before(listing.AvailableUntil) {
		return nil, fmt.Errorf("%w: listing has expired", apperrors.ErrInvalidState)
	}
	for _, existing := range m.claims {
		if existing.ListingID == claim.ListingID && existing.Active() {
			return nil, fmt.Errorf("%w: listing already has a pending or accepted claim", apperrors.ErrInvalidState)
		}
	}

	if claim.ClaimID == "" {
		claim.ClaimID = fmt.Sprintf("CLM-%s", uuid.NewString())
	}
	claim.Status = models.ClaimStatusPending
	claim.CreatedAt = now
	claim.UpdatedAt = now

	m.claims[claim.ClaimID] = claim
	return claim, nil
}

func (m *MemoryStore) AcceptClaim(claimID, code string, now time.Time) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, exists := m.claims[claimID]
	if !exists {
		return nil, fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, fmt.Errorf("%w: claim is not in pending status", apperrors.ErrInvalidState)
	}

	listing, err := m.getListingLocked(claim.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusAvailable {
		return nil, fmt.Errorf("%w: listing is not available", apperrors.ErrInvalidState)
	}

	claim.Status = models.ClaimStatusAccepted
	claim.VerificationCode = &code
	claim.UpdatedAt = now

	listing.Status = models.ListingStatusClaimed
	listing.ClaimedBy = &claim.ReceiverID
	claimedAt := now
	listing.ClaimedAt = &claimedAt
	listing.UpdatedAt = now

	// Supersede every other pending claim on the same listing
	for _, other := range m.claims {
		if other.ClaimID != claimID && other.ListingID == claim.ListingID && other.Status == models.ClaimStatusPending {
			other.Status = models.ClaimStatusRejected
			other.RejectedReason = models.RejectReasonSuperseded
			other.UpdatedAt = now
		}
	}

	return claim, nil
}

func (m *MemoryStore) RejectClaim(claimID, reason string, now time.Time) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, exists := m.claims[claimID]
	if !exists {
		return nil, fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, fmt.Errorf("%w: claim is not in pending status", apperrors.ErrInvalidState)
	}

	claim.Status = models.ClaimStatusRejected
	claim.RejectedReason = reason
	claim.UpdatedAt = now
	return claim, nil
}

func (m *MemoryStore) CompleteClaim(claimID string, verified bool, now time.Time) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, exists := m.claims[claimID]
	if !exists {
		return nil, fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
	}
	if claim.Status != models.ClaimStatusAccepted {
		return nil, fmt.Errorf("%w: only accepted claims can be completed", apperrors.ErrInvalidState)
	}

	claim.Status = models.ClaimStatusCompleted
	completedAt := now
	claim.CompletedAt = &completedAt
	if verified {
		verifiedAt := now
		claim.VerifiedAt = &verifiedAt
	}
	claim.UpdatedAt = now

	if listing, err := m.getListingLocked(claim.ListingID); err == nil {
		listing.Status = models.ListingStatusCompleted
		listing.UpdatedAt = now
	}

	return claim, nil
}

// Sweeper operations

func (m *MemoryStore) ExpireListings(now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for _, listing := range m.listings {
		if listing.Status == models.ListingStatusAvailable && listing.AvailableUntil.Before(now) {
			listing.Status = models.ListingStatusExpired
			listing.UpdatedAt = now
			expired = append(expired, listing.ListingID)
		}
	}
	return expired, nil
}

func (m *MemoryStore) RejectExpiredListingClaims(reason string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rejected int64
	for _, claim := range m.claims {
		if claim.Status != models.ClaimStatusPending {
			continue
		}
		listing, exists := m.listings[claim.ListingID]
		if !exists || listing.Status != models.ListingStatusExpired {
			continue
		}
		claim.Status = models.ClaimStatusRejected
		claim.RejectedReason = reason
		claim.UpdatedAt = now
		rejected++
	}
	return rejected, nil
}

// Stats operations

func (m *MemoryStore) GetPublicStats() (*models.PublicStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.PublicStats{
		TotalListings: int64(len(m.listings)),
	}

	for _, listing := range m.listings {
		if listing.Status == models.ListingStatusCompleted {
			stats.TotalFoodSavedKg += foodSavedKg(listing.Quantity, listing.Unit)
			stats.MealsProvided += mealsProvided(listing.Quantity, listing.Unit)
		}
	}
	stats.TotalFoodSavedKg = math.Round(stats.TotalFoodSavedKg*10) / 10

	var completed []*models.Claim
	for _, claim := range m.claims {
		if claim.Status == models.ClaimStatusCompleted {
			stats.TotalCompleted++
			completed = append(completed, claim)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		ti, tj := completed[i].UpdatedAt, completed[j].UpdatedAt
		if completed[i].CompletedAt != nil {
			ti = *completed[i].CompletedAt
		}
		if completed[j].CompletedAt != nil {
			tj = *completed[j].CompletedAt
		}
		return ti.After(tj)
	})
	if len(completed) > 10 {
		completed = completed[:10]
	}

	for _, claim := range completed {
		listing, exists := m.listings[claim.ListingID]
		if !exists {
			continue
		}
		donorName := "A donor"
		if donor, exists := m.users[listing.DonorID]; exists {
			if donor.Organization != "" {
				donorName = donor.Organization
			} else if donor.Name != "" {
				donorName = donor.Name
			}
		}
		ts := claim.UpdatedAt
		if claim.CompletedAt != nil {
			ts = *claim.CompletedAt
		}
		stats.RecentDonations = append(stats.RecentDonations, models.RecentDonation{
			Text:      fmt.Sprintf("%s just donated %g %s of %s", donorName, listing.Quantity, listing.Unit, listing.Category),
			Timestamp: ts,
		})
	}

	return stats, nil
}

// foodSavedKg converts a listing quantity to an approximate weight
func foodSavedKg(quantity float64, unit string) float64 {
	switch unit {
	case models.UnitKg:
		return quantity
	case models.UnitServings:
		return quantity * 0.3
	case models.UnitPackages:
		return quantity * 0.5
	case models.UnitItems:
		return quantity * 0.2
	case models.UnitLiters:
		return quantity
	}
	return 0
}

// mealsProvided converts a listing quantity to an approximate meal count
func mealsProvided(quantity float64, unit string) int {
	switch unit {
	case models.UnitServings:
		return int(quantity)
	case models.UnitPackages:
		return int(quantity * 2)
	case models.UnitItems:
		return int(quantity)
	case models.UnitKg:
		return int(math.Floor(quantity * 3))
	case models.UnitLiters:
		return int(math.Floor(quantity * 2))
	}
	return 0
}
