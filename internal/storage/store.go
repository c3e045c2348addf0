package storage

import (
	"sync"
	"time"

	"github.com/rescueroute/rescueroute-backend/internal/models"
)

var (
	storeInstance Store
	storeOnce     sync.Once
)

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for storage operations.
//
// The claim mutators are atomic conditional transitions: each one re-checks
// the status precondition inside the store's own critical section (mutex or
// database transaction) and fails with apperrors.ErrInvalidState when another
// writer got there first. Callers must not read-then-write around them.
type Store interface {
	// User operations
	CreateUser(user *models.User) (*models.User, error)
	GetUser(userID string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)

	// Listing operations
	CreateListing(listing *models.Listing) (*models.Listing, error)
	GetListing(listingID string) (*models.Listing, error)
	GetListingsByDonor(donorID string) ([]*models.Listing, error)
	GetAvailableListings(now time.Time) ([]*models.Listing, error)
	// DeleteListing removes the listing only while it is AVAILABLE.
	DeleteListing(listingID string) error

	// Claim operations
	GetClaim(claimID string) (*models.Claim, error)
	GetClaimsByReceiver(receiverID string) ([]*models.Claim, error)
	GetClaimsForDonor(donorID string) ([]*models.Claim, error)
	// CreateClaim inserts a PENDING claim iff the listing is AVAILABLE,
	// now is strictly before availableUntil, and no PENDING/ACCEPTED claim
	// exists for the listing. Check and insert are one atomic unit.
	CreateClaim(claim *models.Claim, now time.Time) (*models.Claim, error)
	// AcceptClaim applies the whole accept effect as one atomic unit:
	// claim PENDING -> ACCEPTED with code, listing AVAILABLE -> CLAIMED
	// with claimedBy/claimedAt, every other PENDING claim on the listing
	// -> REJECTED (superseded).
	AcceptClaim(claimID, code string, now time.Time) (*models.Claim, error)
	// RejectClaim transitions PENDING -> REJECTED with the given reason.
	RejectClaim(claimID, reason string, now time.Time) (*models.Claim, error)
	// CompleteClaim transitions ACCEPTED -> COMPLETED and completes the
	// listing; verifiedAt is set too when verified is true.
	CompleteClaim(claimID string, verified bool, now time.Time) (*models.Claim, error)

	// Sweeper operations
	// ExpireListings flips AVAILABLE listings whose window has passed to
	// EXPIRED and returns their IDs. Idempotent.
	ExpireListings(now time.Time) ([]string, error)
	// RejectExpiredListingClaims rejects every PENDING claim whose listing
	// is EXPIRED and returns how many it touched. Keyed to listing status
	// rather than a caller-supplied ID set so claims left behind by an
	// interrupted sweep get picked up on the next run. Idempotent.
	RejectExpiredListingClaims(reason string, now time.Time) (int64, error)

	// Stats operations
	GetPublicStats() (*models.PublicStats, error)
}
