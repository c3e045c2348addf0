package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
)

func seedListing(t *testing.T, m *storage.MemoryStore, until time.Time) *models.Listing {
	t.Helper()
	listing, err := m.CreateListing(&models.Listing{
		DonorID:        "donor-1",
		Title:          "Catering surplus",
		Description:    "Sandwich platters",
		Category:       models.CategoryOther,
		Quantity:       4,
		Unit:           models.UnitPackages,
		AvailableFrom:  until.Add(-4 * time.Hour),
		AvailableUntil: until,
	})
	require.NoError(t, err)
	return listing
}

// Scenario: an overdue listing expires and its pending claim is rejected
func TestSweep_ExpiresAndCascades(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()

	stale := seedListing(t, store, now.Add(-time.Minute))
	claim, err := store.CreateClaim(&models.Claim{ListingID: stale.ListingID, ReceiverID: "ngo-1"}, now.Add(-2*time.Minute))
	require.NoError(t, err)

	job := NewExpiryJob(store, time.Minute)
	job.Sweep(now)

	listing, err := store.GetListing(stale.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusExpired, listing.Status)

	got, err := store.GetClaim(claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, got.Status)
	assert.Equal(t, models.RejectReasonExpired, got.RejectedReason)
}

func TestSweep_Idempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()

	stale := seedListing(t, store, now.Add(-time.Minute))
	claim, err := store.CreateClaim(&models.Claim{ListingID: stale.ListingID, ReceiverID: "ngo-1"}, now.Add(-2*time.Minute))
	require.NoError(t, err)

	job := NewExpiryJob(store, time.Minute)
	job.Sweep(now)
	job.Sweep(now)
	job.Sweep(now.Add(time.Minute))

	listing, err := store.GetListing(stale.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusExpired, listing.Status)

	got, err := store.GetClaim(claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, got.Status)
}

// Scenario: a listing was flipped to EXPIRED but the process died before the
// cascade ran. The next sweep must still reject the stranded pending claim.
func TestSweep_RecoversInterruptedCascade(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()

	stale := seedListing(t, store, now.Add(-time.Minute))
	claim, err := store.CreateClaim(&models.Claim{ListingID: stale.ListingID, ReceiverID: "ngo-1"}, now.Add(-2*time.Minute))
	require.NoError(t, err)

	// Only step one of a previous sweep landed
	_, err = store.ExpireListings(now)
	require.NoError(t, err)

	got, err := store.GetClaim(claim.ClaimID)
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusPending, got.Status)

	// The next tick finds no freshly expired listings yet still cascades
	job := NewExpiryJob(store, time.Minute)
	job.Sweep(now.Add(time.Minute))

	got, err = store.GetClaim(claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, got.Status)
	assert.Equal(t, models.RejectReasonExpired, got.RejectedReason)
}

func TestSweep_LeavesAcceptedClaimsAlone(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()

	listing := seedListing(t, store, now.Add(time.Minute))
	claim, err := store.CreateClaim(&models.Claim{ListingID: listing.ListingID, ReceiverID: "ngo-1"}, now)
	require.NoError(t, err)
	_, err = store.AcceptClaim(claim.ClaimID, "123456", now)
	require.NoError(t, err)

	job := NewExpiryJob(store, time.Minute)
	job.Sweep(now.Add(time.Hour))

	got, err := store.GetClaim(claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusAccepted, got.Status)

	gotListing, err := store.GetListing(listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusClaimed, gotListing.Status)
}

// A sweep racing an accept resolves to one of the two consistent outcomes:
// never an ACCEPTED claim on an EXPIRED listing.
func TestSweep_RacingAccept(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := storage.NewMemoryStore()
		now := time.Now()

		listing := seedListing(t, store, now.Add(-time.Second))
		claim, err := store.CreateClaim(&models.Claim{ListingID: listing.ListingID, ReceiverID: "ngo-1"}, now.Add(-time.Minute))
		require.NoError(t, err)

		job := NewExpiryJob(store, time.Minute)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			job.Sweep(now)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.AcceptClaim(claim.ClaimID, "123456", now)
		}()
		wg.Wait()

		gotClaim, err := store.GetClaim(claim.ClaimID)
		require.NoError(t, err)
		gotListing, err := store.GetListing(listing.ListingID)
		require.NoError(t, err)

		switch gotClaim.Status {
		case models.ClaimStatusAccepted:
			assert.Equal(t, models.ListingStatusClaimed, gotListing.Status)
		case models.ClaimStatusRejected:
			assert.Equal(t, models.ListingStatusExpired, gotListing.Status)
			assert.Equal(t, models.RejectReasonExpired, gotClaim.RejectedReason)
		default:
			t.Fatalf("claim left in %s", gotClaim.Status)
		}
	}
}

func TestExpiryJob_StartStop(t *testing.T) {
	store := storage.NewMemoryStore()
	stale := seedListing(t, store, time.Now().Add(-time.Minute))

	job := NewExpiryJob(store, 10*time.Millisecond)
	job.Start()
	defer job.Stop()

	require.Eventually(t, func() bool {
		listing, err := store.GetListing(stale.ListingID)
		return err == nil && listing.Status == models.ListingStatusExpired
	}, 2*time.Second, 5*time.Millisecond)
}
