package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueroute/rescueroute-backend/internal/apperrors"
	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
	"github.com/rescueroute/rescueroute-backend/internal/utils"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type panickingNotifier struct{}

func (panickingNotifier) Publish(Event) { panic("sink down") }

func newTestService(t *testing.T) (*LifecycleService, *storage.MemoryStore, *recordingNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	rec := &recordingNotifier{}
	svc := NewLifecycleService(store, rec)

	for _, u := range []*models.User{
		{UserID: "donor-1", Name: "Maria", Organization: "Corner Bakery", Email: "maria@example.com", Role: models.RoleDonor},
		{UserID: "donor-2", Name: "Luis", Organization: "Trattoria Sole", Email: "luis@example.com", Role: models.RoleDonor},
		{UserID: "ngo-1", Name: "Dana", Organization: "City Shelter", Email: "dana@example.com", Role: models.RoleNGO},
		{UserID: "ngo-2", Name: "Femi", Organization: "Food Bank North", Email: "femi@example.com", Role: models.RoleNGO},
	} {
		_, err := store.CreateUser(u)
		require.NoError(t, err)
	}
	return svc, store, rec
}

func validInput(until time.Time) CreateListingInput {
	return CreateListingInput{
		Title:          "Day-old bread",
		Description:    "Assorted loaves",
		Category:       models.CategoryBakery,
		Quantity:       8,
		Unit:           models.UnitItems,
		AvailableUntil: until,
	}
}

func TestCreateListing_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	until := time.Now().Add(time.Hour)

	_, err := svc.CreateListing("donor-1", CreateListingInput{Description: "x", Quantity: 1, AvailableUntil: until})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	input := validInput(until)
	input.Quantity = 0
	_, err = svc.CreateListing("donor-1", input)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	input = validInput(until)
	input.Quantity = -2
	_, err = svc.CreateListing("donor-1", input)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	input = validInput(until)
	input.Category = "Fusion"
	_, err = svc.CreateListing("donor-1", input)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	input = validInput(until)
	input.Unit = "crates"
	_, err = svc.CreateListing("donor-1", input)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// availableUntil before availableFrom
	from := until.Add(time.Hour)
	input = validInput(until)
	input.AvailableFrom = &from
	_, err = svc.CreateListing("donor-1", input)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateListing("donor-1", CreateListingInput{Title: "t", Description: "d", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateListing_Defaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	input := validInput(time.Now().Add(time.Hour))
	input.Category = ""
	input.Unit = ""
	listing, err := svc.CreateListing("donor-1", input)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, listing.Category)
	assert.Equal(t, models.UnitServings, listing.Unit)
	assert.Equal(t, models.ListingStatusAvailable, listing.Status)
	assert.False(t, listing.AvailableFrom.IsZero())
}

func TestDeleteListing_Ownership(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	err = svc.DeleteListing(listing.ListingID, "donor-2")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, svc.DeleteListing(listing.ListingID, "donor-1"))
}

// Scenario A: a second receiver cannot claim a listing with a pending claim
func TestCreateClaim_Exclusivity(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	c1, err := svc.CreateClaim(listing.ListingID, "ngo-1", "We can be there by 5pm", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPending, c1.Status)

	_, err = svc.CreateClaim(listing.ListingID, "ngo-2", "", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCreateClaim_WindowBoundary(t *testing.T) {
	svc, _, _ := newTestService(t)

	until := time.Now().Add(time.Hour)
	listing, err := svc.CreateListing("donor-1", validInput(until))
	require.NoError(t, err)

	svc.now = func() time.Time { return until }
	_, err = svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	svc.now = func() time.Time { return until.Add(-time.Second) }
	_, err = svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	assert.NoError(t, err)
}

// Scenario B: accept sets a 6-digit code and claims the listing
func TestAcceptClaim_Effect(t *testing.T) {
	svc, store, rec := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)

	accepted, err := svc.AcceptClaim(claim.ClaimID, "donor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.VerificationCode)
	assert.True(t, utils.ValidCodeFormat(*accepted.VerificationCode))

	got, err := store.GetListing(listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusClaimed, got.Status)
	require.NotNil(t, got.ClaimedBy)
	assert.Equal(t, "ngo-1", *got.ClaimedBy)

	// The accepted event carries the code and targets the donor
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventClaimAccepted, events[0].Name)
	assert.Equal(t, *accepted.VerificationCode, events[0].VerificationCode)
	assert.Equal(t, "donor-1", events[0].DonorID)
	assert.Equal(t, "City Shelter", events[0].Receiver.Organization)
}

func TestAcceptClaim_Authorization(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)

	_, err = svc.AcceptClaim(claim.ClaimID, "donor-2")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.AcceptClaim("CLM-missing", "donor-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRejectClaim_DefaultReason(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)

	rejected, err := svc.RejectClaim(claim.ClaimID, "donor-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, rejected.Status)
	assert.Equal(t, models.RejectReasonDonor, rejected.RejectedReason)

	// Rejected is terminal
	_, err = svc.AcceptClaim(claim.ClaimID, "donor-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

// Scenario C: wrong code leaves everything untouched, right code completes
func TestVerifyPickup_RoundTrip(t *testing.T) {
	svc, store, rec := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)
	accepted, err := svc.AcceptClaim(claim.ClaimID, "donor-1")
	require.NoError(t, err)
	code := *accepted.VerificationCode

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	_, err = svc.VerifyPickup(claim.ClaimID, "donor-1", wrong)
	require.ErrorIs(t, err, apperrors.ErrCodeMismatch)
	assert.NotContains(t, err.Error(), code, "mismatch error must not leak the code")

	unchanged, err := store.GetClaim(claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusAccepted, unchanged.Status)
	assert.Nil(t, unchanged.VerifiedAt)

	verified, err := svc.VerifyPickup(claim.ClaimID, "donor-1", code)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusCompleted, verified.Status)
	assert.NotNil(t, verified.VerifiedAt)
	assert.NotNil(t, verified.CompletedAt)

	gotListing, err := store.GetListing(listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusCompleted, gotListing.Status)

	// accepted + completed events; the completion event has no code but
	// records when the pickup was verified
	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventClaimCompleted, events[1].Name)
	assert.Empty(t, events[1].VerificationCode)
	require.NotNil(t, events[1].VerifiedAt)
	assert.Equal(t, *verified.VerifiedAt, *events[1].VerifiedAt)
}

func TestVerifyPickup_MalformedCode(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)
	_, err = svc.AcceptClaim(claim.ClaimID, "donor-1")
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		_, err = svc.VerifyPickup(claim.ClaimID, "donor-1", code)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "code %q", code)
	}
}

func TestVerifyPickup_RequiresAcceptedClaim(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)

	_, err = svc.VerifyPickup(claim.ClaimID, "donor-1", "123456")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = svc.VerifyPickup(claim.ClaimID, "donor-2", "123456")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCompleteClaim_NoCodeInvolved(t *testing.T) {
	svc, store, rec := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)
	_, err = svc.AcceptClaim(claim.ClaimID, "donor-1")
	require.NoError(t, err)

	completed, err := svc.CompleteClaim(claim.ClaimID, "donor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Nil(t, completed.VerifiedAt, "donor completion does not verify")

	gotListing, err := store.GetListing(listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusCompleted, gotListing.Status)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventClaimCompleted, events[1].Name)
	assert.Empty(t, events[1].VerificationCode)
	assert.Nil(t, events[1].VerifiedAt)
}

func TestGetClaim_Visibility(t *testing.T) {
	svc, _, _ := newTestService(t)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)

	_, err = svc.GetClaim(claim.ClaimID, "ngo-1")
	assert.NoError(t, err)
	_, err = svc.GetClaim(claim.ClaimID, "donor-1")
	assert.NoError(t, err)
	_, err = svc.GetClaim(claim.ClaimID, "ngo-2")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestNotifierFailure_DoesNotAffectTransition(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewLifecycleService(store, panickingNotifier{})
	_, err := store.CreateUser(&models.User{UserID: "donor-1", Name: "Maria", Email: "maria@example.com", Role: models.RoleDonor})
	require.NoError(t, err)

	listing, err := svc.CreateListing("donor-1", validInput(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	claim, err := svc.CreateClaim(listing.ListingID, "ngo-1", "", nil)
	require.NoError(t, err)

	accepted, err := svc.AcceptClaim(claim.ClaimID, "donor-1")
	require.NoError(t, err, "a failing notifier must not surface from accept")
	assert.Equal(t, models.ClaimStatusAccepted, accepted.Status)
}
