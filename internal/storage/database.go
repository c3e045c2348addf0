package storage

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rescueroute/rescueroute-backend/internal/apperrors"
	"github.com/rescueroute/rescueroute-backend/internal/models"
)

// DatabaseStore persists everything in PostgreSQL via GORM.
//
// Status transitions are conditional UPDATE ... WHERE status = ? statements
// checked through RowsAffected, inside a transaction when the effect spans
// records. That is what makes concurrent accepts and the sweeper race safe:
// the loser's WHERE clause matches nothing and the transaction rolls back.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given GORM connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// User operations

func (d *DatabaseStore) CreateUser(user *models.User) (*models.User, error) {
	if err := d.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (d *DatabaseStore) GetUser(userID string) (*models.User, error) {
	var user models.User
	err := d.db.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DatabaseStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := d.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Listing operations

func (d *DatabaseStore) CreateListing(listing *models.Listing) (*models.Listing, error) {
	listing.Status = models.ListingStatusAvailable
	if err := d.db.Create(listing).Error; err != nil {
		return nil, err
	}
	return listing, nil
}

func (d *DatabaseStore) GetListing(listingID string) (*models.Listing, error) {
	var listing models.Listing
	err := d.db.Where("listing_id = ?", listingID).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, listingID)
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (d *DatabaseStore) GetListingsByDonor(donorID string) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := d.db.Where("donor_id = ?", donorID).Order("created_at DESC").Find(&listings).Error
	return listings, err
}

func (d *DatabaseStore) GetAvailableListings(now time.Time) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := d.db.
		Where("status = ? AND available_until > ?", models.ListingStatusAvailable, now).
		Order("available_until ASC").
		Find(&listings).Error
	return listings, err
}

func (d *DatabaseStore) DeleteListing(listingID string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		err := tx.Where("listing_id = ?", listingID).First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, listingID)
		}
		if err != nil {
			return err
		}

		res := tx.Where("listing_id = ? AND status = ?", listingID, models.ListingStatusAvailable).
			Delete(&models.Listing{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: cannot delete a listing that is %s", apperrors.ErrInvalidState, listing.Status)
		}
		return nil
	})
}

// Claim operations

func (d *DatabaseStore) GetClaim(claimID string) (*models.Claim, error) {
	var claim models.Claim
	err := d.db.Where("claim_id = ?", claimID).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (d *DatabaseStore) GetClaimsByReceiver(receiverID string) ([]*models.Claim, error) {
	var claims []*models.Claim
	err := d.db.Where("receiver_id = ?", receiverID).Order("created_at DESC").Find(&claims).Error
	return claims, err
}

func (d *DatabaseStore) GetClaimsForDonor(donorID string) ([]*models.Claim, error) {
	var claims []*models.Claim
	err := d.db.
		Where("listing_id IN (?)", d.db.Model(&models.Listing{}).Select("listing_id").Where("donor_id = ?", donorID)).
		Order("created_at DESC").
		Find(&claims).Error
	return claims, err
}

func (d *DatabaseStore) CreateClaim(claim *models.Claim, now time.Time) (*models.Claim, error) {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		// Row-lock the listing so two concurrent claims serialize here
		var listing models.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("listing_id = ?", claim.ListingID).
			First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, claim.ListingID)
		}
		if err != nil {
			return err
		}

		if listing.Status != models.ListingStatusAvailable {
			return fmt.Errorf("%w: listing is not available for claiming", apperrors.ErrInvalidState)
		}
		if !now.Before(listing.AvailableUntil) {
			return fmt.Errorf("%w: listing has expired", apperrors.ErrInvalidState)
		}

		var active int64
		err = tx.Model(&models.Claim{}).
			Where("listing_id = ? AND status IN ?", claim.ListingID,
				[]string{models.ClaimStatusPending, models.ClaimStatusAccepted}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: listing already has a pending or accepted claim", apperrors.ErrInvalidState)
		}

		claim.Status = models.ClaimStatusPending
		return tx.Create(claim).Error
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (d *DatabaseStore) AcceptClaim(claimID, code string, now time.Time) (*models.Claim, error) {
	var accepted models.Claim
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var claim models.Claim
		err := tx.Where("claim_id = ?", claimID).First(&claim).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Claim{}).
			Where("claim_id = ? AND status = ?", claimID, models.ClaimStatusPending).
			Updates(map[string]interface{}{
				"status":            models.ClaimStatusAccepted,
				"verification_code": code,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: claim is not in pending status", apperrors.ErrInvalidState)
		}

		res = tx.Model(&models.Listing{}).
			Where("listing_id = ? AND status = ?", claim.ListingID, models.ListingStatusAvailable).
			Updates(map[string]interface{}{
				"status":     models.ListingStatusClaimed,
				"claimed_by": claim.ReceiverID,
				"claimed_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against the sweeper or another accept;
			// roll the claim update back with the transaction.
			return fmt.Errorf("%w: listing is not available", apperrors.ErrInvalidState)
		}

		err = tx.Model(&models.Claim{}).
			Where("listing_id = ? AND claim_id <> ? AND status = ?",
				claim.ListingID, claimID, models.ClaimStatusPending).
			Updates(map[string]interface{}{
				"status":          models.ClaimStatusRejected,
				"rejected_reason": models.RejectReasonSuperseded,
				"updated_at":      now,
			}).Error
		if err != nil {
			return err
		}

		return tx.Where("claim_id = ?", claimID).First(&accepted).Error
	})
	if err != nil {
		return nil, err
	}
	return &accepted, nil
}

func (d *DatabaseStore) RejectClaim(claimID, reason string, now time.Time) (*models.Claim, error) {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var claim models.Claim
		err := tx.Where("claim_id = ?", claimID).First(&claim).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Claim{}).
			Where("claim_id = ? AND status = ?", claimID, models.ClaimStatusPending).
			Updates(map[string]interface{}{
				"status":          models.ClaimStatusRejected,
				"rejected_reason": reason,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: claim is not in pending status", apperrors.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d.GetClaim(claimID)
}

func (d *DatabaseStore) CompleteClaim(claimID string, verified bool, now time.Time) (*models.Claim, error) {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var claim models.Claim
		err := tx.Where("claim_id = ?", claimID).First(&claim).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: claim %s", apperrors.ErrNotFound, claimID)
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":       models.ClaimStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}
		if verified {
			updates["verified_at"] = now
		}

		res := tx.Model(&models.Claim{}).
			Where("claim_id = ? AND status = ?", claimID, models.ClaimStatusAccepted).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: only accepted claims can be completed", apperrors.ErrInvalidState)
		}

		return tx.Model(&models.Listing{}).
			Where("listing_id = ?", claim.ListingID).
			Updates(map[string]interface{}{
				"status":     models.ListingStatusCompleted,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return d.GetClaim(claimID)
}

// Sweeper operations

func (d *DatabaseStore) ExpireListings(now time.Time) ([]string, error) {
	var expired []string
	err := d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Listing{}).
			Where("status = ? AND available_until < ?", models.ListingStatusAvailable, now).
			Pluck("listing_id", &expired).Error
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		return tx.Model(&models.Listing{}).
			Where("status = ? AND available_until < ?", models.ListingStatusAvailable, now).
			Updates(map[string]interface{}{
				"status":     models.ListingStatusExpired,
				"updated_at": now,
			}).Error
	})
	return expired, err
}

func (d *DatabaseStore) RejectExpiredListingClaims(reason string, now time.Time) (int64, error) {
	res := d.db.Model(&models.Claim{}).
		Where("status = ? AND listing_id IN (?)", models.ClaimStatusPending,
			d.db.Model(&models.Listing{}).Select("listing_id").Where("status = ?", models.ListingStatusExpired)).
		Updates(map[string]interface{}{
			"status":          models.ClaimStatusRejected,
			"rejected_reason": reason,
			"updated_at":      now,
		})
	return res.RowsAffected, res.Error
}

// Stats operations

func (d *DatabaseStore) GetPublicStats() (*models.PublicStats, error) {
	stats := &models.PublicStats{}

	if err := d.db.Model(&models.Listing{}).Count(&stats.TotalListings).Error; err != nil {
		return nil, err
	}
	if err := d.db.Model(&models.Claim{}).
		Where("status = ?", models.ClaimStatusCompleted).
		Count(&stats.TotalCompleted).Error; err != nil {
		return nil, err
	}

	var completedListings []*models.Listing
	if err := d.db.Where("status = ?", models.ListingStatusCompleted).
		Find(&completedListings).Error; err != nil {
		return nil, err
	}
	for _, listing := range completedListings {
		stats.TotalFoodSavedKg += foodSavedKg(listing.Quantity, listing.Unit)
		stats.MealsProvided += mealsProvided(listing.Quantity, listing.Unit)
	}
	stats.TotalFoodSavedKg = math.Round(stats.TotalFoodSavedKg*10) / 10

	var recent []*models.Claim
	if err := d.db.Where("status = ?", models.ClaimStatusCompleted).
		Order("completed_at DESC").Limit(10).Find(&recent).Error; err != nil {
		return nil, err
	}
	for _, claim := range recent {
		var listing models.Listing
		if err := d.db.Where("listing_id = ?", claim.ListingID).First(&listing).Error; err != nil {
			continue
		}
		donorName := "A donor"
		var donor models.User
		if err := d.db.Where("user_id = ?", listing.DonorID).First(&donor).Error; err == nil {
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
