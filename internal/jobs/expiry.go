package jobs

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
)

// DefaultSweepInterval keeps staleness well under typical listing windows
const DefaultSweepInterval = 5 * time.Minute

var (
	listingsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescueroute_listings_expired_total",
		Help: "Listings transitioned to EXPIRED by the sweeper",
	})
	claimsCascaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescueroute_claims_expiry_rejected_total",
		Help: "Pending claims rejected because their listing expired",
	})
	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rescueroute_sweep_errors_total",
		Help: "Sweep runs that hit an error",
	})
)

// ExpiryJob transitions overdue listings to EXPIRED on a fixed interval and
// cascades rejection into their pending claims. Errors are logged and the
// next tick retries; a failed sweep never takes the process down.
type ExpiryJob struct {
	store    storage.Store
	interval time.Duration
	stop     chan struct{}
}

// NewExpiryJob creates the sweeper; interval <= 0 uses the default
func NewExpiryJob(store storage.Store, interval time.Duration) *ExpiryJob {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ExpiryJob{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop in its own goroutine
func (j *ExpiryJob) Start() {
	log.Printf("⏰ Expiry job started - running every %v", j.interval)

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.Sweep(time.Now())
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop
func (j *ExpiryJob) Stop() {
	close(j.stop)
	log.Println("⏰ Expiry job stopped")
}

// Sweep performs one expiry pass. Both steps are idempotent: the expiry
// selection no longer matches already-EXPIRED listings, and the cascade only
// touches claims still PENDING, so a partially failed run is safe to re-run.
func (j *ExpiryJob) Sweep(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			sweepErrors.Inc()
			log.Printf("❌ Panic in expiry sweep: %v", r)
		}
	}()

	expired, err := j.store.ExpireListings(now)
	if err != nil {
		sweepErrors.Inc()
		log.Printf("❌ Error expiring listings: %v", err)
		return
	}
	if len(expired) > 0 {
		log.Printf("🕒 Found %d expired listing(s). Marking as EXPIRED...", len(expired))
		listingsExpired.Add(float64(len(expired)))
	}

	// The cascade keys off listing status, not this run's output, so claims
	// stranded by an earlier interrupted sweep are still caught here.
	rejected, err := j.store.RejectExpiredListingClaims(models.RejectReasonExpired, now)
	if err != nil {
		sweepErrors.Inc()
		log.Printf("❌ Error rejecting claims for expired listings: %v", err)
		return
	}
	claimsCascaded.Add(float64(rejected))

	if len(expired) > 0 || rejected > 0 {
		log.Printf("✅ Expired %d listing(s), rejected %d pending claim(s)", len(expired), rejected)
	}
}
