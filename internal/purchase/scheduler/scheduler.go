// Package scheduler runs periodic catch-up syncs so mailboxes stay current
// even when push notifications are delayed or dropped.
package scheduler

import (
	"context"
	"log"
	"time"

	authrepo "receiptradar-backend/internal/auth/repository"
	"receiptradar-backend/internal/purchase/usecase"
)

// SyncScheduler periodically runs a full sync for every sync-enabled user.
type SyncScheduler struct {
	userRepo        authrepo.UserRepository
	purchaseUsecase usecase.PurchaseUsecase
	interval        time.Duration
	stopChan        chan struct{}
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(userRepo authrepo.UserRepository, purchaseUsecase usecase.PurchaseUsecase, intervalMinutes int) *SyncScheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	return &SyncScheduler{
		userRepo:        userRepo,
		purchaseUsecase: purchaseUsecase,
		interval:        time.Duration(intervalMinutes) * time.Minute,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	log.Printf("[SyncScheduler] Starting catch-up sync scheduler (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.runAll()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runAll()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

// runAll syncs every sync-enabled user sequentially. One user's failure
// never blocks the rest.
func (s *SyncScheduler) runAll() {
	users, err := s.userRepo.ListSyncEnabled()
	if err != nil {
		log.Printf("[SyncScheduler] Error listing sync-enabled users: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}

	log.Printf("[SyncScheduler] Running catch-up sync for %d users", len(users))
	for _, user := range users {
		report, err := s.purchaseUsecase.FullSync(context.Background(), user.ID, "")
		if err != nil {
			log.Printf("[SyncScheduler] Full sync failed for user %s: %v", user.ID, err)
			continue
		}
		if report.Candidates > 0 {
			log.Printf("[SyncScheduler] User %s: %d candidates, %d processed, %d failed",
				user.ID, report.Candidates, report.Processed, report.Failed)
		}
	}
}
