/*
scheduler.go - Automated year provisioning scheduler

PURPOSE:
  Periodically ensures every active employee has ledger rows for the
  current year (and, inside the configurable look-ahead window, the next
  year), so January 1st never finds anyone without an entitlement.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Provisioning is idempotent, so re-checking is always safe
  - Near year end, provisions the upcoming year ahead of time

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - LookAhead:     How far before Jan 1 to provision next year (default: 14 days)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRolloverScheduler(rollover)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRollover endpoint (manual provisioning)
  - leave/rollover.go: The provisioning logic itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// RolloverScheduler handles automated year provisioning.
type RolloverScheduler struct {
	Rollover      *leave.Rollover
	CheckInterval time.Duration
	LookAhead     time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRolloverScheduler creates a new scheduler.
func NewRolloverScheduler(rollover *leave.Rollover) *RolloverScheduler {
	return &RolloverScheduler{
		Rollover:      rollover,
		CheckInterval: 1 * time.Hour,
		LookAhead:     14 * 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RolloverScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProvision()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProvision()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RolloverScheduler) checkAndProvision() {
	ctx := context.Background()
	now := time.Now().UTC()

	years := []int{now.Year()}
	nextJan1 := time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if nextJan1.Sub(now) <= rs.LookAhead {
		years = append(years, now.Year()+1)
	}

	for _, year := range years {
		done, err := rs.Rollover.ProvisionAll(ctx, year)
		if err != nil {
			log.Printf("[Scheduler] Provisioning for %d finished with errors (%d employees done): %v", year, done, err)
			continue
		}
		if done > 0 {
			log.Printf("[Scheduler] Provisioned %d employees for %d", done, year)
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RolloverScheduler) RunNow() {
	rs.checkAndProvision()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RolloverScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
