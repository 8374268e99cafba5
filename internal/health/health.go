// Package health backs GET /healthz: store reachability and how long ago
// the maintainer last completed a sweep (SPEC_FULL.md §6 "Health"), carried
// over from the teacher's internal/health/health.go check-and-report shape
// (originally "is the IPTV provider and our own discover/lineup/guide
// surface reachable"), retargeted from an external provider check to the
// one dependency JellyStream's own process actually owns: its store.
package health

import (
	"context"
	"fmt"
	"time"
)

// StoreChecker is the narrow contract health needs from internal/store —
// just enough to confirm the database connection is alive and read the
// maintainer's bookkeeping.
type StoreChecker interface {
	Ping(ctx context.Context) error
	GetMaintainerLastRun(ctx context.Context) (*time.Time, error)
}

// StaleMaintainerAfter flags the maintainer as unhealthy once its last sweep
// is older than this — comfortably more than the 24h cadence plus 1h
// misfire grace (spec.md §4.7), so a merely-pending sweep never trips it.
const StaleMaintainerAfter = 26 * time.Hour

// CheckStore pings st and, if the maintainer has swept at least once,
// reports an error when that sweep is older than StaleMaintainerAfter. A
// nil last-run (process freshly started, maintainer hasn't fired yet) is
// not itself unhealthy.
func CheckStore(ctx context.Context, st StoreChecker) error {
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("health: store unreachable: %w", err)
	}
	lastRun, err := st.GetMaintainerLastRun(ctx)
	if err != nil {
		return fmt.Errorf("health: read maintainer last run: %w", err)
	}
	if lastRun == nil {
		return nil
	}
	if age := time.Since(*lastRun); age > StaleMaintainerAfter {
		return fmt.Errorf("health: maintainer last swept %s ago (> %s)", age.Round(time.Minute), StaleMaintainerAfter)
	}
	return nil
}
