// Package maintainer is the background task that extends every enabled
// genre_auto channel's schedule before its watermark runs dry (spec.md
// §4.7). Grounded on the teacher's internal/supervisor long-lived-loop
// discipline (one goroutine, cooperative cancellation via context,
// individual-unit failures logged without aborting the run) and the
// TTL/last-seen bookkeeping pattern in internal/indexer/smoketest_cache.go,
// retargeted from "was this host checked recently enough" to "does this
// channel's watermark still clear the low-water mark."
package maintainer

import (
	"context"
	"log"
	"time"

	"github.com/jellystream/jellystream/internal/metrics"
	"github.com/jellystream/jellystream/internal/store"
)

const (
	defaultFireHour     = 2 // 02:00 UTC, spec.md §4.7 default
	defaultLowWaterHrs  = 48
	defaultExtendDays   = 7
	defaultMisfireGrace = 1 * time.Hour
)

// GenerateFunc is the one *scheduler.Scheduler method the maintainer needs;
// a func type so tests can substitute a recording fake (spec.md §9
// "injected dependencies").
type GenerateFunc func(ctx context.Context, channelID int64, days int) (int, error)

// Maintainer runs Sweep once per day at FireHour (UTC), extending every
// enabled genre_auto channel whose watermark is within LowWaterHours of now.
type Maintainer struct {
	Store    store.Store
	Generate GenerateFunc

	FireHour      int // 0-23 UTC; 0 value uses defaultFireHour via New
	LowWaterHours int
	ExtendDays    int
	MisfireGrace  time.Duration

	Now func() time.Time
}

// New builds a Maintainer with spec.md §4.7's defaults (02:00 UTC, 48h low
// water, 7-day extension, 1h misfire grace); override fields afterward
// (e.g. from config.Config) before calling Run.
func New(st store.Store, generate GenerateFunc) *Maintainer {
	return &Maintainer{
		Store:         st,
		Generate:      generate,
		FireHour:      defaultFireHour,
		LowWaterHours: defaultLowWaterHrs,
		ExtendDays:    defaultExtendDays,
		MisfireGrace:  defaultMisfireGrace,
		Now:           time.Now,
	}
}

func (m *Maintainer) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Run blocks, firing Sweep once per day at FireHour UTC until ctx is
// cancelled. On startup it performs misfire catch-up: if the last recorded
// sweep predates today's (or yesterday's) fire instant and we are still
// within MisfireGrace of that instant, it sweeps immediately instead of
// waiting for the next scheduled fire (spec.md §4.7 "Misfires ... allowed
// up to a 1-hour grace window after restart, then rescheduled normally").
func (m *Maintainer) Run(ctx context.Context) {
	if m.catchUpIfMissed(ctx) {
		// Sweep already ran for "today's" slot; proceed to the next day.
	}
	for {
		next := m.nextFireTime()
		if !sleepUntil(ctx, m.now(), next) {
			return
		}
		m.Sweep(ctx)
	}
}

func (m *Maintainer) catchUpIfMissed(ctx context.Context) bool {
	lastRun, err := m.Store.GetMaintainerLastRun(ctx)
	if err != nil {
		log.Printf("maintainer: read last run: %v", err)
		return false
	}
	if lastRun == nil {
		// Never run before; treat as a missed fire and sweep immediately.
		m.Sweep(ctx)
		return true
	}

	missed := m.mostRecentFireInstant()
	grace := m.MisfireGrace
	if grace <= 0 {
		grace = defaultMisfireGrace
	}
	if lastRun.Before(missed) && m.now().Before(missed.Add(grace)) {
		m.Sweep(ctx)
		return true
	}
	return false
}

// mostRecentFireInstant returns the latest FireHour:00 UTC instant that is
// not after now.
func (m *Maintainer) mostRecentFireInstant() time.Time {
	now := m.now().UTC()
	hour := m.fireHour()
	todays := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if todays.After(now) {
		return todays.AddDate(0, 0, -1)
	}
	return todays
}

func (m *Maintainer) nextFireTime() time.Time {
	now := m.now().UTC()
	hour := m.fireHour()
	todays := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !todays.After(now) {
		return todays.AddDate(0, 0, 1)
	}
	return todays
}

func (m *Maintainer) fireHour() int {
	if m.FireHour < 0 || m.FireHour > 23 {
		return defaultFireHour
	}
	return m.FireHour
}

func (m *Maintainer) lowWater() time.Duration {
	h := m.LowWaterHours
	if h <= 0 {
		h = defaultLowWaterHrs
	}
	return time.Duration(h) * time.Hour
}

func (m *Maintainer) extendDays() int {
	if m.ExtendDays <= 0 {
		return defaultExtendDays
	}
	return m.ExtendDays
}

// Sweep enumerates enabled genre_auto channels and extends every one whose
// watermark is null or within LowWaterHours of now, recording per-channel
// outcomes; a single channel's failure does not abort the run (spec.md
// §4.7 step 3).
func (m *Maintainer) Sweep(ctx context.Context) {
	now := m.now()
	channels, err := m.Store.ListGenreAutoChannels(ctx)
	if err != nil {
		log.Printf("maintainer: list genre_auto channels: %v", err)
		return
	}

	threshold := now.Add(m.lowWater())
	for _, ch := range channels {
		if ch.ScheduleGeneratedThrough != nil && ch.ScheduleGeneratedThrough.After(threshold) {
			metrics.MaintainerSweeps.WithLabelValues("skipped").Inc()
			continue
		}
		if _, err := m.Generate(ctx, ch.ID, m.extendDays()); err != nil {
			log.Printf("maintainer: channel %d: generate: %v", ch.ID, err)
			metrics.MaintainerSweeps.WithLabelValues("failed").Inc()
			continue
		}
		metrics.MaintainerSweeps.WithLabelValues("extended").Inc()
	}

	if err := m.Store.SetMaintainerLastRun(ctx, now); err != nil {
		log.Printf("maintainer: record last run: %v", err)
	}
}

// sleepUntil blocks until instant or ctx cancellation, reporting false in
// the latter case.
func sleepUntil(ctx context.Context, now, instant time.Time) bool {
	d := instant.Sub(now)
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
