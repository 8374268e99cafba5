package maintainer

import (
	"context"
	"testing"
	"time"

	"github.com/jellystream/jellystream/internal/store"
	"github.com/jellystream/jellystream/internal/store/storetest"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// recordingGenerate returns a GenerateFunc that records which channel ids
// it was called for and always "succeeds" with one entry created.
func recordingGenerate(calls *[]int64) GenerateFunc {
	return func(_ context.Context, channelID int64, _ int) (int, error) {
		*calls = append(*calls, channelID)
		return 1, nil
	}
}

// TestSweep_LowWaterThreshold implements spec.md §8 scenario S6: three
// channels at watermarks +24h, +72h, and null; low-water threshold 48h.
// Only C1 (+24h) and C3 (null) should be extended.
func TestSweep_LowWaterThreshold(t *testing.T) {
	st := storetest.New()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	w24 := now.Add(24 * time.Hour)
	w72 := now.Add(72 * time.Hour)

	st.Channels[1] = store.Channel{ID: 1, Enabled: true, ScheduleType: store.ScheduleGenreAuto, ScheduleGeneratedThrough: &w24}
	st.Channels[2] = store.Channel{ID: 2, Enabled: true, ScheduleType: store.ScheduleGenreAuto, ScheduleGeneratedThrough: &w72}
	st.Channels[3] = store.Channel{ID: 3, Enabled: true, ScheduleType: store.ScheduleGenreAuto}

	var calls []int64
	m := New(st, recordingGenerate(&calls))
	m.LowWaterHours = 48
	m.Now = fixedClock(now)

	m.Sweep(context.Background())

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 3 {
		t.Fatalf("expected channels [1 3] extended, got %v", calls)
	}

	lastRun, err := st.GetMaintainerLastRun(context.Background())
	if err != nil || lastRun == nil || !lastRun.Equal(now) {
		t.Fatalf("expected last run recorded as %v, got %v (err %v)", now, lastRun, err)
	}
}

func TestSweep_DisabledOrManualChannelsIgnored(t *testing.T) {
	st := storetest.New()
	now := time.Now()
	st.Channels[1] = store.Channel{ID: 1, Enabled: false, ScheduleType: store.ScheduleGenreAuto}
	st.Channels[2] = store.Channel{ID: 2, Enabled: true, ScheduleType: store.ScheduleManual}

	var calls []int64
	m := New(st, recordingGenerate(&calls))
	m.Now = fixedClock(now)
	m.Sweep(context.Background())

	if len(calls) != 0 {
		t.Fatalf("expected no channels extended, got %v", calls)
	}
}

func TestSweep_OneChannelFailureDoesNotAbortRun(t *testing.T) {
	st := storetest.New()
	now := time.Now()
	st.Channels[1] = store.Channel{ID: 1, Enabled: true, ScheduleType: store.ScheduleGenreAuto}
	st.Channels[2] = store.Channel{ID: 2, Enabled: true, ScheduleType: store.ScheduleGenreAuto}

	var calls []int64
	m := New(st, func(_ context.Context, channelID int64, _ int) (int, error) {
		calls = append(calls, channelID)
		if channelID == 1 {
			return 0, context.DeadlineExceeded
		}
		return 1, nil
	})
	m.Now = fixedClock(now)
	m.Sweep(context.Background())

	if len(calls) != 2 {
		t.Fatalf("expected both channels attempted despite channel 1 failing, got %v", calls)
	}
}

func TestCatchUpIfMissed_RunsWithinGraceWindow(t *testing.T) {
	st := storetest.New()
	// Fire hour is 02:00 UTC; "now" is 02:30, a half-hour past today's fire,
	// and the last run was yesterday — a missed fire still within grace.
	now := time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -1)
	if err := st.SetMaintainerLastRun(context.Background(), last); err != nil {
		t.Fatal(err)
	}

	var calls []int64
	m := New(st, recordingGenerate(&calls))
	m.Now = fixedClock(now)
	m.MisfireGrace = time.Hour

	if ran := m.catchUpIfMissed(context.Background()); !ran {
		t.Fatal("expected catch-up sweep to run within the grace window")
	}
}

func TestCatchUpIfMissed_SkipsOutsideGraceWindow(t *testing.T) {
	st := storetest.New()
	now := time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC) // 2h past fire, grace is 1h
	last := now.AddDate(0, 0, -1)
	if err := st.SetMaintainerLastRun(context.Background(), last); err != nil {
		t.Fatal(err)
	}

	var calls []int64
	m := New(st, recordingGenerate(&calls))
	m.Now = fixedClock(now)
	m.MisfireGrace = time.Hour

	if ran := m.catchUpIfMissed(context.Background()); ran {
		t.Fatal("expected no catch-up sweep outside the grace window")
	}
	if len(calls) != 0 {
		t.Fatalf("expected no generate calls, got %v", calls)
	}
}
