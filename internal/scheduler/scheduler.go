// Package scheduler fills a channel's timeline forward from its current
// watermark by drawing a shuffled, non-immediately-repeating sequence from
// the channel's candidate pool (spec.md §4.3). Per-channel generation is
// serialized with a mutex registry so two overlapping calls for the same
// channel never interleave writes — grounded on the teacher's
// supervisor restart-loop discipline of never running two instances of the
// same unit concurrently.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jellystream/jellystream/internal/metrics"
	"github.com/jellystream/jellystream/internal/pool"
	"github.com/jellystream/jellystream/internal/sidecar"
	"github.com/jellystream/jellystream/internal/store"
)

const minDurationSeconds = 30

// channelLocks serializes generate() calls per channel id (resolves spec.md
// §9's concurrent-generation race as a DESIGN.md decision: per-channel
// locking rather than a single global lock or optimistic retry).
var channelLocks sync.Map // map[int64]*sync.Mutex

func lockFor(channelID int64) *sync.Mutex {
	v, _ := channelLocks.LoadOrStore(channelID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Clock abstracts time.Now so tests can control "now" without sleeping.
type Clock func() time.Time

// Scheduler generates schedule entries for genre_auto channels.
type Scheduler struct {
	Store  store.Store
	Pool   func(ctx context.Context, channelID int64) ([]pool.Candidate, error)
	Mapper sidecar.PathMapper
	Now    Clock
}

// New builds a Scheduler that draws candidates from poolFn (the daemon passes
// a closure over pool.Build); callers needing a different pool source (tests)
// can also set s.Pool after construction.
func New(st store.Store, poolFn func(ctx context.Context, channelID int64) ([]pool.Candidate, error), mapper sidecar.PathMapper) *Scheduler {
	return &Scheduler{Store: st, Pool: poolFn, Mapper: mapper, Now: time.Now}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Generate implements spec.md §4.3: fills channelID's timeline from its
// watermark (or now) through `days` further, persisting new entries in one
// transaction. Returns the count of entries created.
func (s *Scheduler) Generate(ctx context.Context, channelID int64, days int) (int, error) {
	mu := lockFor(channelID)
	mu.Lock()
	defer mu.Unlock()

	start := s.now()
	timer := metrics.ScheduleGenerationDuration
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	ch, err := s.Store.GetChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if ch == nil {
		return 0, fmt.Errorf("scheduler: channel %d not found", channelID)
	}

	candidates, err := s.Pool(ctx, channelID)
	if err != nil {
		return 0, err
	}

	cursor := s.now().UTC()
	if ch.ScheduleGeneratedThrough != nil && ch.ScheduleGeneratedThrough.After(cursor) {
		cursor = *ch.ScheduleGeneratedThrough
	}
	fillUntil := cursor.AddDate(0, 0, days)

	if len(candidates) == 0 {
		return 0, nil // legal: empty pool yields zero scheduled entries
	}

	working := shuffled(candidates)
	idx := 0
	skippedInRow := 0

	var entries []store.ScheduleEntry
	for cursor.Before(fillUntil) {
		if idx >= len(working) {
			working = shuffled(candidates)
			idx = 0
		}
		c := working[idx]
		idx++

		if c.DurationSecs < minDurationSeconds {
			skippedInRow++
			if skippedInRow > len(candidates) {
				break // every candidate is too short; no further progress possible
			}
			continue
		}
		skippedInRow = 0

		if !c.PreEnriched {
			c = s.enrich(c)
		}

		duration := time.Duration(c.DurationSecs * float64(time.Second))
		end := cursor.Add(duration)

		entries = append(entries, candidateToEntry(c, cursor, end))
		cursor = end
	}

	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.Store.InsertScheduleEntries(ctx, channelID, entries, cursor); err != nil {
		return 0, err
	}
	metrics.ScheduleEntriesCreated.Add(float64(len(entries)))
	return len(entries), nil
}

// Reset deletes channelID's existing entries and clears its watermark, then
// generates `days` worth starting from now (spec.md §4.3 "Reset-and-regenerate
// variant").
func (s *Scheduler) Reset(ctx context.Context, channelID int64, days int) (int, error) {
	if err := s.Store.DeleteScheduleEntries(ctx, channelID); err != nil {
		return 0, err
	}
	return s.Generate(ctx, channelID, days)
}

func (s *Scheduler) enrich(c pool.Candidate) pool.Candidate {
	mapped := s.Mapper.Map(c.FilePath)
	kind := sidecar.Episode
	switch c.ItemType {
	case store.ContentMovie:
		kind = sidecar.Movie
	}
	cand := sidecar.Candidate{
		Kind:          kind,
		Path:          mapped,
		Description:   c.Description,
		ContentRating: c.ContentRating,
		AirDate:       c.AirDate,
		ThumbnailPath: c.ThumbnailPath,
	}
	if c.SeasonNumber != nil {
		cand.SeasonNumber = *c.SeasonNumber
	}
	enriched, _ := sidecar.Enrich(cand)

	c.FilePath = mapped
	c.Description = enriched.Description
	c.ContentRating = enriched.ContentRating
	c.AirDate = enriched.AirDate
	c.ThumbnailPath = enriched.ThumbnailPath
	return c
}

func candidateToEntry(c pool.Candidate, start, end time.Time) store.ScheduleEntry {
	itemType := store.ItemMovie
	if c.ItemType == store.ContentEpisode {
		itemType = store.ItemEpisode
	}
	genresJSON := "[]"
	if b, err := json.Marshal(c.Genres); err == nil {
		genresJSON = string(b)
	}
	return store.ScheduleEntry{
		Title:           c.Title,
		SeriesName:      c.SeriesName,
		SeasonNumber:    c.SeasonNumber,
		EpisodeNumber:   c.EpisodeNum,
		ExternalItemID:  c.ExternalID,
		LibraryID:       c.LibraryID,
		ItemType:        itemType,
		GenresJSON:      genresJSON,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: int(end.Sub(start).Seconds()),
		FilePath:        c.FilePath,
		Description:     c.Description,
		ContentRating:   c.ContentRating,
		ThumbnailPath:   c.ThumbnailPath,
		AirDate:         c.AirDate,
	}
}

// shuffled returns a new slice containing in's elements in a uniformly
// random order (spec.md §4.3 step 4). math/rand/v2 is fine here: the order
// need not be cryptographically strong (spec.md §5).
func shuffled(in []pool.Candidate) []pool.Candidate {
	out := make([]pool.Candidate, len(in))
	copy(out, in)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
