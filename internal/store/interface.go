package store

import (
	"context"
	"time"
)

// Store is the persistence contract consumed by the pool builder, the
// schedule generator, the stream proxy, the maintainer, and the playlist
// emitters. A real *SQLStore backs it in production; tests substitute an
// in-memory fake (spec.md §9 "Module-level singletons → injected
// dependencies").
type Store interface {
	GetChannel(ctx context.Context, id int64) (*Channel, error)
	ListEnabledChannels(ctx context.Context) ([]Channel, error)
	ListGenreAutoChannels(ctx context.Context) ([]Channel, error)

	ListLibraryBindings(ctx context.Context, channelID int64) ([]LibraryBinding, error)
	ListGenreFilters(ctx context.Context, channelID int64) ([]GenreFilter, error)
	ListCollectionSources(ctx context.Context, channelID int64) ([]CollectionSource, error)

	GetCollection(ctx context.Context, id int64) (*Collection, error)
	ListCollectionItems(ctx context.Context, collectionID int64) ([]CollectionItem, error)

	// CurrentScheduleEntry returns the entry with start_time <= at < end_time
	// for channelID, or nil if the schedule has a gap at that instant.
	CurrentScheduleEntry(ctx context.Context, channelID int64, at time.Time) (*ScheduleEntry, error)
	// ScheduleEntriesInWindow returns entries for channelID whose
	// [start_time, end_time) overlaps [from, to), ordered by start_time.
	ScheduleEntriesInWindow(ctx context.Context, channelID int64, from, to time.Time) ([]ScheduleEntry, error)
	GetScheduleEntry(ctx context.Context, id int64) (*ScheduleEntry, error)

	// InsertScheduleEntries persists entries for channelID in one
	// transaction and, if len(entries) > 0, advances the channel's
	// schedule_generated_through to newWatermark (spec.md §4.3 step 6).
	InsertScheduleEntries(ctx context.Context, channelID int64, entries []ScheduleEntry, newWatermark time.Time) error
	// DeleteScheduleEntries removes every entry for channelID and clears its
	// watermark (spec.md §4.3 "reset-and-regenerate variant").
	DeleteScheduleEntries(ctx context.Context, channelID int64) error

	GetMaintainerLastRun(ctx context.Context) (*time.Time, error)
	SetMaintainerLastRun(ctx context.Context, at time.Time) error
}
