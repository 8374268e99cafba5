// Package store is the persistent-state layer: channels, their source
// bindings, collections, and schedule entries, held in sqlite with
// cascade-delete foreign keys (spec.md §3 "Ownership").
package store

import "time"

// ScheduleType controls whether a channel's timeline is hand-authored or
// filled automatically from its genre/collection sources.
type ScheduleType string

const (
	ScheduleManual    ScheduleType = "manual"
	ScheduleGenreAuto ScheduleType = "genre_auto"
)

// CollectionType narrows how a bound library's items should be interpreted.
type CollectionType string

const (
	CollectionMovies  CollectionType = "movies"
	CollectionTVShows CollectionType = "tvshows"
	CollectionMixed   CollectionType = "mixed"
)

// ItemType enumerates the external media-server entity kinds that flow
// through the pool builder. Only Movie and Episode ever reach a schedule
// entry; Series/Season/Collection exist only transiently during expansion
// (spec.md §3 invariant 5).
type ItemType string

const (
	ItemMovie      ItemType = "Movie"
	ItemSeries     ItemType = "Series"
	ItemSeason     ItemType = "Season"
	ItemEpisode    ItemType = "Episode"
	ItemCollection ItemType = "Collection"
)

// ContentType scopes a genre filter to movies, episodes, or both.
type ContentType string

const (
	ContentMovie   ContentType = "movie"
	ContentEpisode ContentType = "episode"
	ContentBoth    ContentType = "both"
)

// FilterType marks a genre filter as additive or subtractive.
type FilterType string

const (
	FilterInclude FilterType = "include"
	FilterExclude FilterType = "exclude"
)

// Channel is a logical virtual TV channel (spec.md §3 "Channel").
type Channel struct {
	ID                       int64
	Name                     string
	Number                   string // free-form, e.g. "100.1"; empty if unset
	Enabled                  bool
	ScheduleType             ScheduleType
	ScheduleGeneratedThrough *time.Time // nil until the generator has run
}

// LibraryBinding ties a channel to one external library.
type LibraryBinding struct {
	ID             int64
	ChannelID      int64
	LibraryID      string // external library id
	LibraryName    string // cached display name
	CollectionType CollectionType
}

// GenreFilter narrows a channel's pool to/away from a genre.
type GenreFilter struct {
	ID          int64
	ChannelID   int64
	Genre       string
	ContentType ContentType
	FilterType  FilterType
}

// CollectionSource binds a channel to a local curated Collection.
type CollectionSource struct {
	ID           int64
	ChannelID    int64
	CollectionID int64
}

// Collection is a named, ordered grouping of items, optionally mirroring an
// external boxset.
type Collection struct {
	ID         int64
	Name       string
	ExternalID string // external boxset id; empty if purely local
}

// CollectionItem is one entry of a Collection, self-contained enough to be
// scheduled directly without a further server round-trip (spec.md §3).
type CollectionItem struct {
	ID              int64
	CollectionID    int64
	SortOrder       int
	ExternalItemID  string
	ItemType        ItemType
	Title           string
	SeriesName      string
	SeasonNumber    *int
	EpisodeNumber   *int
	LibraryID       string
	DurationSeconds int
	GenresJSON      string // JSON array of strings
	Description     string
	ContentRating    string
	AirDate          string // free-text, as reported by the media server
	FilePath         string
	ThumbnailPath    string
}

// ScheduleEntry is one programme slot on one channel (spec.md §3).
type ScheduleEntry struct {
	ID              int64
	ChannelID       int64
	Title           string
	SeriesName      string
	SeasonNumber    *int
	EpisodeNumber   *int
	ExternalItemID  string
	LibraryID       string
	ItemType        ItemType
	GenresJSON      string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int
	FilePath        string
	Description     string
	ContentRating   string
	ThumbnailPath   string
	AirDate         string
}
