// Package pool builds the candidate content pool a channel draws its
// schedule from: one query per include-filter genre group against a
// channel's bound libraries, plus the items of its bound collections
// (Series/Season items expanded into their episodes; nested collections are
// not expanded), deduplicated and filtered as spec.md §4.2 describes.
// Grounded on the teacher's paginated fetch-and-classify shape in
// internal/indexer/player_api.go and the map-based dedup/classify style in
// internal/catalog/vod_split.go.
package pool

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/store"
)

// Candidate is one schedulable programme: a Movie or an Episode, pulled
// either from a library binding or from a bound collection.
type Candidate struct {
	ExternalID   string
	Title        string
	ItemType     store.ContentType // ContentMovie or ContentEpisode
	DurationSecs float64
	Genres       []string
	LibraryID    string

	SeriesName   string
	SeasonNumber *int
	EpisodeNum   *int

	// FilePath is set when the item's on-disk path is already known (both
	// library and collection items carry Path from the media server).
	FilePath string

	// PreEnriched marks items sourced from a collection: the caller already
	// curated them, so the scheduler skips NFO/thumbnail lookup (spec.md
	// §4.2 step 2).
	PreEnriched bool

	Description   string
	ContentRating string
	AirDate       string
	ThumbnailPath string
}

const minDurationSeconds = 300_000_000.0 / 10_000_000.0 // 30s, spec.md §4.2 step 1

const maxCollectionDepth = 3 // spec.md §4.2 step 2, "maximum depth 3"

// Build assembles the full candidate pool for a channel: library pool ∪
// collection pool, deduplicated by external id (first occurrence wins), then
// with the channel's exclude-genre set subtracted. An empty result is legal.
func Build(ctx context.Context, st store.Store, jf jellyfin.Client, channelID int64) ([]Candidate, error) {
	bindings, err := st.ListLibraryBindings(ctx, channelID)
	if err != nil {
		return nil, err
	}
	filters, err := st.ListGenreFilters(ctx, channelID)
	if err != nil {
		return nil, err
	}
	sources, err := st.ListCollectionSources(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var includes, excludes []store.GenreFilter
	for _, f := range filters {
		switch f.FilterType {
		case store.FilterInclude:
			includes = append(includes, f)
		case store.FilterExclude:
			excludes = append(excludes, f)
		}
	}

	var combined []Candidate
	combined = append(combined, buildLibraryPool(ctx, jf, bindings, includes)...)
	combined = append(combined, buildCollectionPool(ctx, st, jf, sources, includes)...)

	deduped := dedupeByExternalID(combined)
	return subtractExcludes(deduped, excludes), nil
}

// buildLibraryPool implements spec.md §4.2 step 1.
func buildLibraryPool(ctx context.Context, jf jellyfin.Client, bindings []store.LibraryBinding, includes []store.GenreFilter) []Candidate {
	var out []Candidate
	for _, b := range bindings {
		groups := genreGroupsByContentType(includes)
		if len(groups) == 0 {
			items, err := jf.QueryAllItems(ctx, b.LibraryID, []string{"Movie", "Episode"})
			if err != nil {
				log.Printf("pool: library %s: query all items: %v", b.LibraryID, err)
				continue
			}
			out = append(out, itemsToCandidates(items, b.LibraryID, false)...)
			continue
		}
		for contentType, genres := range groups {
			items, err := jf.QueryItemsByGenres(ctx, b.LibraryID, itemTypesFor(contentType), genres)
			if err != nil {
				log.Printf("pool: library %s: query by genres %v: %v", b.LibraryID, genres, err)
				continue
			}
			out = append(out, itemsToCandidates(items, b.LibraryID, false)...)
		}
	}
	return out
}

// genreGroupsByContentType groups include filters by content type so one
// query is issued per group (spec.md §4.2 step 1).
func genreGroupsByContentType(includes []store.GenreFilter) map[store.ContentType][]string {
	if len(includes) == 0 {
		return nil
	}
	groups := map[store.ContentType][]string{}
	for _, f := range includes {
		groups[f.ContentType] = append(groups[f.ContentType], f.Genre)
	}
	return groups
}

func itemTypesFor(ct store.ContentType) []string {
	switch ct {
	case store.ContentMovie:
		return []string{"Movie"}
	case store.ContentEpisode:
		return []string{"Episode"}
	default:
		return []string{"Movie", "Episode"}
	}
}

func itemsToCandidates(items []jellyfin.Item, libraryID string, preEnriched bool) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		c, ok := itemToCandidate(it, libraryID, preEnriched)
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func itemToCandidate(it jellyfin.Item, libraryID string, preEnriched bool) (Candidate, bool) {
	secs := float64(it.RunTimeTicks) / 10_000_000.0
	if it.RunTimeTicks > 0 && secs < minDurationSeconds {
		return Candidate{}, false
	}
	itemType := store.ContentMovie
	if it.Type == "Episode" {
		itemType = store.ContentEpisode
	}
	return Candidate{
		ExternalID:    it.ID,
		Title:         it.Name,
		ItemType:      itemType,
		DurationSecs:  secs,
		Genres:        it.Genres,
		LibraryID:     libraryID,
		SeriesName:    it.SeriesName,
		SeasonNumber:  it.ParentIndexNum,
		EpisodeNum:    it.IndexNum,
		FilePath:      it.Path,
		PreEnriched:   preEnriched,
		Description:   it.Overview,
		ContentRating: it.OfficialRating,
		AirDate:       it.PremiereDate,
	}, true
}

// buildCollectionPool implements spec.md §4.2 step 2.
func buildCollectionPool(ctx context.Context, st store.Store, jf jellyfin.Client, sources []store.CollectionSource, includes []store.GenreFilter) []Candidate {
	includeGenres := unionGenres(includes)
	var out []Candidate
	for _, src := range sources {
		items, err := st.ListCollectionItems(ctx, src.CollectionID)
		if err != nil {
			log.Printf("pool: collection %d: list items: %v", src.CollectionID, err)
			continue
		}
		expanded := expandCollectionItems(ctx, jf, items, 0)
		for _, c := range expanded {
			if passesLenientInclude(c, includeGenres) {
				out = append(out, c)
			}
		}
	}
	return out
}

func unionGenres(includes []store.GenreFilter) map[string]bool {
	set := map[string]bool{}
	for _, f := range includes {
		set[f.Genre] = true
	}
	return set
}

// passesLenientInclude implements spec.md §4.2 step 2's lenient rule: no
// include filters configured, or the candidate has no genres, both pass;
// otherwise the candidate's genres must intersect the include set.
func passesLenientInclude(c Candidate, includeGenres map[string]bool) bool {
	if len(includeGenres) == 0 || len(c.Genres) == 0 {
		return true
	}
	for _, g := range c.Genres {
		if includeGenres[g] {
			return true
		}
	}
	return false
}

// expandCollectionItems turns collection items into candidates: Movie and
// Episode items directly, Series/Season items via their descendant episodes.
// Collection items are skipped and nothing recurses, so depth stays at the
// caller's value; it is only compared against maxCollectionDepth.
func expandCollectionItems(ctx context.Context, jf jellyfin.Client, items []store.CollectionItem, depth int) []Candidate {
	if depth > maxCollectionDepth {
		return nil
	}
	var out []Candidate
	for _, it := range items {
		switch it.ItemType {
		case store.ItemMovie, store.ItemEpisode:
			if c, ok := collectionItemToCandidate(it); ok {
				out = append(out, c)
			}
		case store.ItemSeries, store.ItemSeason:
			episodes, err := jf.QueryDescendantEpisodes(ctx, it.ExternalItemID)
			if err != nil {
				log.Printf("pool: collection item %s: query descendants: %v", it.ExternalItemID, err)
				continue
			}
			out = append(out, itemsToCandidates(episodes, it.LibraryID, true)...)
		case store.ItemCollection:
			// A nested collection reference is skipped: its items are not
			// fetched and it contributes no candidates.
			continue
		}
	}
	return out
}

func collectionItemToCandidate(it store.CollectionItem) (Candidate, bool) {
	secs := float64(it.DurationSeconds)
	if it.DurationSeconds > 0 && secs < minDurationSeconds {
		return Candidate{}, false
	}
	itemType := store.ContentMovie
	if it.ItemType == store.ItemEpisode {
		itemType = store.ContentEpisode
	}
	var genres []string
	if it.GenresJSON != "" {
		_ = json.Unmarshal([]byte(it.GenresJSON), &genres)
	}
	return Candidate{
		ExternalID:    it.ExternalItemID,
		Title:         it.Title,
		ItemType:      itemType,
		DurationSecs:  secs,
		Genres:        genres,
		LibraryID:     it.LibraryID,
		SeriesName:    it.SeriesName,
		SeasonNumber:  it.SeasonNumber,
		EpisodeNum:    it.EpisodeNumber,
		FilePath:      it.FilePath,
		PreEnriched:   true,
		Description:   it.Description,
		ContentRating: it.ContentRating,
		AirDate:       it.AirDate,
		ThumbnailPath: it.ThumbnailPath,
	}, true
}

// dedupeByExternalID keeps the first occurrence of each external id,
// preserving relative order (spec.md §4.2 step 3).
func dedupeByExternalID(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if seen[c.ExternalID] {
			continue
		}
		seen[c.ExternalID] = true
		out = append(out, c)
	}
	return out
}

// subtractExcludes drops any candidate whose genres intersect the exclude
// set (spec.md §4.2 step 4).
func subtractExcludes(in []Candidate, excludes []store.GenreFilter) []Candidate {
	if len(excludes) == 0 {
		return in
	}
	excludeSet := make(map[string]bool, len(excludes))
	for _, f := range excludes {
		excludeSet[f.Genre] = true
	}
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		excluded := false
		for _, g := range c.Genres {
			if excludeSet[g] {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, c)
		}
	}
	return out
}
