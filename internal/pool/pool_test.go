package pool

import (
	"context"
	"testing"

	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/store"
	"github.com/jellystream/jellystream/internal/store/storetest"
)

// fakeClient is a minimal jellyfin.Client test double keyed by library id.
type fakeClient struct {
	byLibrary    map[string][]jellyfin.Item
	byGenreQuery map[string][]jellyfin.Item // key: libraryID
	descendants  map[string][]jellyfin.Item
	getItemErr   map[string]error
	getItemOK    map[string]*jellyfin.Item
}

func (f *fakeClient) DiscoverUserID(context.Context) (string, error)            { return "u1", nil }
func (f *fakeClient) ListLibraries(context.Context) ([]jellyfin.Library, error) { return nil, nil }

func (f *fakeClient) QueryItemsByGenres(_ context.Context, libraryID string, _ []string, _ []string) ([]jellyfin.Item, error) {
	return f.byGenreQuery[libraryID], nil
}

func (f *fakeClient) QueryAllItems(_ context.Context, libraryID string, _ []string) ([]jellyfin.Item, error) {
	return f.byLibrary[libraryID], nil
}

func (f *fakeClient) QueryDescendantEpisodes(_ context.Context, parentID string) ([]jellyfin.Item, error) {
	return f.descendants[parentID], nil
}

func (f *fakeClient) GetItem(_ context.Context, itemID string) (*jellyfin.Item, error) {
	if err, ok := f.getItemErr[itemID]; ok {
		return nil, err
	}
	return f.getItemOK[itemID], nil
}

func (f *fakeClient) DirectStreamURL(context.Context, string) (string, error) { return "", nil }

var _ jellyfin.Client = (*fakeClient)(nil)

func TestBuildLibraryPoolNoIncludesFetchesAll(t *testing.T) {
	st := storetest.New()
	st.Channels[1] = store.Channel{ID: 1}
	st.LibraryBindings[1] = []store.LibraryBinding{{LibraryID: "lib1"}}

	jf := &fakeClient{byLibrary: map[string][]jellyfin.Item{
		"lib1": {
			{ID: "a", Name: "A", Type: "Movie", RunTimeTicks: 36_000_000_000},
			{ID: "b", Name: "B", Type: "Movie", RunTimeTicks: 1_000_000}, // below 30s
		},
	}}

	got, err := Build(context.Background(), st, jf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExternalID != "a" {
		t.Fatalf("got = %+v, want only item a", got)
	}
}

func TestBuildSubtractsExcludes(t *testing.T) {
	st := storetest.New()
	st.Channels[1] = store.Channel{ID: 1}
	st.LibraryBindings[1] = []store.LibraryBinding{{LibraryID: "lib1"}}
	st.GenreFilters[1] = []store.GenreFilter{
		{Genre: "Horror", ContentType: store.ContentBoth, FilterType: store.FilterExclude},
	}
	jf := &fakeClient{byLibrary: map[string][]jellyfin.Item{
		"lib1": {
			{ID: "a", Name: "A", Type: "Movie", RunTimeTicks: 36_000_000_000, Genres: []string{"Comedy"}},
			{ID: "b", Name: "B", Type: "Movie", RunTimeTicks: 36_000_000_000, Genres: []string{"Horror"}},
		},
	}}
	got, err := Build(context.Background(), st, jf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExternalID != "a" {
		t.Fatalf("got = %+v, want only item a", got)
	}
}

func TestBuildDedupesByExternalIDAcrossLibraryAndCollection(t *testing.T) {
	st := storetest.New()
	st.Channels[1] = store.Channel{ID: 1}
	st.LibraryBindings[1] = []store.LibraryBinding{{LibraryID: "lib1"}}
	st.CollectionSources[1] = []store.CollectionSource{{CollectionID: 10}}
	st.CollectionItems[10] = []store.CollectionItem{
		{ExternalItemID: "a", ItemType: store.ItemMovie, Title: "A (dup)", DurationSeconds: 3600},
	}
	jf := &fakeClient{byLibrary: map[string][]jellyfin.Item{
		"lib1": {{ID: "a", Name: "A", Type: "Movie", RunTimeTicks: 36_000_000_000}},
	}}
	got, err := Build(context.Background(), st, jf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got = %+v, want one deduped item", got)
	}
	if got[0].Title != "A" {
		t.Errorf("Title = %q, want library version to win (first occurrence)", got[0].Title)
	}
}

func TestBuildCollectionLenientIncludeRule(t *testing.T) {
	st := storetest.New()
	st.Channels[1] = store.Channel{ID: 1}
	st.CollectionSources[1] = []store.CollectionSource{{CollectionID: 10}}
	st.GenreFilters[1] = []store.GenreFilter{
		{Genre: "Comedy", ContentType: store.ContentMovie, FilterType: store.FilterInclude},
	}
	st.CollectionItems[10] = []store.CollectionItem{
		{ExternalItemID: "no-genre", ItemType: store.ItemMovie, Title: "Curated", DurationSeconds: 3600},
		{ExternalItemID: "mismatch", ItemType: store.ItemMovie, Title: "Horror Pick", DurationSeconds: 3600, GenresJSON: `["Horror"]`},
	}
	jf := &fakeClient{}
	got, err := Build(context.Background(), st, jf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExternalID != "no-genre" {
		t.Fatalf("got = %+v, want only the no-genre curated item", got)
	}
}

func TestBuildCollectionExpandsSeriesToEpisodes(t *testing.T) {
	st := storetest.New()
	st.Channels[1] = store.Channel{ID: 1}
	st.CollectionSources[1] = []store.CollectionSource{{CollectionID: 10}}
	st.CollectionItems[10] = []store.CollectionItem{
		{ExternalItemID: "series-1", ItemType: store.ItemSeries},
	}
	jf := &fakeClient{descendants: map[string][]jellyfin.Item{
		"series-1": {{ID: "ep1", Type: "Episode", RunTimeTicks: 12_000_000_000}},
	}}
	got, err := Build(context.Background(), st, jf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExternalID != "ep1" || !got[0].PreEnriched {
		t.Fatalf("got = %+v, want pre-enriched expanded episode", got)
	}
}

func TestVerifyItemStatuses(t *testing.T) {
	jf := &fakeClient{
		getItemErr: map[string]error{"deleted-id": jellyfin.ErrNotFound},
		getItemOK:  map[string]*jellyfin.Item{"moved-id": {Path: "/does/not/exist/but/reported"}},
	}

	if r := VerifyItem(context.Background(), jf, "x", ""); r.Status != StatusNoPath {
		t.Errorf("Status = %q, want no_path", r.Status)
	}
	if r := VerifyItem(context.Background(), jf, "deleted-id", "/missing/path"); r.Status != StatusDeleted {
		t.Errorf("Status = %q, want deleted", r.Status)
	}
	if r := VerifyItem(context.Background(), jf, "moved-id", "/missing/path"); r.Status != StatusDeleted {
		t.Errorf("Status = %q, want deleted (server path also missing)", r.Status)
	}
}
