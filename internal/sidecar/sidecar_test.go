package sidecar

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEnrichMoviePrefersBasenameNFOFallback(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "Inception (2010).mp4")
	writeFile(t, video, "")
	writeFile(t, filepath.Join(dir, "Inception (2010).nfo"), `<movie><plot>A thief steals secrets.</plot><mpaa>PG-13</mpaa><genre>Sci-Fi</genre><genre>Thriller</genre></movie>`)

	c, found := Enrich(Candidate{Kind: Movie, Path: video})
	if !found {
		t.Fatal("expected sidecar data found")
	}
	if c.Description != "A thief steals secrets." {
		t.Errorf("Description = %q", c.Description)
	}
	if c.ContentRating != "PG-13" {
		t.Errorf("ContentRating = %q", c.ContentRating)
	}
	if c.GenresJSON != `["Sci-Fi","Thriller"]` {
		t.Errorf("GenresJSON = %q", c.GenresJSON)
	}
}

func TestEnrichMoviePrefersDirLevelNFOOverBasename(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "feature.mp4")
	writeFile(t, video, "")
	writeFile(t, filepath.Join(dir, "movie.nfo"), `<movie><plot>From movie.nfo</plot></movie>`)
	writeFile(t, filepath.Join(dir, "feature.nfo"), `<movie><plot>From basename</plot></movie>`)

	c, found := Enrich(Candidate{Kind: Movie, Path: video})
	if !found || c.Description != "From movie.nfo" {
		t.Fatalf("c = %+v, found = %v", c, found)
	}
}

func TestEnrichCallerFieldsWinOverNFO(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "ep.mp4")
	writeFile(t, video, "")
	writeFile(t, filepath.Join(dir, "ep.nfo"), `<episodedetails><plot>NFO plot</plot></episodedetails>`)

	c, found := Enrich(Candidate{Kind: Episode, Path: video, Description: "caller plot"})
	if !found {
		t.Fatal("expected nfo found")
	}
	if c.Description != "caller plot" {
		t.Errorf("Description = %q, want caller value preserved", c.Description)
	}
}

func TestEnrichMissingFileYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	c, found := Enrich(Candidate{Kind: Movie, Path: filepath.Join(dir, "nope.mp4")})
	if found {
		t.Fatal("expected not found")
	}
	if c.Description != "" {
		t.Errorf("Description = %q, want empty", c.Description)
	}
}

func TestEnrichParseErrorYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "broken.mp4")
	writeFile(t, video, "")
	writeFile(t, filepath.Join(dir, "broken.nfo"), `<not valid xml`)

	c, _ := Enrich(Candidate{Kind: Movie, Path: video})
	if c.Description != "" {
		t.Errorf("Description = %q, want empty on parse error", c.Description)
	}
}

func TestEnrichSeasonThumbnailFallsBackToSeriesFolder(t *testing.T) {
	seriesRoot := t.TempDir()
	seasonDir := filepath.Join(seriesRoot, "Season 01")
	if err := os.MkdirAll(seasonDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(seriesRoot, "folder.jpg"), "jpg")

	c, found := Enrich(Candidate{Kind: Season, Path: seasonDir, SeasonNumber: 1})
	if !found {
		t.Fatal("expected thumbnail found")
	}
	want := filepath.Join(seriesRoot, "folder.jpg")
	if c.ThumbnailPath != want {
		t.Errorf("ThumbnailPath = %q, want %q", c.ThumbnailPath, want)
	}
}

func TestEnrichSeasonPrefersSeasonPosterOverSeriesFolder(t *testing.T) {
	seriesRoot := t.TempDir()
	seasonDir := filepath.Join(seriesRoot, "Season 02")
	if err := os.MkdirAll(seasonDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(seriesRoot, "season02-poster.jpg"), "jpg")
	writeFile(t, filepath.Join(seriesRoot, "folder.jpg"), "jpg")

	c, found := Enrich(Candidate{Kind: Season, Path: seasonDir, SeasonNumber: 2})
	if !found {
		t.Fatal("expected thumbnail found")
	}
	want := filepath.Join(seriesRoot, "season02-poster.jpg")
	if c.ThumbnailPath != want {
		t.Errorf("ThumbnailPath = %q, want %q", c.ThumbnailPath, want)
	}
}

func TestEnrichIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "ep.mp4")
	writeFile(t, video, "")
	writeFile(t, filepath.Join(dir, "ep.nfo"), `<episodedetails><plot>P</plot><genre>Drama</genre></episodedetails>`)
	writeFile(t, filepath.Join(dir, "ep-thumb.jpg"), "jpg")

	once, _ := Enrich(Candidate{Kind: Episode, Path: video})
	twice, _ := Enrich(once)
	if once != twice {
		t.Errorf("Enrich not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func TestPathMapperRewritesOnlyMatchingPrefix(t *testing.T) {
	m := PathMapper{JFPrefix: "/media/", LocalPrefix: "/mnt/nas/"}
	if got := m.Map("/media/movies/x.mp4"); got != "/mnt/nas/movies/x.mp4" {
		t.Errorf("Map() = %q", got)
	}
	if got := m.Map("/other/x.mp4"); got != "/other/x.mp4" {
		t.Errorf("Map() on non-matching path = %q, want unchanged", got)
	}
}

func TestPathMapperZeroValueIsNoop(t *testing.T) {
	var m PathMapper
	if got := m.Map("/media/x.mp4"); got != "/media/x.mp4" {
		t.Errorf("Map() = %q, want unchanged", got)
	}
}
