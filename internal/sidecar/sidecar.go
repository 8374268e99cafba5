// Package sidecar locates and parses Kodi-style .nfo XML files and poster
// art sitting beside a library item's video file, and applies the single
// configured Jellyfin-path → local-path rewrite rule before touching disk.
// Grounded on the teacher's encoding/xml decoding style (manual struct-tag
// decoding of a sibling metadata file) and its os.Stat existence-probe
// pattern for locating sibling assets. NFO decoding uses
// golang.org/x/net/html/charset as the CharsetReader so a non-UTF8-declared
// .nfo (common from older Kodi scrapers) still parses instead of failing
// outright.
package sidecar

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Kind is the item classification the lookup tables are keyed on.
type Kind string

const (
	Movie   Kind = "Movie"
	Series  Kind = "Series"
	Season  Kind = "Season"
	Episode Kind = "Episode"
)

// Candidate is the subset of a pool/schedule entry's fields Enrich can fill
// in. Fields already set by the caller are never overwritten (the caller
// wins over NFO, per spec.md §4.1).
type Candidate struct {
	Kind Kind

	// Path is the already path-mapped absolute path: the video file itself
	// for Movie/Episode, the series root directory for Series, or the
	// season directory (whose parent is the series root) for Season.
	Path string

	// SeasonNumber is required for Season lookups (folder naming
	// seasonNN-poster.jpg) and is the caller's own metadata, not derived.
	SeasonNumber int

	Description   string // from <plot>
	ContentRating string // from <mpaa>
	AirDate       string // from <aired>, <premiered>, or <year>, kept as text
	GenresJSON    string // JSON array, only set if NFO had at least one <genre>
	ThumbnailPath string
}

// PathMapper rewrites a single configured jfPrefix:localPrefix pair.
type PathMapper struct {
	JFPrefix    string
	LocalPrefix string
}

// Map rewrites p if it starts with m.JFPrefix; otherwise returns it
// unchanged. A zero-value PathMapper (no rule configured) is a no-op.
func (m PathMapper) Map(p string) string {
	if m.JFPrefix == "" || !strings.HasPrefix(p, m.JFPrefix) {
		return p
	}
	return m.LocalPrefix + strings.TrimPrefix(p, m.JFPrefix)
}

type nfoXML struct {
	Plot      string   `xml:"plot"`
	MPAA      string   `xml:"mpaa"`
	Aired     string   `xml:"aired"`
	Premiered string   `xml:"premiered"`
	Year      string   `xml:"year"`
	Genres    []string `xml:"genre"`
}

// Enrich fills in c's Description, ContentRating, AirDate, GenresJSON, and
// ThumbnailPath from the first matching NFO/poster found on disk, without
// overwriting any field the caller already populated. The returned bool
// reports whether any sidecar file was found and parsed.
//
// c.Path must already be path-mapped; Enrich does not consult PathMapper
// itself so callers can map once and enrich many related candidates (e.g.
// a season and its episodes) from the same rewritten root.
func Enrich(c Candidate) (Candidate, bool) {
	found := false

	if nfo, ok := readNFO(nfoPath(c)); ok {
		found = true
		if c.Description == "" {
			c.Description = nfo.Plot
		}
		if c.ContentRating == "" {
			c.ContentRating = nfo.MPAA
		}
		if c.AirDate == "" {
			c.AirDate = firstNonEmpty(nfo.Aired, nfo.Premiered, nfo.Year)
		}
		if c.GenresJSON == "" && len(nfo.Genres) > 0 {
			if b, err := json.Marshal(nfo.Genres); err == nil {
				c.GenresJSON = string(b)
			}
		}
	}

	if c.ThumbnailPath == "" {
		if thumb, ok := findThumbnail(c); ok {
			c.ThumbnailPath = thumb
			found = true
		}
	}

	return c, found
}

// nfoPath returns the first of the ordered candidate NFO paths for c.Kind
// (spec.md §4.1's lookup tables) that exists on disk, or "" if none does.
func nfoPath(c Candidate) string {
	for _, p := range nfoCandidates(c) {
		if p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

func nfoCandidates(c Candidate) []string {
	dir := filepath.Dir(c.Path)
	base := strings.TrimSuffix(c.Path, filepath.Ext(c.Path))
	switch c.Kind {
	case Movie:
		return []string{filepath.Join(dir, "movie.nfo"), base + ".nfo"}
	case Series:
		// c.Path is the series root directory for Series/Season kinds.
		return []string{filepath.Join(c.Path, "tvshow.nfo")}
	case Season:
		return []string{filepath.Join(filepath.Dir(c.Path), "tvshow.nfo")}
	case Episode:
		return []string{base + ".nfo"}
	default:
		return nil
	}
}

func readNFO(path string) (nfoXML, bool) {
	if path == "" {
		return nfoXML{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nfoXML{}, false
	}
	var nfo nfoXML
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&nfo); err != nil {
		return nfoXML{}, false // parse errors yield an empty result, per spec.md §4.1
	}
	return nfo, true
}

func findThumbnail(c Candidate) (string, bool) {
	for _, p := range thumbnailCandidates(c) {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func thumbnailCandidates(c Candidate) []string {
	dir := filepath.Dir(c.Path)
	base := strings.TrimSuffix(c.Path, filepath.Ext(c.Path))
	switch c.Kind {
	case Movie:
		return []string{filepath.Join(dir, "folder.jpg"), base + ".jpg", base + "-thumb.jpg"}
	case Series:
		return []string{filepath.Join(c.Path, "folder.jpg"), filepath.Join(c.Path, "poster.jpg")}
	case Season:
		seriesRoot := filepath.Dir(c.Path)
		seasonDir := c.Path
		name := "season" + padSeason(c.SeasonNumber) + "-poster.jpg"
		return []string{
			filepath.Join(seriesRoot, name),
			filepath.Join(seasonDir, "folder.jpg"),
			filepath.Join(seriesRoot, "folder.jpg"),
		}
	case Episode:
		return []string{base + "-thumb.jpg", base + ".jpg", filepath.Join(dir, "folder.jpg")}
	default:
		return nil
	}
}

func padSeason(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
