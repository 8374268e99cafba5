package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jellystream/jellystream/internal/store"
)

// xmltvTimeLayout is spec.md §4.8's fixed programme timestamp format.
const xmltvTimeLayout = "20060102150405 -0700"

// WindowBefore / WindowAfter define the XMLTV guide window relative to now
// (spec.md §4.8 "Window = [now - 3h, now + 7d]").
const (
	WindowBefore = 3 * time.Hour
	WindowAfter  = 7 * 24 * time.Hour
)

type xmlTV struct {
	XMLName    xml.Name       `xml:"tv"`
	Generator  string         `xml:"generator-info-name,attr"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
}

type xmlProgramme struct {
	Channel     string        `xml:"channel,attr"`
	Start       string        `xml:"start,attr"`
	Stop        string        `xml:"stop,attr"`
	Title       string        `xml:"title"`
	SubTitle    string        `xml:"sub-title,omitempty"`
	Desc        *xmlDesc      `xml:"desc,omitempty"`
	Icon        *xmlIcon      `xml:"icon,omitempty"`
	Date        string        `xml:"date,omitempty"`
	EpisodeNum  *xmlEpisodeNo `xml:"episode-num,omitempty"`
	Categories  []string      `xml:"category,omitempty"`
	Rating      *xmlRating    `xml:"rating,omitempty"`
}

type xmlDesc struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlEpisodeNo struct {
	System string `xml:"system,attr"`
	Value  string `xml:",chardata"`
}

type xmlRating struct {
	System string `xml:"system,attr"`
	Value  string `xml:"value"`
}

// XMLTV renders the guide for channels over [now-3h, now+7d], pulling
// schedule entries from st (spec.md §4.8). publicBaseURL is used to build
// thumbnail icon URLs.
func XMLTV(ctx context.Context, st store.Store, channels []store.Channel, now time.Time, publicBaseURL string) ([]byte, error) {
	base := strings.TrimSuffix(publicBaseURL, "/")
	from := now.Add(-WindowBefore)
	to := now.Add(WindowAfter)

	sorted := make([]store.Channel, len(channels))
	copy(sorted, channels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	doc := xmlTV{Generator: "JellyStream"}
	for _, c := range sorted {
		doc.Channels = append(doc.Channels, xmlChannel{
			ID:          fmt.Sprint(c.ID),
			DisplayName: c.Name,
		})

		entries, err := st.ScheduleEntriesInWindow(ctx, c.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("playlist: xmltv entries for channel %d: %w", c.ID, err)
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].StartTime.Before(entries[j].StartTime) })
		for _, e := range entries {
			doc.Programmes = append(doc.Programmes, programmeFor(c.ID, e, base))
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<!DOCTYPE tv SYSTEM "xmltv.dtd">` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// XMLTVAll renders the guide over every enabled channel (spec.md §6
// `GET /api/livetv/xmltv/all`).
func XMLTVAll(ctx context.Context, st store.Store, now time.Time, publicBaseURL string) ([]byte, error) {
	channels, err := st.ListEnabledChannels(ctx)
	if err != nil {
		return nil, err
	}
	return XMLTV(ctx, st, channels, now, publicBaseURL)
}

// XMLTVOne renders the guide for a single channel (spec.md §6
// `GET /api/livetv/xmltv/{channel_id}`). Returns (nil, nil) if the channel
// does not exist or is disabled — callers treat that as 404.
func XMLTVOne(ctx context.Context, st store.Store, channelID int64, now time.Time, publicBaseURL string) ([]byte, error) {
	ch, err := st.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil || !ch.Enabled {
		return nil, nil
	}
	return XMLTV(ctx, st, []store.Channel{*ch}, now, publicBaseURL)
}

func programmeFor(channelID int64, e store.ScheduleEntry, base string) xmlProgramme {
	title := e.Title
	var subTitle string
	if e.SeriesName != "" {
		title = e.SeriesName
		if e.ItemType == store.ItemEpisode {
			subTitle = e.Title
		}
	}

	p := xmlProgramme{
		Channel:  fmt.Sprint(channelID),
		Start:    e.StartTime.UTC().Format(xmltvTimeLayout),
		Stop:     e.EndTime.UTC().Format(xmltvTimeLayout),
		Title:    title,
		SubTitle: subTitle,
	}
	if e.Description != "" {
		p.Desc = &xmlDesc{Lang: "en", Value: e.Description}
	}
	if e.ThumbnailPath != "" {
		p.Icon = &xmlIcon{Src: fmt.Sprintf("%s/api/livetv/thumbnail/%d", base, e.ID)}
	}
	if e.AirDate != "" {
		p.Date = strings.ReplaceAll(e.AirDate, "-", "")
	}
	if e.SeasonNumber != nil && e.EpisodeNumber != nil {
		p.EpisodeNum = &xmlEpisodeNo{
			System: "xmltv_ns",
			Value:  fmt.Sprintf("%d.%d.", *e.SeasonNumber-1, *e.EpisodeNumber-1),
		}
	}
	p.Categories = append(p.Categories, string(e.ItemType))
	if e.GenresJSON != "" {
		var genres []string
		if err := json.Unmarshal([]byte(e.GenresJSON), &genres); err == nil {
			p.Categories = append(p.Categories, genres...)
		}
	}
	if e.ContentRating != "" {
		p.Rating = &xmlRating{System: "MPAA", Value: e.ContentRating}
	}
	return p
}

// MimeTypeXMLTV is the content type for both "all" and per-channel guide
// responses (spec.md §4.8).
const MimeTypeXMLTV = "application/xml"
