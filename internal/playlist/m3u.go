// Package playlist renders M3U playlists and XMLTV guides from the
// persistent schedule store (spec.md §4.8). Grounded on the teacher's
// manual string-building M3U serve (internal/tuner/m3u.go — no library,
// fixed line format) and its encoding/xml struct-tag XMLTV encoder
// (internal/tuner/xmltv.go), retargeted from "remap an upstream feed" to
// "render directly from local schedule entries."
package playlist

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jellystream/jellystream/internal/store"
)

// M3U renders the `#EXTM3U` playlist for channels, one `#EXTINF` + stream
// URL pair per channel, in the fixed format spec.md §4.8 mandates.
// publicBaseURL must already be the reachable, non-localhost base (spec.md
// §6 PUBLIC_URL); it is not validated again here.
func M3U(channels []store.Channel, publicBaseURL string) string {
	base := strings.TrimSuffix(publicBaseURL, "/")

	sorted := make([]store.Channel, len(channels))
	copy(sorted, channels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, c := range sorted {
		number := c.Number
		if number == "" {
			number = fmt.Sprintf("100.%d", c.ID)
		}
		fmt.Fprintf(&b,
			"#EXTINF:-1 tvg-id=\"%d\" tvg-name=\"%s\" tvg-chno=\"%s\" group-title=\"JellyStream\",%s %s\n",
			c.ID, m3uAttr(c.Name), m3uAttr(number), number, c.Name)
		fmt.Fprintf(&b, "%s/api/livetv/stream/%d\n", base, c.ID)
	}
	return b.String()
}

// M3UAll renders the playlist over every enabled channel (spec.md §6
// `GET /api/livetv/m3u/all`).
func M3UAll(ctx context.Context, st store.Store, publicBaseURL string) (string, error) {
	channels, err := st.ListEnabledChannels(ctx)
	if err != nil {
		return "", err
	}
	return M3U(channels, publicBaseURL), nil
}

// M3UOne renders a single-channel playlist (spec.md §6
// `GET /api/livetv/m3u/{channel_id}`). Returns ("", nil) if the channel does
// not exist or is disabled — callers treat that as 404.
func M3UOne(ctx context.Context, st store.Store, channelID int64, publicBaseURL string) (string, error) {
	ch, err := st.GetChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	if ch == nil || !ch.Enabled {
		return "", nil
	}
	return M3U([]store.Channel{*ch}, publicBaseURL), nil
}

// m3uAttr neutralizes characters that would break a double-quoted EXTINF
// attribute value; channel names/numbers are free text (spec.md §3).
func m3uAttr(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

// MimeType is the content type for both "all" and per-channel M3U responses
// (spec.md §4.8).
const MimeType = "application/x-mpegURL"
