// Source resolution: given a schedule entry, decide whether the transcoder
// reads a local file (cheap seek) or a Jellyfin direct-stream URL (seek via
// HTTP Range). Grounded on the teacher's local-file-vs-provider-URL branch
// in internal/tuner gateway source selection (primary vs backup
// StreamURLs), retargeted to local-path-exists vs. media-server URL
// (spec.md §4.6).
package stream

import (
	"context"
	"fmt"
	"os"

	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/store"
)

// ResolveSource returns the ffmpeg -i argument for entry: its local file
// path if one is stored and exists, otherwise a direct-stream URL fetched
// from the media server.
func ResolveSource(ctx context.Context, jf jellyfin.Client, entry store.ScheduleEntry) (string, error) {
	if entry.FilePath != "" {
		if _, err := os.Stat(entry.FilePath); err == nil {
			return entry.FilePath, nil
		}
	}
	url, err := jf.DirectStreamURL(ctx, entry.ExternalItemID)
	if err != nil {
		return "", fmt.Errorf("stream: resolve source for entry %d: %w", entry.ID, err)
	}
	return url, nil
}
