package pool

import (
	"context"
	"errors"
	"os"

	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/store"
)

// VerifyStatus is the outcome of checking one collection item's file
// against disk and the media server (spec.md §4.6 "Collection
// verification").
type VerifyStatus string

const (
	StatusNoPath  VerifyStatus = "no_path"
	StatusOK      VerifyStatus = "ok"
	StatusMoved   VerifyStatus = "moved"
	StatusDeleted VerifyStatus = "deleted"
)

// VerifyResult reports one item's verification outcome; NewPath is set only
// for StatusMoved.
type VerifyResult struct {
	ExternalID string
	Status     VerifyStatus
	NewPath    string
}

// VerifyItem checks a single collection item's stored path, following the
// same local-file-vs-server-lookup precedence as source resolution
// (spec.md §4.6).
func VerifyItem(ctx context.Context, jf jellyfin.Client, externalID, filePath string) VerifyResult {
	if filePath == "" {
		return VerifyResult{ExternalID: externalID, Status: StatusNoPath}
	}
	if _, err := os.Stat(filePath); err == nil {
		return VerifyResult{ExternalID: externalID, Status: StatusOK}
	}

	item, err := jf.GetItem(ctx, externalID)
	if err != nil {
		if errors.Is(err, jellyfin.ErrNotFound) {
			return VerifyResult{ExternalID: externalID, Status: StatusDeleted}
		}
		return VerifyResult{ExternalID: externalID, Status: StatusDeleted}
	}
	if item.Path == "" {
		return VerifyResult{ExternalID: externalID, Status: StatusDeleted}
	}
	if _, err := os.Stat(item.Path); err != nil {
		return VerifyResult{ExternalID: externalID, Status: StatusDeleted}
	}
	return VerifyResult{ExternalID: externalID, Status: StatusMoved, NewPath: item.Path}
}

// VerifyCollection checks every item in a collection and returns one result
// per item, in input order.
func VerifyCollection(ctx context.Context, jf jellyfin.Client, items []store.CollectionItem) []VerifyResult {
	out := make([]VerifyResult, 0, len(items))
	for _, it := range items {
		out = append(out, VerifyItem(ctx, jf, it.ExternalItemID, it.FilePath))
	}
	return out
}
