package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jellystream/jellystream/internal/httpclient"
	"github.com/jellystream/jellystream/internal/ratelimit"
	"github.com/jellystream/jellystream/internal/safeurl"
)

// ticksPerSecond and minTicks mirror the original Python service's constants
// (app/services/schedule_generator.py: _TICKS_PER_SECOND, _MIN_TICKS) — a
// Jellyfin RunTimeTicks value is 100-nanosecond units.
const (
	ticksPerSecond = 10_000_000
	minTicks       = 300_000_000 // 30 seconds
)

const pageSize = 500

// fieldsParam requests exactly the fields the pool builder and scheduler
// need, per spec.md §4.2 step 1.
const fieldsParam = "RunTimeTicks,Genres,SeriesName,ParentIndexNumber,IndexNumber,Path,MediaSources,Overview,OfficialRating,PremiereDate,ProductionYear"

// HTTPClient is the production jellyfin.Client, grounded on the teacher's
// httpclient.DoWithRetry + ratelimit.Limiter composition (no component in the
// teacher repo itself called Jellyfin, so this is newly written in that
// idiom).
type HTTPClient struct {
	BaseURL string
	APIKey  string
	UserID  string // resolved lazily via DiscoverUserID if empty at call time

	HTTP    *http.Client
	Limiter *ratelimit.Limiter
	Retry   httpclient.RetryPolicy
}

// NewHTTPClient builds a Client with JellyStream's default retry policy and
// rate limiter.
func NewHTTPClient(baseURL, apiKey, userID string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		UserID:  userID,
		HTTP:    httpclient.Default(),
		Limiter: ratelimit.Default(),
		Retry:   httpclient.MediaServerRetryPolicy,
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.APIKey)
	u := c.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpclient.DoWithRetry(ctx, c.HTTP, req, c.Retry)
	if err != nil {
		return nil, fmt.Errorf("jellyfin: GET %s: %w: %w", safeurl.RedactURL(u), ErrServer, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrServer, resp.StatusCode, safeurl.RedactURL(u))
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("jellyfin: HTTP %d from %s", resp.StatusCode, safeurl.RedactURL(u))
	}
	return resp, nil
}

type userDTO struct {
	ID string `json:"Id"`
}

func (c *HTTPClient) DiscoverUserID(ctx context.Context) (string, error) {
	if c.UserID != "" {
		return c.UserID, nil
	}
	resp, err := c.get(ctx, "/Users", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var users []userDTO
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", fmt.Errorf("jellyfin: decode /Users: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("%w: no users on media server", ErrServer)
	}
	c.UserID = users[0].ID
	return c.UserID, nil
}

type libraryDTO struct {
	Name string `json:"Name"`
	ID   string `json:"ItemId"`
}

type virtualFoldersResponse []libraryDTO

func (c *HTTPClient) ListLibraries(ctx context.Context) ([]Library, error) {
	resp, err := c.get(ctx, "/Library/VirtualFolders", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var folders virtualFoldersResponse
	if err := json.NewDecoder(resp.Body).Decode(&folders); err != nil {
		return nil, fmt.Errorf("jellyfin: decode /Library/VirtualFolders: %w", err)
	}
	out := make([]Library, 0, len(folders))
	for _, f := range folders {
		out = append(out, Library{ID: f.ID, Name: f.Name})
	}
	return out, nil
}

type itemDTO struct {
	ID                string   `json:"Id"`
	Name              string   `json:"Name"`
	Type              string   `json:"Type"`
	RunTimeTicks      int64    `json:"RunTimeTicks"`
	Genres            []string `json:"Genres"`
	SeriesName        string   `json:"SeriesName"`
	ParentIndexNumber *int     `json:"ParentIndexNumber"`
	IndexNumber       *int     `json:"IndexNumber"`
	Path              string   `json:"Path"`
	Overview          string   `json:"Overview"`
	OfficialRating    string   `json:"OfficialRating"`
	PremiereDate      string   `json:"PremiereDate"`
	ProductionYear    int      `json:"ProductionYear"`
}

type itemsResponse struct {
	Items            []itemDTO `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}

func (d itemDTO) toItem(libraryID string) Item {
	return Item{
		ID:             d.ID,
		Name:           d.Name,
		Type:           d.Type,
		RunTimeTicks:   d.RunTimeTicks,
		Genres:         d.Genres,
		SeriesName:     d.SeriesName,
		ParentIndexNum: d.ParentIndexNumber,
		IndexNum:       d.IndexNumber,
		Path:           d.Path,
		LibraryID:      libraryID,
		Overview:       d.Overview,
		OfficialRating: d.OfficialRating,
		PremiereDate:   d.PremiereDate,
		ProductionYear: d.ProductionYear,
	}
}

// fetchItemsPaged pages through /Users/{id}/Items in blocks of pageSize
// until TotalRecordCount is reached (spec.md §4.2 step 1 "page in fixed-size
// batches (recommended 500)").
func (c *HTTPClient) fetchItemsPaged(ctx context.Context, base url.Values, libraryID string) ([]Item, error) {
	userID, err := c.DiscoverUserID(ctx)
	if err != nil {
		return nil, err
	}
	var out []Item
	start := 0
	for {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("StartIndex", strconv.Itoa(start))
		q.Set("Limit", strconv.Itoa(pageSize))
		resp, err := c.get(ctx, "/Users/"+userID+"/Items", q)
		if err != nil {
			return out, err
		}
		var page itemsResponse
		decErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if decErr != nil {
			return out, fmt.Errorf("jellyfin: decode items page at offset %d: %w", start, decErr)
		}
		for _, d := range page.Items {
			if d.RunTimeTicks > 0 && d.RunTimeTicks < minTicks {
				continue // below 30s (spec.md §4.2 step 1)
			}
			out = append(out, d.toItem(libraryID))
		}
		start += len(page.Items)
		if len(page.Items) == 0 || start >= page.TotalRecordCount {
			break
		}
	}
	return out, nil
}

func (c *HTTPClient) QueryItemsByGenres(ctx context.Context, libraryID string, itemTypes []string, genres []string) ([]Item, error) {
	q := url.Values{
		"ParentId":         {libraryID},
		"Recursive":        {"true"},
		"IncludeItemTypes": {strings.Join(itemTypes, ",")},
		"Genres":           {strings.Join(genres, "|")},
		"Fields":           {fieldsParam},
	}
	return c.fetchItemsPaged(ctx, q, libraryID)
}

func (c *HTTPClient) QueryAllItems(ctx context.Context, libraryID string, itemTypes []string) ([]Item, error) {
	q := url.Values{
		"ParentId":         {libraryID},
		"Recursive":        {"true"},
		"IncludeItemTypes": {strings.Join(itemTypes, ",")},
		"Fields":           {fieldsParam},
	}
	return c.fetchItemsPaged(ctx, q, libraryID)
}

func (c *HTTPClient) QueryDescendantEpisodes(ctx context.Context, parentID string) ([]Item, error) {
	q := url.Values{
		"ParentId":         {parentID},
		"Recursive":        {"true"},
		"IncludeItemTypes": {"Episode"},
		"Fields":           {fieldsParam},
	}
	return c.fetchItemsPaged(ctx, q, "")
}

func (c *HTTPClient) GetItem(ctx context.Context, itemID string) (*Item, error) {
	userID, err := c.DiscoverUserID(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.get(ctx, "/Users/"+userID+"/Items/"+itemID, url.Values{"Fields": {fieldsParam}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var d itemDTO
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("jellyfin: decode item %s: %w", itemID, err)
	}
	it := d.toItem("")
	return &it, nil
}

// DirectStreamURL builds the plain-HTTP download URL Jellyfin serves for an
// item's original file, with Range-request support (spec.md §4.6 step 2).
// Unlike other calls this does not round-trip the server: the URL shape is
// stable and documented, so building it locally avoids an extra request on
// every stream-source resolution.
func (c *HTTPClient) DirectStreamURL(ctx context.Context, itemID string) (string, error) {
	if itemID == "" {
		return "", fmt.Errorf("jellyfin: empty item id")
	}
	q := url.Values{"api_key": {c.APIKey}, "Static": {"true"}}
	return c.BaseURL + "/Items/" + itemID + "/Download?" + q.Encode(), nil
}
