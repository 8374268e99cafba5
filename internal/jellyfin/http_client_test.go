package jellyfin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, "testkey", "")
	return c, srv
}

func TestDiscoverUserIDAutoPicksFirstUser(t *testing.T) {
	var userCalls atomic.Int32
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		userCalls.Add(1)
		json.NewEncoder(w).Encode([]userDTO{{ID: "user-1"}, {ID: "user-2"}})
	})
	id, err := c.DiscoverUserID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id != "user-1" {
		t.Errorf("UserID = %q, want user-1", id)
	}
	// second call must not re-request /Users
	id2, err := c.DiscoverUserID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id2 != "user-1" {
		t.Errorf("cached UserID = %q, want user-1", id2)
	}
	if n := userCalls.Load(); n != 1 {
		t.Errorf("/Users requested %d times, want 1", n)
	}
}

func TestDiscoverUserIDNoUsersIsServerError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]userDTO{})
	})
	_, err := c.DiscoverUserID(context.Background())
	if err == nil {
		t.Fatal("expected error for empty user list")
	}
}

func TestQueryItemsByGenresPagesUntilExhausted(t *testing.T) {
	const total = 3
	requests := 0
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Users":
			json.NewEncoder(w).Encode([]userDTO{{ID: "u1"}})
			return
		case "/Users/u1/Items":
			requests++
			q := r.URL.Query()
			if q.Get("Genres") != "Comedy" {
				t.Errorf("Genres = %q, want Comedy", q.Get("Genres"))
			}
			start := q.Get("StartIndex")
			var items []itemDTO
			if start == "0" {
				items = []itemDTO{
					{ID: "a", Name: "A", Type: "Movie", RunTimeTicks: 36_000_000_000},
					{ID: "b", Name: "B", Type: "Movie", RunTimeTicks: 36_000_000_000},
				}
			} else {
				items = []itemDTO{
					{ID: "c", Name: "C", Type: "Movie", RunTimeTicks: 36_000_000_000},
				}
			}
			json.NewEncoder(w).Encode(itemsResponse{Items: items, TotalRecordCount: total})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	items, err := c.QueryItemsByGenres(context.Background(), "lib1", []string{"Movie"}, []string{"Comedy"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != total {
		t.Fatalf("len(items) = %d, want %d", len(items), total)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2 pages", requests)
	}
}

func TestQueryItemsDropsBelowMinimumDuration(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Users":
			json.NewEncoder(w).Encode([]userDTO{{ID: "u1"}})
		case "/Users/u1/Items":
			json.NewEncoder(w).Encode(itemsResponse{
				Items: []itemDTO{
					{ID: "short", RunTimeTicks: 1_000_000}, // well under minTicks
					{ID: "long", RunTimeTicks: 36_000_000_000},
				},
				TotalRecordCount: 2,
			})
		}
	})
	items, err := c.QueryAllItems(context.Background(), "lib1", []string{"Movie"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "long" {
		t.Fatalf("items = %+v, want only the long item", items)
	}
}

func TestGetItemNotFound(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Users":
			json.NewEncoder(w).Encode([]userDTO{{ID: "u1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	_, err := c.GetItem(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDirectStreamURLIncludesAPIKey(t *testing.T) {
	c := NewHTTPClient("http://jellyfin.local:8096", "secretkey", "u1")
	u, err := c.DirectStreamURL(context.Background(), "item-123")
	if err != nil {
		t.Fatal(err)
	}
	if want := "http://jellyfin.local:8096/Items/item-123/Download?"; u[:len(want)] != want {
		t.Errorf("DirectStreamURL = %q, want prefix %q", u, want)
	}
}

func TestListLibraries(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Library/VirtualFolders" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]libraryDTO{{ID: "lib1", Name: "Movies"}})
	})
	libs, err := c.ListLibraries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(libs) != 1 || libs[0].Name != "Movies" || libs[0].ID != "lib1" {
		t.Fatalf("libs = %+v", libs)
	}
}
