// Package storetest provides an in-memory store.Store fake so the
// scheduler, pool builder, maintainer, and stream proxy can be unit tested
// without a real sqlite file (spec.md §9 "injected dependencies").
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jellystream/jellystream/internal/store"
)

// MemStore is a minimal, non-concurrent-safe-beyond-a-mutex in-memory Store.
type MemStore struct {
	mu sync.Mutex

	Channels          map[int64]store.Channel
	LibraryBindings   map[int64][]store.LibraryBinding
	GenreFilters      map[int64][]store.GenreFilter
	CollectionSources map[int64][]store.CollectionSource
	Collections       map[int64]store.Collection
	CollectionItems   map[int64][]store.CollectionItem
	ScheduleEntries   map[int64][]store.ScheduleEntry

	nextEntryID int64
	lastRun     *time.Time
}

var _ store.Store = (*MemStore)(nil)

// New returns an empty MemStore ready to be populated by a test.
func New() *MemStore {
	return &MemStore{
		Channels:          make(map[int64]store.Channel),
		LibraryBindings:   make(map[int64][]store.LibraryBinding),
		GenreFilters:      make(map[int64][]store.GenreFilter),
		CollectionSources: make(map[int64][]store.CollectionSource),
		Collections:       make(map[int64]store.Collection),
		CollectionItems:   make(map[int64][]store.CollectionItem),
		ScheduleEntries:   make(map[int64][]store.ScheduleEntry),
	}
}

func (m *MemStore) GetChannel(_ context.Context, id int64) (*store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Channels[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *MemStore) ListEnabledChannels(_ context.Context) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Channel
	for _, c := range m.Channels {
		if c.Enabled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListGenreAutoChannels(_ context.Context) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Channel
	for _, c := range m.Channels {
		if c.Enabled && c.ScheduleType == store.ScheduleGenreAuto {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListLibraryBindings(_ context.Context, channelID int64) ([]store.LibraryBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.LibraryBinding(nil), m.LibraryBindings[channelID]...), nil
}

func (m *MemStore) ListGenreFilters(_ context.Context, channelID int64) ([]store.GenreFilter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.GenreFilter(nil), m.GenreFilters[channelID]...), nil
}

func (m *MemStore) ListCollectionSources(_ context.Context, channelID int64) ([]store.CollectionSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.CollectionSource(nil), m.CollectionSources[channelID]...), nil
}

func (m *MemStore) GetCollection(_ context.Context, id int64) (*store.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Collections[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *MemStore) ListCollectionItems(_ context.Context, collectionID int64) ([]store.CollectionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.CollectionItem(nil), m.CollectionItems[collectionID]...), nil
}

func (m *MemStore) CurrentScheduleEntry(_ context.Context, channelID int64, at time.Time) (*store.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.ScheduleEntries[channelID] {
		if !at.Before(e.StartTime) && at.Before(e.EndTime) {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ScheduleEntriesInWindow(_ context.Context, channelID int64, from, to time.Time) ([]store.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ScheduleEntry
	for _, e := range m.ScheduleEntries[channelID] {
		if e.StartTime.Before(to) && e.EndTime.After(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemStore) GetScheduleEntry(_ context.Context, id int64) (*store.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entries := range m.ScheduleEntries {
		for _, e := range entries {
			if e.ID == id {
				cp := e
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *MemStore) InsertScheduleEntries(_ context.Context, channelID int64, entries []store.ScheduleEntry, newWatermark time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Channels[channelID]
	if !ok {
		return fmt.Errorf("storetest: unknown channel %d", channelID)
	}
	for _, e := range entries {
		m.nextEntryID++
		e.ID = m.nextEntryID
		e.ChannelID = channelID
		m.ScheduleEntries[channelID] = append(m.ScheduleEntries[channelID], e)
	}
	if len(entries) > 0 {
		t := newWatermark
		c.ScheduleGeneratedThrough = &t
		m.Channels[channelID] = c
	}
	return nil
}

func (m *MemStore) DeleteScheduleEntries(_ context.Context, channelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ScheduleEntries, channelID)
	c, ok := m.Channels[channelID]
	if ok {
		c.ScheduleGeneratedThrough = nil
		m.Channels[channelID] = c
	}
	return nil
}

func (m *MemStore) GetMaintainerLastRun(_ context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastRun == nil {
		return nil, nil
	}
	t := *m.lastRun
	return &t, nil
}

func (m *MemStore) SetMaintainerLastRun(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := at
	m.lastRun = &t
	return nil
}

// Ping always succeeds; MemStore has no underlying connection to lose
// (satisfies internal/health.StoreChecker for tests).
func (m *MemStore) Ping(_ context.Context) error { return nil }
