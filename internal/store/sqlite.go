package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = time.RFC3339

// SQLStore is the sqlite-backed Store, grounded on the teacher's raw
// database/sql + modernc.org/sqlite style in internal/plex/lineup.go and
// internal/plex/epg.go — hand-written SQL, no ORM.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// Open creates (if needed) and migrates the sqlite database at dsn, enabling
// foreign-key enforcement so the cascade deletes in schema.sql actually fire.
func Open(dsn string) (*SQLStore, error) {
	path := dsn
	if !strings.Contains(path, "?") {
		path = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer avoids SQLITE_BUSY under WAL
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", dsn, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Ping confirms the underlying connection is alive, for /healthz
// (SPEC_FULL.md §6 "Health").
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, number, enabled, schedule_type, schedule_generated_through
		FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

func (s *SQLStore) ListEnabledChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, number, enabled, schedule_type, schedule_generated_through
		FROM channels WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list enabled channels: %w", err)
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (s *SQLStore) ListGenreAutoChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, number, enabled, schedule_type, schedule_generated_through
		FROM channels WHERE enabled = 1 AND schedule_type = ? ORDER BY id`, ScheduleGenreAuto)
	if err != nil {
		return nil, fmt.Errorf("store: list genre_auto channels: %w", err)
	}
	defer rows.Close()
	return scanChannels(rows)
}

func scanChannel(row *sql.Row) (*Channel, error) {
	var c Channel
	var enabled int
	var genThrough sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Number, &enabled, &c.ScheduleType, &genThrough); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan channel: %w", err)
	}
	c.Enabled = enabled != 0
	if genThrough.Valid {
		t, err := time.Parse(timeLayout, genThrough.String)
		if err != nil {
			return nil, fmt.Errorf("store: parse schedule_generated_through: %w", err)
		}
		c.ScheduleGeneratedThrough = &t
	}
	return &c, nil
}

func scanChannels(rows *sql.Rows) ([]Channel, error) {
	var out []Channel
	for rows.Next() {
		var c Channel
		var enabled int
		var genThrough sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Number, &enabled, &c.ScheduleType, &genThrough); err != nil {
			return nil, fmt.Errorf("store: scan channel row: %w", err)
		}
		c.Enabled = enabled != 0
		if genThrough.Valid {
			t, err := time.Parse(timeLayout, genThrough.String)
			if err != nil {
				return nil, fmt.Errorf("store: parse schedule_generated_through: %w", err)
			}
			c.ScheduleGeneratedThrough = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListLibraryBindings(ctx context.Context, channelID int64) ([]LibraryBinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, library_id, library_name, collection_type
		FROM library_bindings WHERE channel_id = ? ORDER BY id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: list library bindings: %w", err)
	}
	defer rows.Close()
	var out []LibraryBinding
	for rows.Next() {
		var b LibraryBinding
		if err := rows.Scan(&b.ID, &b.ChannelID, &b.LibraryID, &b.LibraryName, &b.CollectionType); err != nil {
			return nil, fmt.Errorf("store: scan library binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListGenreFilters(ctx context.Context, channelID int64) ([]GenreFilter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, genre, content_type, filter_type
		FROM genre_filters WHERE channel_id = ? ORDER BY id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: list genre filters: %w", err)
	}
	defer rows.Close()
	var out []GenreFilter
	for rows.Next() {
		var f GenreFilter
		if err := rows.Scan(&f.ID, &f.ChannelID, &f.Genre, &f.ContentType, &f.FilterType); err != nil {
			return nil, fmt.Errorf("store: scan genre filter: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListCollectionSources(ctx context.Context, channelID int64) ([]CollectionSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, collection_id
		FROM collection_sources WHERE channel_id = ? ORDER BY id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: list collection sources: %w", err)
	}
	defer rows.Close()
	var out []CollectionSource
	for rows.Next() {
		var c CollectionSource
		if err := rows.Scan(&c.ID, &c.ChannelID, &c.CollectionID); err != nil {
			return nil, fmt.Errorf("store: scan collection source: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, external_id FROM collections WHERE id = ?`, id)
	var c Collection
	if err := row.Scan(&c.ID, &c.Name, &c.ExternalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan collection: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) ListCollectionItems(ctx context.Context, collectionID int64) ([]CollectionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, sort_order, external_item_id, item_type, title,
		       series_name, season_number, episode_number, library_id,
		       duration_seconds, genres_json, description, content_rating,
		       air_date, file_path, thumbnail_path
		FROM collection_items WHERE collection_id = ? ORDER BY sort_order, id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("store: list collection items: %w", err)
	}
	defer rows.Close()
	var out []CollectionItem
	for rows.Next() {
		var it CollectionItem
		var season, episode sql.NullInt64
		if err := rows.Scan(&it.ID, &it.CollectionID, &it.SortOrder, &it.ExternalItemID,
			&it.ItemType, &it.Title, &it.SeriesName, &season, &episode, &it.LibraryID,
			&it.DurationSeconds, &it.GenresJSON, &it.Description, &it.ContentRating,
			&it.AirDate, &it.FilePath, &it.ThumbnailPath); err != nil {
			return nil, fmt.Errorf("store: scan collection item: %w", err)
		}
		if season.Valid {
			v := int(season.Int64)
			it.SeasonNumber = &v
		}
		if episode.Valid {
			v := int(episode.Int64)
			it.EpisodeNumber = &v
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLStore) CurrentScheduleEntry(ctx context.Context, channelID int64, at time.Time) (*ScheduleEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scheduleEntryCols+`
		FROM schedule_entries
		WHERE channel_id = ? AND start_time <= ? AND end_time > ?
		ORDER BY start_time LIMIT 1`, channelID, at.UTC().Format(timeLayout), at.UTC().Format(timeLayout))
	e, err := scanScheduleEntry(row)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLStore) GetScheduleEntry(ctx context.Context, id int64) (*ScheduleEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleEntryCols+` FROM schedule_entries WHERE id = ?`, id)
	return scanScheduleEntry(row)
}

func (s *SQLStore) ScheduleEntriesInWindow(ctx context.Context, channelID int64, from, to time.Time) ([]ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduleEntryCols+`
		FROM schedule_entries
		WHERE channel_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`, channelID, to.UTC().Format(timeLayout), from.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store: list schedule entries in window: %w", err)
	}
	defer rows.Close()
	var out []ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

const scheduleEntryCols = `id, channel_id, title, series_name, season_number, episode_number,
	external_item_id, library_id, item_type, genres_json, start_time, end_time,
	duration_seconds, file_path, description, content_rating, thumbnail_path, air_date`

type scannable interface {
	Scan(dest ...any) error
}

func scanScheduleEntry(row *sql.Row) (*ScheduleEntry, error) {
	e, err := scanScheduleEntryAny(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanScheduleEntryRows(rows *sql.Rows) (*ScheduleEntry, error) {
	return scanScheduleEntryAny(rows)
}

func scanScheduleEntryAny(s scannable) (*ScheduleEntry, error) {
	var e ScheduleEntry
	var season, episode sql.NullInt64
	var start, end string
	if err := s.Scan(&e.ID, &e.ChannelID, &e.Title, &e.SeriesName, &season, &episode,
		&e.ExternalItemID, &e.LibraryID, &e.ItemType, &e.GenresJSON, &start, &end,
		&e.DurationSeconds, &e.FilePath, &e.Description, &e.ContentRating,
		&e.ThumbnailPath, &e.AirDate); err != nil {
		return nil, err
	}
	if season.Valid {
		v := int(season.Int64)
		e.SeasonNumber = &v
	}
	if episode.Valid {
		v := int(episode.Int64)
		e.EpisodeNumber = &v
	}
	st, err := time.Parse(timeLayout, start)
	if err != nil {
		return nil, fmt.Errorf("store: parse start_time: %w", err)
	}
	en, err := time.Parse(timeLayout, end)
	if err != nil {
		return nil, fmt.Errorf("store: parse end_time: %w", err)
	}
	e.StartTime, e.EndTime = st, en
	return &e, nil
}

func (s *SQLStore) InsertScheduleEntries(ctx context.Context, channelID int64, entries []ScheduleEntry, newWatermark time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_entries
			(channel_id, title, series_name, season_number, episode_number,
			 external_item_id, library_id, item_type, genres_json, start_time, end_time,
			 duration_seconds, file_path, description, content_rating, thumbnail_path, air_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, channelID, e.Title, e.SeriesName, e.SeasonNumber, e.EpisodeNumber,
			e.ExternalItemID, e.LibraryID, e.ItemType, e.GenresJSON,
			e.StartTime.UTC().Format(timeLayout), e.EndTime.UTC().Format(timeLayout),
			e.DurationSeconds, e.FilePath, e.Description, e.ContentRating, e.ThumbnailPath, e.AirDate); err != nil {
			return fmt.Errorf("store: insert schedule entry: %w", err)
		}
	}

	if len(entries) > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE channels SET schedule_generated_through = ? WHERE id = ?`,
			newWatermark.UTC().Format(timeLayout), channelID); err != nil {
			return fmt.Errorf("store: update watermark: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) DeleteScheduleEntries(ctx context.Context, channelID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_entries WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("store: delete schedule entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE channels SET schedule_generated_through = NULL WHERE id = ?`, channelID); err != nil {
		return fmt.Errorf("store: clear watermark: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) GetMaintainerLastRun(ctx context.Context) (*time.Time, error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT last_run FROM maintainer_state WHERE id = 1`).Scan(&last); err != nil {
		return nil, fmt.Errorf("store: get maintainer last_run: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, last.String)
	if err != nil {
		return nil, fmt.Errorf("store: parse maintainer last_run: %w", err)
	}
	return &t, nil
}

func (s *SQLStore) SetMaintainerLastRun(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE maintainer_state SET last_run = ? WHERE id = 1`, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("store: set maintainer last_run: %w", err)
	}
	return nil
}
