package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tubedigest/model"
)

// Sqlite backs the store with a single database file. Write transactions
// are opened immediate so that concurrent BeginProcessing calls serialize
// on the store itself, same as the Postgres row lock does.
type Sqlite struct {
	db *sql.DB
}

var sqliteMigration = []string{
	`CREATE TABLE videos (
video_id TEXT PRIMARY KEY,
channel_ref TEXT,
published_at TIMESTAMP,
state TEXT NOT NULL CHECK (state IN ('pending', 'completed', 'failed')),
summary_text TEXT NOT NULL DEFAULT '',
fail_reason TEXT NOT NULL DEFAULT '',
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX idx_videos_state ON videos (state)`,
	`CREATE TABLE channels (
channel_ref TEXT PRIMARY KEY,
display_name TEXT NOT NULL DEFAULT '',
language_hint TEXT NOT NULL DEFAULT 'es',
active INTEGER NOT NULL DEFAULT 1
)`,
	`CREATE TABLE users (
user_id TEXT PRIMARY KEY,
username TEXT NOT NULL DEFAULT '',
active INTEGER NOT NULL DEFAULT 1,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE user_channels (
user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
channel_ref TEXT NOT NULL REFERENCES channels(channel_ref) ON DELETE CASCADE,
subscribed_at TIMESTAMP NOT NULL,
PRIMARY KEY (user_id, channel_ref)
)`,
}

func NewSqlite(path string) (*Sqlite, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	createMigration := `CREATE TABLE IF NOT EXISTS migration
("id" INTEGER PRIMARY KEY AUTOINCREMENT, "query" TEXT)`
	if err := migrate(db, createMigration, `INSERT INTO migration (query) VALUES (?)`, sqliteMigration); err != nil {
		return nil, err
	}

	return &Sqlite{db: db}, nil
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) Lookup(ctx context.Context, id model.VideoID) (*model.VideoRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT video_id, COALESCE(channel_ref, ''), published_at, state, summary_text, fail_reason, created_at, updated_at
FROM videos WHERE video_id = ?`, string(id))

	var rec model.VideoRecord
	err := row.Scan(&rec.VideoID, &rec.ChannelRef, &rec.PublishedAt, &rec.State,
		&rec.SummaryText, &rec.FailReason, &rec.CreatedAt, &rec.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("lookup video %s: %w", id, err)
	}

	return &rec, nil
}

func (s *Sqlite) BeginProcessing(ctx context.Context, id model.VideoID, channel model.ChannelRef, publishedAt time.Time) (*Lease, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin processing %s: %w", id, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
INSERT INTO videos (video_id, channel_ref, published_at, state, created_at, updated_at)
VALUES (?, NULLIF(?, ''), ?, 'pending', ?, ?)
ON CONFLICT (video_id) DO NOTHING`,
		string(id), string(channel), publishedAt, now, now)
	if err != nil {
		return nil, fmt.Errorf("begin processing %s: %w", id, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		var state model.VideoState
		if err := tx.QueryRowContext(ctx,
			`SELECT state FROM videos WHERE video_id = ?`, string(id)).Scan(&state); err != nil {
			return nil, fmt.Errorf("begin processing %s: %w", id, err)
		}
		if state != model.StateFailed {
			return nil, ErrAlreadyInFlight
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE videos SET state = 'pending', fail_reason = '', updated_at = ?
WHERE video_id = ?`, now, string(id)); err != nil {
			return nil, fmt.Errorf("begin processing %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("begin processing %s: %w", id, err)
	}

	return &Lease{ID: id, store: s}, nil
}

func (s *Sqlite) Complete(ctx context.Context, id model.VideoID, summary string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE videos SET state = 'completed', summary_text = ?, updated_at = ?
WHERE video_id = ? AND state = 'pending'`,
		summary, time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("complete video %s: %w", id, err)
	}

	return requireOneRow(res, id)
}

func (s *Sqlite) Fail(ctx context.Context, id model.VideoID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE videos SET state = 'failed', fail_reason = ?, updated_at = ?
WHERE video_id = ? AND state = 'pending'`,
		reason, time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("fail video %s: %w", id, err)
	}

	return requireOneRow(res, id)
}

func (s *Sqlite) ActiveChannels(ctx context.Context) ([]model.ChannelConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT channel_ref, display_name, language_hint, active
FROM channels WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (s *Sqlite) Subscribers(ctx context.Context, channel model.ChannelRef) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT u.user_id, u.username, u.active
FROM users u
JOIN user_channels uc ON uc.user_id = u.user_id
WHERE uc.channel_ref = ? AND u.active = 1`, string(channel))
	if err != nil {
		return nil, fmt.Errorf("list subscribers of %s: %w", channel, err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (s *Sqlite) User(ctx context.Context, id model.UserID) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, active FROM users WHERE user_id = ?`, string(id))

	var user model.User
	err := row.Scan(&user.UserID, &user.Username, &user.Active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}

	return &user, nil
}

func (s *Sqlite) SaveUser(ctx context.Context, user model.User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (user_id, username, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
username = excluded.username,
active = excluded.active,
updated_at = excluded.updated_at`,
		string(user.UserID), user.Username, user.Active, now, now)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.UserID, err)
	}

	return nil
}
