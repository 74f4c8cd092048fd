package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"tubedigest/model"
)

type Postgres struct {
	db *sql.DB
}

var pgMigration = []string{
	`CREATE TYPE video_state AS ENUM ('pending', 'completed', 'failed')`,
	`CREATE TABLE videos (
video_id VARCHAR(255) PRIMARY KEY,
channel_ref VARCHAR(255),
published_at TIMESTAMPTZ,
state video_state NOT NULL,
summary_text TEXT NOT NULL DEFAULT '',
fail_reason TEXT NOT NULL DEFAULT '',
created_at TIMESTAMPTZ NOT NULL,
updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX idx_videos_state ON videos (state)`,
	`CREATE TABLE channels (
channel_ref VARCHAR(255) PRIMARY KEY,
display_name VARCHAR(255) NOT NULL DEFAULT '',
language_hint VARCHAR(16) NOT NULL DEFAULT 'es',
active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE users (
user_id VARCHAR(255) PRIMARY KEY,
username VARCHAR(255) NOT NULL DEFAULT '',
active BOOLEAN NOT NULL DEFAULT TRUE,
created_at TIMESTAMPTZ NOT NULL,
updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE user_channels (
user_id VARCHAR(255) NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
channel_ref VARCHAR(255) NOT NULL REFERENCES channels(channel_ref) ON DELETE CASCADE,
subscribed_at TIMESTAMPTZ NOT NULL,
PRIMARY KEY (user_id, channel_ref)
)`,
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	createMigration := `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`
	if err := migrate(db, createMigration, `INSERT INTO migration (query) VALUES ($1)`, pgMigration); err != nil {
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Lookup(ctx context.Context, id model.VideoID) (*model.VideoRecord, error) {
	row := p.db.QueryRowContext(ctx, `
SELECT video_id, COALESCE(channel_ref, ''), COALESCE(published_at, to_timestamp(0)), state, summary_text, fail_reason, created_at, updated_at
FROM videos WHERE video_id = $1`, string(id))

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

func (p *Postgres) BeginProcessing(ctx context.Context, id model.VideoID, channel model.ChannelRef, publishedAt time.Time) (*Lease, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin processing %s: %w", id, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
INSERT INTO videos (video_id, channel_ref, published_at, state, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, 'pending', $4, $4)
ON CONFLICT (video_id) DO NOTHING`,
		string(id), string(channel), publishedAt, now)
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
			`SELECT state FROM videos WHERE video_id = $1 FOR UPDATE`, string(id)).Scan(&state); err != nil {
			return nil, fmt.Errorf("begin processing %s: %w", id, err)
		}
		if state != model.StateFailed {
			return nil, ErrAlreadyInFlight
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE videos SET state = 'pending', fail_reason = '', updated_at = $2
WHERE video_id = $1`, string(id), now); err != nil {
			return nil, fmt.Errorf("begin processing %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("begin processing %s: %w", id, err)
	}

	return &Lease{ID: id, store: p}, nil
}

func (p *Postgres) Complete(ctx context.Context, id model.VideoID, summary string) error {
	res, err := p.db.ExecContext(ctx, `
UPDATE videos SET state = 'completed', summary_text = $2, updated_at = $3
WHERE video_id = $1 AND state = 'pending'`,
		string(id), summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete video %s: %w", id, err)
	}

	return requireOneRow(res, id)
}

func (p *Postgres) Fail(ctx context.Context, id model.VideoID, reason string) error {
	res, err := p.db.ExecContext(ctx, `
UPDATE videos SET state = 'failed', fail_reason = $2, updated_at = $3
WHERE video_id = $1 AND state = 'pending'`,
		string(id), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail video %s: %w", id, err)
	}

	return requireOneRow(res, id)
}

func (p *Postgres) ActiveChannels(ctx context.Context) ([]model.ChannelConfig, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT channel_ref, display_name, language_hint, active
FROM channels WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (p *Postgres) Subscribers(ctx context.Context, channel model.ChannelRef) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT u.user_id, u.username, u.active
FROM users u
JOIN user_channels uc ON uc.user_id = u.user_id
WHERE uc.channel_ref = $1 AND u.active`, string(channel))
	if err != nil {
		return nil, fmt.Errorf("list subscribers of %s: %w", channel, err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (p *Postgres) User(ctx context.Context, id model.UserID) (*model.User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT user_id, username, active FROM users WHERE user_id = $1`, string(id))

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

func (p *Postgres) SaveUser(ctx context.Context, user model.User) error {
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
INSERT INTO users (user_id, username, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id) DO UPDATE SET
username = EXCLUDED.username,
active = EXCLUDED.active,
updated_at = EXCLUDED.updated_at`,
		string(user.UserID), user.Username, user.Active, now)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.UserID, err)
	}

	return nil
}

func requireOneRow(res sql.Result, id model.VideoID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no pending record for video %s: %w", id, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanChannels(rows rowScanner) ([]model.ChannelConfig, error) {
	channels := []model.ChannelConfig{}
	for rows.Next() {
		var ch model.ChannelConfig
		if err := rows.Scan(&ch.ChannelRef, &ch.DisplayName, &ch.LanguageHint, &ch.Active); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

func scanUsers(rows rowScanner) ([]model.User, error) {
	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.UserID, &u.Username, &u.Active); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
