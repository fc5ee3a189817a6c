package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/nexusnu.db". ":memory:" opens a
// private in-memory database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/nexusnu.db"
	}

	dsn := "file::memory:?_foreign_keys=on"
	if dbPath != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{sqlStore: newSQLStore(db, isSQLiteUniqueViolation)}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'professor', 'admin')),
		bio TEXT NOT NULL DEFAULT '',
		major TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		profile_picture TEXT NOT NULL DEFAULT '',
		skills TEXT NOT NULL DEFAULT '[]',
		is_verified BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_certifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		platform TEXT NOT NULL,
		certificate_name TEXT NOT NULL DEFAULT '',
		issuer TEXT NOT NULL DEFAULT '',
		completion_date TEXT NOT NULL DEFAULT '',
		credential_id TEXT NOT NULL DEFAULT '',
		credential_url TEXT NOT NULL DEFAULT '',
		verified BOOLEAN NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (follower_id, followee_id)
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		tags TEXT NOT NULL DEFAULT '[]',
		image_url TEXT NOT NULL DEFAULT '',
		images TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS post_likes (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (post_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS post_comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		parent_comment_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		date DATETIME NOT NULL,
		location TEXT NOT NULL,
		organizer_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		max_participants INTEGER CHECK (max_participants IS NULL OR max_participants >= 1),
		tags TEXT NOT NULL DEFAULT '[]',
		image_url TEXT NOT NULL DEFAULT '',
		images TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS event_participants (
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (event_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS job_comments (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		rating INTEGER CHECK (rating IS NULL OR rating BETWEEN 1 AND 5),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_a TEXT NOT NULL,
		user_b TEXT NOT NULL,
		last_message_id TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (user_a < user_b),
		UNIQUE (user_a, user_b)
	);

	CREATE TABLE IF NOT EXISTS conversation_unread (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		unread_count INTEGER NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON post_comments(post_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
	CREATE INDEX IF NOT EXISTS idx_job_comments_job ON job_comments(job_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, recipient_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_user_b ON conversations(user_b);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
