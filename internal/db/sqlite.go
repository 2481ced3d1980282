package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps each user record and chat message as a JSON document
// row, so it can stand in for FileStore without touching workflow code.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadUsers(ctx context.Context) (Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	dir, err := loadUsersTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if dir.normalize() {
		if err := saveUsersTx(ctx, tx, dir); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
	return dir, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*User, error) {
	dir, err := s.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	return getUser(dir, username)
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u *User) error {
	return s.UpdateUsers(ctx, func(dir Directory) (bool, error) {
		dir[u.Username] = u
		return true, nil
	})
}

func (s *SQLiteStore) UpdateUsers(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	dir, err := loadUsersTx(ctx, tx)
	if err != nil {
		return err
	}
	normalized := dir.normalize()
	if normalized {
		if err := saveUsersTx(ctx, tx, dir); err != nil {
			return err
		}
	}
	changed, err := fn(dir)
	if err != nil {
		return err
	}
	if !changed && !normalized {
		return nil
	}
	if changed {
		if err := saveUsersTx(ctx, tx, dir); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalizeMessage(&m)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO messages (id, data) VALUES (?, ?)", m.ID, string(data)); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Messages(ctx context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT data FROM messages ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var m Message
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		normalizeMessage(&m)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func loadUsersTx(ctx context.Context, tx *sql.Tx) (Directory, error) {
	rows, err := tx.QueryContext(ctx, "SELECT username, data FROM users")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	dir := Directory{}
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		var u User
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", name, err)
		}
		dir[name] = &u
	}
	return dir, rows.Err()
}

func saveUsersTx(ctx context.Context, tx *sql.Tx, dir Directory) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO users (username, data) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET data = excluded.data`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for name, u := range dir {
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user %s: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, string(data)); err != nil {
			return fmt.Errorf("upsert user %s: %w", name, err)
		}
	}
	return nil
}
