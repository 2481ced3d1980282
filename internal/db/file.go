package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps users and chat messages in two JSON files. There is no
// cache: every call reads the file, and writes replace it wholesale via a
// temp file and rename.
type FileStore struct {
	usersPath    string
	messagesPath string
	mu           sync.Mutex
}

func NewFileStore(usersPath, messagesPath string) (*FileStore, error) {
	for _, p := range []string{usersPath, messagesPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &FileStore{usersPath: usersPath, messagesPath: messagesPath}, nil
}

func (s *FileStore) LoadUsers(ctx context.Context) (Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUsers()
}

func (s *FileStore) GetUser(ctx context.Context, username string) (*User, error) {
	dir, err := s.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	return getUser(dir, username)
}

func (s *FileStore) UpsertUser(ctx context.Context, u *User) error {
	return s.UpdateUsers(ctx, func(dir Directory) (bool, error) {
		dir[u.Username] = u
		return true, nil
	})
}

func (s *FileStore) UpdateUsers(ctx context.Context, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.loadUsers()
	if err != nil {
		return err
	}
	changed, err := fn(dir)
	if err != nil || !changed {
		return err
	}
	return writeJSON(s.usersPath, dir)
}

func (s *FileStore) AppendMessage(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.loadMessages()
	if err != nil {
		return err
	}
	normalizeMessage(&m)
	return writeJSON(s.messagesPath, append(msgs, m))
}

func (s *FileStore) Messages(ctx context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMessages()
}

func (s *FileStore) Close() error { return nil }

// loadUsers must be called with mu held. Tasks written before ids existed
// get one here and the file is rewritten so the ids stay stable.
func (s *FileStore) loadUsers() (Directory, error) {
	dir := Directory{}
	if err := readJSON(s.usersPath, &dir); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if dir.normalize() {
		if err := writeJSON(s.usersPath, dir); err != nil {
			return nil, err
		}
	}
	return dir, nil
}

func (s *FileStore) loadMessages() ([]Message, error) {
	msgs := []Message{}
	if err := readJSON(s.messagesPath, &msgs); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	for i := range msgs {
		normalizeMessage(&msgs[i])
	}
	return msgs, nil
}

// readJSON leaves v untouched when the file does not exist or is empty.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
