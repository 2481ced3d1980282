package db

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUnknownStore = errors.New("unknown storage backend")
)

// UpdateFunc mutates the directory in place. Returning false (or an error)
// discards the mutation and nothing is written.
type UpdateFunc func(dir Directory) (changed bool, err error)

// Store is the repository the workflow and chat code depend on. Every call
// reads the backing storage afresh; UpdateUsers is a whole-directory
// load, mutate, save cycle serialised within the process.
type Store interface {
	LoadUsers(ctx context.Context) (Directory, error)
	GetUser(ctx context.Context, username string) (*User, error)
	UpsertUser(ctx context.Context, u *User) error
	UpdateUsers(ctx context.Context, fn UpdateFunc) error

	AppendMessage(ctx context.Context, m Message) error
	Messages(ctx context.Context) ([]Message, error)

	Close() error
}

type Options struct {
	Backend      string
	UsersFile    string
	MessagesFile string
	SQLitePath   string
}

// Open returns the Store selected by opts.Backend ("json" or "sqlite").
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "json":
		return NewFileStore(opts.UsersFile, opts.MessagesFile)
	case "sqlite":
		return NewSQLiteStore(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, opts.Backend)
	}
}

func getUser(dir Directory, username string) (*User, error) {
	u, ok := dir[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return u, nil
}
