package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(dir, "users.json"), filepath.Join(dir, "messages.json"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "taskdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{"json": fileStore, "sqlite": sqliteStore}
}

func TestStoreUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			u := &User{
				Username: "worker",
				Password: "secret",
				Role:     "Worker",
				Branches: []string{"Mzone"},
				Tasks:    []Task{NewTask("Sweep", PriorityLow, nil, now)},
			}
			require.NoError(t, s.UpsertUser(ctx, u))

			got, err := s.GetUser(ctx, "worker")
			require.NoError(t, err)
			assert.Equal(t, "worker", got.Username)
			assert.Equal(t, "secret", got.Password)
			assert.Equal(t, []string{"Mzone"}, got.Branches)
			require.Len(t, got.Tasks, 1)
			assert.Equal(t, u.Tasks[0].ID, got.Tasks[0].ID)
			assert.True(t, got.Tasks[0].CreatedAt.Equal(now))
			assert.Empty(t, got.PastTasks)

			_, err = s.GetUser(ctx, "nobody")
			assert.True(t, errors.Is(err, ErrUserNotFound))
		})
	}
}

func TestStoreUpdateUsersSkipsWriteWhenUnchanged(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertUser(ctx, &User{Username: "owner", Role: "Owner"}))

			err := s.UpdateUsers(ctx, func(dir Directory) (bool, error) {
				dir["owner"].Role = "Worker"
				return false, nil
			})
			require.NoError(t, err)

			boom := errors.New("boom")
			err = s.UpdateUsers(ctx, func(dir Directory) (bool, error) {
				dir["owner"].Role = "Worker"
				return true, boom
			})
			assert.ErrorIs(t, err, boom)

			got, err := s.GetUser(ctx, "owner")
			require.NoError(t, err)
			assert.Equal(t, "Owner", got.Role)
		})
	}
}

func TestStoreMessagesKeepAppendOrder(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, text := range []string{"first", "second", "third"} {
				require.NoError(t, s.AppendMessage(ctx, Message{ID: text, Sender: "owner", Text: text}))
			}
			msgs, err := s.Messages(ctx)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, "first", msgs[0].Text)
			assert.Equal(t, "third", msgs[2].Text)
			assert.NotNil(t, msgs[0].Recipients)
			assert.NotNil(t, msgs[0].Attachments)
		})
	}
}

func TestFileStoreAssignsStableIDsToLegacyTasks(t *testing.T) {
	dir := t.TempDir()
	usersPath := filepath.Join(dir, "users.json")
	legacy := `{
  "worker": {
    "password": "secret",
    "role": "Worker",
    "branches": ["Mzone"],
    "tasks": [{"description": "Old", "priority": "Mid", "status": "Incomplete"}]
  }
}`
	require.NoError(t, os.WriteFile(usersPath, []byte(legacy), 0644))

	s, err := NewFileStore(usersPath, filepath.Join(dir, "messages.json"))
	require.NoError(t, err)

	first, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	id := first["worker"].Tasks[0].ID
	assert.NotEmpty(t, id)
	assert.Empty(t, first["worker"].PastTasks)

	second, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, second["worker"].Tasks[0].ID)
}

func TestFileStoreMissingFilesLoadEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "data", "users.json"), filepath.Join(dir, "data", "messages.json"))
	require.NoError(t, err)

	users, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	msgs, err := s.Messages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "mongo"})
	assert.ErrorIs(t, err, ErrUnknownStore)
}

func TestUserPrivileged(t *testing.T) {
	for role, want := range map[string]bool{"Owner": true, "Leader": true, "IT": true, "Worker": false, "": false} {
		u := &User{Role: role}
		assert.Equal(t, want, u.Privileged(), role)
	}
}
