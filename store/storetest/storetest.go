// Package storetest opens isolated in-memory databases for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/store"
)

// New returns a migrated store backed by a fresh in-memory sqlite database.
func New(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:testdb_%s?mode=memory&cache=shared", ulid.Make())
	s, err := store.Open(ctx, dsn)
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx), "migrate test db")
	return s
}

// User inserts a local user with the given email.
func User(t testing.TB, s *store.Store, email string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "", email)
	require.NoError(t, err, "create user %s", email)
	return u
}

// Boards seeds boards for owner in the given order and returns them.
func Boards(t testing.TB, s *store.Store, ownerID string, titles ...string) []model.Board {
	t.Helper()
	var out []model.Board
	err := s.RunTransaction(context.Background(), func(ctx context.Context, repo store.Repository) error {
		for i, title := range titles {
			b, err := repo.CreateBoard(ctx, ownerID, title, i+1)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	require.NoError(t, err, "seed boards")
	return out
}

// Tasks seeds tasks on a board in the given order.
func Tasks(t testing.TB, s *store.Store, ownerID, boardID string, descriptions ...string) []model.Task {
	t.Helper()
	var out []model.Task
	err := s.RunTransaction(context.Background(), func(ctx context.Context, repo store.Repository) error {
		for i, d := range descriptions {
			tk, err := repo.CreateTask(ctx, boardID, ownerID, d, i+1)
			if err != nil {
				return err
			}
			out = append(out, tk)
		}
		return nil
	})
	require.NoError(t, err, "seed tasks")
	return out
}
