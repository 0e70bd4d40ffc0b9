package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/store"
	"github.com/emrecunlu/trello-clone/store/storetest"
)

func TestBoardCRUD(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.User(t, s, "ann@example.com")
	seeded := storetest.Boards(t, s, u.ID, "Todo", "Doing")

	err := s.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		boards, err := repo.FindBoards(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, boards, 2)
		assert.Equal(t, "Todo", boards[0].Title)
		assert.Equal(t, 2, boards[1].Order)

		title := "Done"
		require.NoError(t, repo.UpdateBoard(ctx, seeded[1].ID, model.BoardPatch{Title: &title}))
		b, err := repo.FindBoard(ctx, u.ID, seeded[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "Done", b.Title)
		assert.Equal(t, 2, b.Order)

		_, err = repo.FindBoard(ctx, "someone-else", seeded[1].ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, repo.UpdateBoard(ctx, "missing", model.BoardPatch{Title: &title}), store.ErrNotFound)
		assert.NoError(t, repo.UpdateBoard(ctx, seeded[0].ID, model.BoardPatch{}))
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteBoardCascadesTasks(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.User(t, s, "ann@example.com")
	b := storetest.Boards(t, s, u.ID, "Todo")[0]
	tasks := storetest.Tasks(t, s, u.ID, b.ID, "a", "b")

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		return repo.DeleteBoard(ctx, b.ID)
	}))
	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		_, err := repo.FindTask(ctx, u.ID, tasks[0].ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteBoard(ctx, b.ID), store.ErrNotFound)
		return nil
	}))
}

func TestRunTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.User(t, s, "ann@example.com")

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		if _, err := repo.CreateBoard(ctx, u.ID, "Todo", 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	boards, err := s.BoardsWithTasks(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, boards)
}

func TestConstraintViolation(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.User(t, s, "ann@example.com")

	err := s.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		_, err := repo.CreateBoard(ctx, u.ID, strings.Repeat("x", 31), 1)
		return err
	})
	require.Error(t, err)
	assert.True(t, store.ConstraintViolation(err))
	assert.False(t, store.ConstraintViolation(errors.New("plain")))
}

func TestBoardsWithTasks(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	ann := storetest.User(t, s, "ann@example.com")
	bob := storetest.User(t, s, "bob@example.com")
	boards := storetest.Boards(t, s, ann.ID, "Todo", "Done")
	storetest.Tasks(t, s, ann.ID, boards[0].ID, "one", "two")
	storetest.Boards(t, s, bob.ID, "Bob's")

	got, err := s.BoardsWithTasks(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, got[0].Tasks, 2)
	assert.Equal(t, "one", got[0].Tasks[0].Description)
	assert.Equal(t, 2, got[0].Tasks[1].Order)
	assert.NotNil(t, got[1].Tasks)
	assert.Empty(t, got[1].Tasks)
}

func TestScopedRejectsForeignIDs(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	ann := storetest.User(t, s, "ann@example.com")
	bob := storetest.User(t, s, "bob@example.com")
	bobBoard := storetest.Boards(t, s, bob.ID, "Bob's")[0]
	bobTask := storetest.Tasks(t, s, bob.ID, bobBoard.ID, "secret")[0]

	err := s.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		sc := store.Scope(repo, ann.ID)
		title := "mine now"
		assert.ErrorIs(t, sc.UpdateBoard(ctx, bobBoard.ID, model.BoardPatch{Title: &title}), store.ErrNotFound)
		assert.ErrorIs(t, sc.DeleteBoard(ctx, bobBoard.ID), store.ErrNotFound)
		assert.ErrorIs(t, sc.DeleteTask(ctx, bobTask.ID), store.ErrNotFound)
		_, err := sc.Tasks(ctx, bobBoard.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = sc.Task(ctx, bobTask.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = sc.CreateTask(ctx, bobBoard.ID, "x", 1)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	got, err := s.BoardsWithTasks(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob's", got[0].Title)
	assert.Len(t, got[0].Tasks, 1)
}

func TestUsersAndSessions(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := s.CreateUser(ctx, "ann@example.com", string(hash), "Ann")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "ann@example.com", string(hash), "Ann again")
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = s.CreateUser(ctx, " Ann@Example.com", string(hash), "Ann shouting")
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Authenticate(ctx, "ANN@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = s.Authenticate(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, store.ErrNotFound)

	token, exp, err := s.CreateSession(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
	su, err := s.UserBySession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Ann", su.Name)

	require.NoError(t, s.DeleteSession(ctx, token))
	_, err = s.UserBySession(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)

	expired, _, err := s.CreateSession(ctx, u.ID, -time.Minute)
	require.NoError(t, err)
	_, err = s.UserBySession(ctx, expired)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertUser(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	first, err := s.UpsertUser(ctx, "ann@example.com", "github", "Ann", "https://a/1.png")
	require.NoError(t, err)
	second, err := s.UpsertUser(ctx, "ann@example.com", "github", "Ann B.", "https://a/2.png")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ann B.", second.Name)

	mixed, err := s.UpsertUser(ctx, "ANN@example.com", "github", "Ann B.", "https://a/2.png")
	require.NoError(t, err)
	assert.Equal(t, first.ID, mixed.ID)

	other, err := s.UpsertUser(ctx, "ann@example.com", "google", "Ann", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	byID, err := s.UserByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://a/2.png", byID.AvatarURL)
}

func TestEmailsAreStoredLowerCase(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("first-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := s.CreateUser(ctx, "Ann@Example.com", string(hash), "Ann")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)

	other, err := bcrypt.GenerateFromPassword([]byte("second-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "ann@example.com", string(other), "Ann")
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Authenticate(ctx, "ann@example.com", "first-pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = s.Authenticate(ctx, "ann@example.com", "second-pw")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
