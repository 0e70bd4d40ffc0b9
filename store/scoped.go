package store

import (
	"context"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/ordering"
)

// Scoped narrows a Repository to the rows of one owner. Reads filter by
// owner; writes are only allowed on ids a scoped read has already returned,
// so an id belonging to someone else is ErrNotFound without touching it.
type Scoped struct {
	repo   Repository
	owner  string
	boards map[string]struct{}
	tasks  map[string]struct{}
}

func Scope(repo Repository, ownerID string) *Scoped {
	return &Scoped{repo: repo, owner: ownerID, boards: map[string]struct{}{}, tasks: map[string]struct{}{}}
}

func (s *Scoped) OwnerID() string { return s.owner }

func (s *Scoped) LockBoards(ctx context.Context) error { return s.repo.LockBoards(ctx, s.owner) }

func (s *Scoped) LockTasks(ctx context.Context, boardIDs ...string) error {
	return s.repo.LockTasks(ctx, boardIDs...)
}

func (s *Scoped) Boards(ctx context.Context) ([]model.Board, error) {
	boards, err := s.repo.FindBoards(ctx, s.owner)
	if err != nil {
		return nil, err
	}
	for _, b := range boards {
		s.boards[b.ID] = struct{}{}
	}
	return boards, nil
}

func (s *Scoped) Board(ctx context.Context, boardID string) (model.Board, error) {
	b, err := s.repo.FindBoard(ctx, s.owner, boardID)
	if err != nil {
		return model.Board{}, err
	}
	s.boards[b.ID] = struct{}{}
	return b, nil
}

func (s *Scoped) CreateBoard(ctx context.Context, title string, order int) (model.Board, error) {
	b, err := s.repo.CreateBoard(ctx, s.owner, title, order)
	if err != nil {
		return model.Board{}, err
	}
	s.boards[b.ID] = struct{}{}
	return b, nil
}

func (s *Scoped) UpdateBoard(ctx context.Context, boardID string, p model.BoardPatch) error {
	if _, ok := s.boards[boardID]; !ok {
		return ErrNotFound
	}
	return s.repo.UpdateBoard(ctx, boardID, p)
}

func (s *Scoped) DeleteBoard(ctx context.Context, boardID string) error {
	if _, ok := s.boards[boardID]; !ok {
		return ErrNotFound
	}
	if err := s.repo.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	delete(s.boards, boardID)
	return nil
}

// Tasks lists the tasks of an owned board.
func (s *Scoped) Tasks(ctx context.Context, boardID string) ([]model.Task, error) {
	if _, ok := s.boards[boardID]; !ok {
		if _, err := s.Board(ctx, boardID); err != nil {
			return nil, err
		}
	}
	tasks, err := s.repo.FindTasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	for _, tk := range tasks {
		s.tasks[tk.ID] = struct{}{}
	}
	return tasks, nil
}

func (s *Scoped) Task(ctx context.Context, taskID string) (model.Task, error) {
	tk, err := s.repo.FindTask(ctx, s.owner, taskID)
	if err != nil {
		return model.Task{}, err
	}
	s.tasks[tk.ID] = struct{}{}
	return tk, nil
}

func (s *Scoped) CreateTask(ctx context.Context, boardID, description string, order int) (model.Task, error) {
	if _, ok := s.boards[boardID]; !ok {
		return model.Task{}, ErrNotFound
	}
	tk, err := s.repo.CreateTask(ctx, boardID, s.owner, description, order)
	if err != nil {
		return model.Task{}, err
	}
	s.tasks[tk.ID] = struct{}{}
	return tk, nil
}

func (s *Scoped) UpdateTask(ctx context.Context, taskID string, p model.TaskPatch) error {
	if _, ok := s.tasks[taskID]; !ok {
		return ErrNotFound
	}
	if p.BoardID != nil {
		if _, ok := s.boards[*p.BoardID]; !ok {
			return ErrNotFound
		}
	}
	return s.repo.UpdateTask(ctx, taskID, p)
}

func (s *Scoped) DeleteTask(ctx context.Context, taskID string) error {
	if _, ok := s.tasks[taskID]; !ok {
		return ErrNotFound
	}
	if err := s.repo.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	delete(s.tasks, taskID)
	return nil
}

// SetBoardOrders persists position assignments computed by the ordering engine.
func (s *Scoped) SetBoardOrders(ctx context.Context, as []ordering.Assignment) error {
	for _, a := range as {
		order := a.Order
		if err := s.UpdateBoard(ctx, a.ID, model.BoardPatch{Order: &order}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scoped) SetTaskOrders(ctx context.Context, as []ordering.Assignment) error {
	for _, a := range as {
		order := a.Order
		if err := s.UpdateTask(ctx, a.ID, model.TaskPatch{Order: &order}); err != nil {
			return err
		}
	}
	return nil
}
