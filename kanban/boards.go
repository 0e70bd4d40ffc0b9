package kanban

import (
	"context"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/ordering"
	"github.com/emrecunlu/trello-clone/store"
)

type BoardService struct {
	core
}

func NewBoardService(d Deps) *BoardService { return &BoardService{core: newCore(d)} }

// List returns the caller's boards in order, each with its ordered tasks.
func (s *BoardService) List(ctx context.Context) ([]model.Board, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	boards, err := s.Reader.BoardsWithTasks(ctx, owner)
	if err != nil {
		return nil, classify("list boards", err)
	}
	return boards, nil
}

// Create appends a board after the caller's last one.
func (s *BoardService) Create(ctx context.Context, title string) (model.Board, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return model.Board{}, err
	}
	title, err = validTitle(title)
	if err != nil {
		return model.Board{}, err
	}
	var b model.Board
	err = s.mutate(ctx, "create board", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		if err := sc.LockBoards(ctx); err != nil {
			return false, err
		}
		boards, err := sc.Boards(ctx)
		if err != nil {
			return false, err
		}
		b, err = sc.CreateBoard(ctx, title, ordering.AppendPosition(ordering.Max(boards)))
		if err != nil {
			return false, err
		}
		b.Tasks = []model.Task{}
		return true, nil
	})
	return b, err
}

// Delete removes a board with its tasks and closes the gap it leaves.
func (s *BoardService) Delete(ctx context.Context, boardID string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := validID("board id", boardID); err != nil {
		return err
	}
	return s.mutate(ctx, "delete board", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		if err := sc.LockBoards(ctx); err != nil {
			return false, err
		}
		b, err := sc.Board(ctx, boardID)
		if err != nil {
			return false, notFound(entityBoard, boardID, err)
		}
		if err := sc.DeleteBoard(ctx, boardID); err != nil {
			return false, notFound(entityBoard, boardID, err)
		}
		rest, err := sc.Boards(ctx)
		if err != nil {
			return false, err
		}
		return true, sc.SetBoardOrders(ctx, ordering.CloseGap(b.Order, rest))
	})
}

// Update renames a board. Its position is untouched.
func (s *BoardService) Update(ctx context.Context, boardID, title string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := validID("board id", boardID); err != nil {
		return err
	}
	title, err = validTitle(title)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "update board", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		b, err := sc.Board(ctx, boardID)
		if err != nil {
			return false, notFound(entityBoard, boardID, err)
		}
		if b.Title == title {
			return false, nil
		}
		return true, notFound(entityBoard, boardID, sc.UpdateBoard(ctx, boardID, model.BoardPatch{Title: &title}))
	})
}

// Reorder moves a board to the 1-based position newOrder, shifting the
// boards in between. Targets past the end land on the last position.
func (s *BoardService) Reorder(ctx context.Context, boardID string, newOrder int) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := validID("board id", boardID); err != nil {
		return err
	}
	if err := validOrder(newOrder); err != nil {
		return err
	}
	return s.mutate(ctx, "reorder board", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		if err := sc.LockBoards(ctx); err != nil {
			return false, err
		}
		boards, err := sc.Boards(ctx)
		if err != nil {
			return false, err
		}
		from := ordering.IndexOf(boards, boardID)
		if from < 0 {
			return false, &NotFoundError{Entity: entityBoard, ID: boardID}
		}
		to := ordering.IndexForOrder(len(boards), newOrder)
		if from == to {
			return false, nil
		}
		changes := ordering.Changes(boards, ordering.MoveWithinList(boards, from, to))
		return len(changes) > 0, sc.SetBoardOrders(ctx, changes)
	})
}
