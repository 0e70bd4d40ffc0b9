package kanban

import (
	"context"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/ordering"
	"github.com/emrecunlu/trello-clone/store"
)

type TaskService struct {
	core
}

func NewTaskService(d Deps) *TaskService { return &TaskService{core: newCore(d)} }

// Create appends a task to the end of an owned board.
func (s *TaskService) Create(ctx context.Context, boardID, description string) (model.Task, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return model.Task{}, err
	}
	if err := validID("board id", boardID); err != nil {
		return model.Task{}, err
	}
	description, err = validDescription(description)
	if err != nil {
		return model.Task{}, err
	}
	var tk model.Task
	err = s.mutate(ctx, "create task", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		if _, err := sc.Board(ctx, boardID); err != nil {
			return false, notFound(entityBoard, boardID, err)
		}
		if err := sc.LockBoards(ctx); err != nil {
			return false, err
		}
		if err := sc.LockTasks(ctx, boardID); err != nil {
			return false, err
		}
		tasks, err := sc.Tasks(ctx, boardID)
		if err != nil {
			return false, notFound(entityBoard, boardID, err)
		}
		tk, err = sc.CreateTask(ctx, boardID, description, ordering.AppendPosition(ordering.Max(tasks)))
		return err == nil, err
	})
	return tk, err
}

// Delete removes a task and closes the gap on its board.
func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := validID("task id", taskID); err != nil {
		return err
	}
	return s.mutate(ctx, "delete task", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		tk, err := lockTask(ctx, sc, taskID)
		if err != nil {
			return false, err
		}
		if err := sc.DeleteTask(ctx, taskID); err != nil {
			return false, notFound(entityTask, taskID, err)
		}
		rest, err := sc.Tasks(ctx, tk.BoardID)
		if err != nil {
			return false, err
		}
		return true, sc.SetTaskOrders(ctx, ordering.CloseGap(tk.Order, rest))
	})
}

// Update edits a task's description. Its position is untouched.
func (s *TaskService) Update(ctx context.Context, taskID, description string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := validID("task id", taskID); err != nil {
		return err
	}
	description, err = validDescription(description)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "update task", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		tk, err := sc.Task(ctx, taskID)
		if err != nil {
			return false, notFound(entityTask, taskID, err)
		}
		if tk.Description == description {
			return false, nil
		}
		return true, notFound(entityTask, taskID, sc.UpdateTask(ctx, taskID, model.TaskPatch{Description: &description}))
	})
}

// UpdateOrder places a task at the 1-based position newOrder of boardID.
// When boardID is not the task's current board the task is re-homed and
// both boards are renumbered in the same transaction.
func (s *TaskService) UpdateOrder(ctx context.Context, boardID, taskID string, newOrder int) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if err := validID("board id", boardID); err != nil {
		return err
	}
	if err := validID("task id", taskID); err != nil {
		return err
	}
	if err := validOrder(newOrder); err != nil {
		return err
	}
	return s.mutate(ctx, "move task", owner, func(ctx context.Context, sc *store.Scoped) (bool, error) {
		if _, err := sc.Board(ctx, boardID); err != nil {
			return false, notFound(entityBoard, boardID, err)
		}
		tk, err := lockTask(ctx, sc, taskID, boardID)
		if err != nil {
			return false, err
		}
		if tk.BoardID == boardID {
			return moveWithinBoard(ctx, sc, boardID, taskID, newOrder)
		}
		return moveAcrossBoards(ctx, sc, tk.BoardID, boardID, taskID, newOrder)
	})
}

func moveWithinBoard(ctx context.Context, sc *store.Scoped, boardID, taskID string, newOrder int) (bool, error) {
	tasks, err := sc.Tasks(ctx, boardID)
	if err != nil {
		return false, err
	}
	from := ordering.IndexOf(tasks, taskID)
	if from < 0 {
		return false, &NotFoundError{Entity: entityTask, ID: taskID}
	}
	to := ordering.IndexForOrder(len(tasks), newOrder)
	if from == to {
		return false, nil
	}
	changes := ordering.Changes(tasks, ordering.MoveWithinList(tasks, from, to))
	return len(changes) > 0, sc.SetTaskOrders(ctx, changes)
}

func moveAcrossBoards(ctx context.Context, sc *store.Scoped, srcID, dstID, taskID string, newOrder int) (bool, error) {
	src, err := sc.Tasks(ctx, srcID)
	if err != nil {
		return false, err
	}
	dst, err := sc.Tasks(ctx, dstID)
	if err != nil {
		return false, err
	}
	newSrc, newDst, ok := ordering.MoveAcrossLists(src, dst, taskID, ordering.InsertIndexForOrder(len(dst), newOrder))
	if !ok {
		return false, &NotFoundError{Entity: entityTask, ID: taskID}
	}
	if err := sc.SetTaskOrders(ctx, ordering.Changes(src, newSrc)); err != nil {
		return false, err
	}
	var rest []ordering.Assignment
	for _, a := range ordering.Changes(dst, newDst) {
		if a.ID != taskID {
			rest = append(rest, a)
			continue
		}
		order := a.Order
		if err := sc.UpdateTask(ctx, taskID, model.TaskPatch{BoardID: &dstID, Order: &order}); err != nil {
			return false, err
		}
	}
	return true, sc.SetTaskOrders(ctx, rest)
}

// lockTask takes the owner lock, then locks the task's board together with
// any extra boards in one call so the repository can order them. Every
// writer that moves tasks between boards holds the owner lock, so the task
// read under it cannot change boards before the board locks are taken.
func lockTask(ctx context.Context, sc *store.Scoped, taskID string, extra ...string) (model.Task, error) {
	if err := sc.LockBoards(ctx); err != nil {
		return model.Task{}, err
	}
	tk, err := sc.Task(ctx, taskID)
	if err != nil {
		return model.Task{}, notFound(entityTask, taskID, err)
	}
	if err := sc.LockTasks(ctx, append(extra, tk.BoardID)...); err != nil {
		return model.Task{}, err
	}
	return tk, nil
}
