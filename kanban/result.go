package kanban

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrecunlu/trello-clone/model"
)

type Code string

const (
	CodeOK          Code = ""
	CodeValidation  Code = "validation"
	CodeAuth        Code = "auth"
	CodeNotFound    Code = "not_found"
	CodeTransaction Code = "transaction"
	CodeConflict    Code = "conflict"
	CodeUnknown     Code = "unknown"
)

// Result is what a mutation reports to its caller. Failures never escape as
// errors past this boundary.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    Code   `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// CodeOf classifies err into a Result code.
func CodeOf(err error) Code {
	var (
		ve *ValidationError
		ae *AuthError
		nf *NotFoundError
		te *TransactionError
	)
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &ve):
		return CodeValidation
	case errors.As(err, &ae):
		return CodeAuth
	case errors.As(err, &nf):
		return CodeNotFound
	case errors.As(err, &te):
		if te.Constraint() {
			return CodeConflict
		}
		return CodeTransaction
	}
	return CodeUnknown
}

// Fail converts err into a failed Result with a localized message.
func Fail(ctx context.Context, err error) Result {
	return Result{Message: Localize(ctx, err), Code: CodeOf(err)}
}

// Actions exposes the services behind the Result boundary.
type Actions struct {
	Boards *BoardService
	Tasks  *TaskService
}

func NewActions(d Deps) *Actions {
	return &Actions{Boards: NewBoardService(d), Tasks: NewTaskService(d)}
}

func (a *Actions) run(ctx context.Context, op string, fn func() (any, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.Boards.Log.Error("panic", "op", op, "recovered", r)
			res = Fail(ctx, fmt.Errorf("%s: panic: %v", op, r))
		}
	}()
	data, err := fn()
	if err != nil {
		return Fail(ctx, err)
	}
	return Result{Success: true, Data: data}
}

func (a *Actions) ListBoards(ctx context.Context) Result {
	return a.run(ctx, "list boards", func() (any, error) {
		boards, err := a.Boards.List(ctx)
		if boards == nil {
			boards = []model.Board{}
		}
		return boards, err
	})
}

func (a *Actions) CreateBoard(ctx context.Context, title string) Result {
	return a.run(ctx, "create board", func() (any, error) {
		b, err := a.Boards.Create(ctx, title)
		return b, err
	})
}

func (a *Actions) UpdateBoard(ctx context.Context, boardID, title string) Result {
	return a.run(ctx, "update board", func() (any, error) {
		return nil, a.Boards.Update(ctx, boardID, title)
	})
}

func (a *Actions) DeleteBoard(ctx context.Context, boardID string) Result {
	return a.run(ctx, "delete board", func() (any, error) {
		return nil, a.Boards.Delete(ctx, boardID)
	})
}

func (a *Actions) ReorderBoard(ctx context.Context, boardID string, newOrder int) Result {
	return a.run(ctx, "reorder board", func() (any, error) {
		return nil, a.Boards.Reorder(ctx, boardID, newOrder)
	})
}

func (a *Actions) CreateTask(ctx context.Context, boardID, description string) Result {
	return a.run(ctx, "create task", func() (any, error) {
		tk, err := a.Tasks.Create(ctx, boardID, description)
		return tk, err
	})
}

func (a *Actions) UpdateTask(ctx context.Context, taskID, description string) Result {
	return a.run(ctx, "update task", func() (any, error) {
		return nil, a.Tasks.Update(ctx, taskID, description)
	})
}

func (a *Actions) DeleteTask(ctx context.Context, taskID string) Result {
	return a.run(ctx, "delete task", func() (any, error) {
		return nil, a.Tasks.Delete(ctx, taskID)
	})
}

func (a *Actions) UpdateTaskOrder(ctx context.Context, boardID, taskID string, newOrder int) Result {
	return a.run(ctx, "move task", func() (any, error) {
		return nil, a.Tasks.UpdateOrder(ctx, boardID, taskID, newOrder)
	})
}
