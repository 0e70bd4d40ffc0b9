package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/emrecunlu/trello-clone/model"
)

func (t *Tx) FindTasks(ctx context.Context, boardID string) ([]model.Task, error) {
	rows, err := t.query(ctx,
		`select id, board_id, owner_id, description, ord from tasks where board_id=? order by ord, id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Task
	for rows.Next() {
		var tk model.Task
		if err := rows.Scan(&tk.ID, &tk.BoardID, &tk.OwnerID, &tk.Description, &tk.Order); err != nil {
			return nil, err
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

func (t *Tx) FindTask(ctx context.Context, ownerID, taskID string) (model.Task, error) {
	var tk model.Task
	err := t.queryRow(ctx,
		`select id, board_id, owner_id, description, ord from tasks where id=? and owner_id=?`, taskID, ownerID).
		Scan(&tk.ID, &tk.BoardID, &tk.OwnerID, &tk.Description, &tk.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	return tk, err
}

func (t *Tx) CreateTask(ctx context.Context, boardID, ownerID, description string, order int) (model.Task, error) {
	tk := model.Task{ID: ulid.Make().String(), BoardID: boardID, OwnerID: ownerID, Description: description, Order: order}
	_, err := t.exec(ctx, `insert into tasks(id, board_id, owner_id, description, ord) values(?,?,?,?,?)`,
		tk.ID, tk.BoardID, tk.OwnerID, tk.Description, tk.Order)
	if err != nil {
		return model.Task{}, err
	}
	return tk, nil
}

func (t *Tx) UpdateTask(ctx context.Context, taskID string, p model.TaskPatch) error {
	var set []string
	var args []any
	if p.BoardID != nil {
		set = append(set, "board_id=?")
		args = append(args, *p.BoardID)
	}
	if p.Description != nil {
		set = append(set, "description=?")
		args = append(args, *p.Description)
	}
	if p.Order != nil {
		set = append(set, "ord=?")
		args = append(args, *p.Order)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, taskID)
	res, err := t.exec(ctx, "update tasks set "+strings.Join(set, ", ")+" where id=?", args...)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (t *Tx) DeleteTask(ctx context.Context, taskID string) error {
	res, err := t.exec(ctx, `delete from tasks where id=?`, taskID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
