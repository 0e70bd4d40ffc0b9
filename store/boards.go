package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/emrecunlu/trello-clone/model"
)

func (t *Tx) FindBoards(ctx context.Context, ownerID string) ([]model.Board, error) {
	rows, err := t.query(ctx, `select id, owner_id, title, ord from boards where owner_id=? order by ord, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Board
	for rows.Next() {
		var b model.Board
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Order); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *Tx) FindBoard(ctx context.Context, ownerID, boardID string) (model.Board, error) {
	var b model.Board
	err := t.queryRow(ctx, `select id, owner_id, title, ord from boards where id=? and owner_id=?`, boardID, ownerID).
		Scan(&b.ID, &b.OwnerID, &b.Title, &b.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Board{}, ErrNotFound
	}
	return b, err
}

func (t *Tx) CreateBoard(ctx context.Context, ownerID, title string, order int) (model.Board, error) {
	b := model.Board{ID: ulid.Make().String(), OwnerID: ownerID, Title: title, Order: order}
	if _, err := t.exec(ctx, `insert into boards(id, owner_id, title, ord) values(?,?,?,?)`, b.ID, b.OwnerID, b.Title, b.Order); err != nil {
		return model.Board{}, err
	}
	return b, nil
}

func (t *Tx) UpdateBoard(ctx context.Context, boardID string, p model.BoardPatch) error {
	var set []string
	var args []any
	if p.Title != nil {
		set = append(set, "title=?")
		args = append(args, *p.Title)
	}
	if p.Order != nil {
		set = append(set, "ord=?")
		args = append(args, *p.Order)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, boardID)
	res, err := t.exec(ctx, "update boards set "+strings.Join(set, ", ")+" where id=?", args...)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// DeleteBoard removes the board and its tasks.
func (t *Tx) DeleteBoard(ctx context.Context, boardID string) error {
	if _, err := t.exec(ctx, `delete from tasks where board_id=?`, boardID); err != nil {
		return err
	}
	res, err := t.exec(ctx, `delete from boards where id=?`, boardID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (t *Tx) LockBoards(ctx context.Context, ownerID string) error {
	if t.dialect != Postgres {
		return nil
	}
	_, err := t.exec(ctx, `select id from users where id=? for no key update`, ownerID)
	return err
}

func (t *Tx) LockTasks(ctx context.Context, boardIDs ...string) error {
	if t.dialect != Postgres {
		return nil
	}
	ids := append([]string(nil), boardIDs...)
	sort.Strings(ids)
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		if _, err := t.exec(ctx, `select id from boards where id=? for update`, id); err != nil {
			return err
		}
	}
	return nil
}

// BoardsWithTasks returns the owner's boards in order, each carrying its
// ordered tasks, read from one snapshot.
func (s *Store) BoardsWithTasks(ctx context.Context, ownerID string) ([]model.Board, error) {
	var out []model.Board
	err := s.withTx(ctx, func(tx *Tx) error {
		boards, err := tx.FindBoards(ctx, ownerID)
		if err != nil {
			return err
		}
		rows, err := tx.query(ctx,
			`select id, board_id, owner_id, description, ord from tasks where owner_id=? order by board_id, ord, id`, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		byBoard := map[string][]model.Task{}
		for rows.Next() {
			var tk model.Task
			if err := rows.Scan(&tk.ID, &tk.BoardID, &tk.OwnerID, &tk.Description, &tk.Order); err != nil {
				return err
			}
			byBoard[tk.BoardID] = append(byBoard[tk.BoardID], tk)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for i := range boards {
			boards[i].Tasks = byBoard[boards[i].ID]
			if boards[i].Tasks == nil {
				boards[i].Tasks = []model.Task{}
			}
		}
		out = boards
		return nil
	})
	if out == nil && err == nil {
		out = []model.Board{}
	}
	return out, err
}
