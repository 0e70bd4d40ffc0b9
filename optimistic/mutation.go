package optimistic

import (
	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/ordering"
)

// Mutation is a local edit of the board mirror. Apply receives a private
// copy it may modify and returns the resulting list. A mutation naming an
// id the mirror does not hold leaves the list unchanged.
type Mutation interface {
	Apply(boards []model.Board) []model.Board
}

type MoveBoard struct {
	BoardID string
	Order   int
}

func (m MoveBoard) Apply(boards []model.Board) []model.Board {
	from := ordering.IndexOf(boards, m.BoardID)
	if from < 0 {
		return boards
	}
	return ordering.MoveWithinList(boards, from, ordering.IndexForOrder(len(boards), m.Order))
}

// MoveTask places a task at Order on BoardID, which may be another board.
type MoveTask struct {
	TaskID  string
	BoardID string
	Order   int
}

func (m MoveTask) Apply(boards []model.Board) []model.Board {
	src := boardOfTask(boards, m.TaskID)
	dst := ordering.IndexOf(boards, m.BoardID)
	if src < 0 || dst < 0 {
		return boards
	}
	if src == dst {
		tasks := boards[src].Tasks
		from := ordering.IndexOf(tasks, m.TaskID)
		boards[src].Tasks = ordering.MoveWithinList(tasks, from, ordering.IndexForOrder(len(tasks), m.Order))
		return boards
	}
	dstTasks := boards[dst].Tasks
	newSrc, newDst, _ := ordering.MoveAcrossLists(boards[src].Tasks, dstTasks, m.TaskID, ordering.InsertIndexForOrder(len(dstTasks), m.Order))
	for i := range newDst {
		newDst[i].BoardID = m.BoardID
	}
	boards[src].Tasks, boards[dst].Tasks = newSrc, newDst
	return boards
}

// AddBoard appends Board after the last board, ignoring Board.Order.
type AddBoard struct {
	Board model.Board
}

func (m AddBoard) Apply(boards []model.Board) []model.Board {
	b := m.Board.Clone()
	if b.Tasks == nil {
		b.Tasks = []model.Task{}
	}
	b.Order = ordering.AppendPosition(ordering.Max(boards))
	return append(boards, b)
}

type RemoveBoard struct {
	BoardID string
}

func (m RemoveBoard) Apply(boards []model.Board) []model.Board {
	i := ordering.IndexOf(boards, m.BoardID)
	if i < 0 {
		return boards
	}
	return ordering.Renumber(append(boards[:i], boards[i+1:]...))
}

type RenameBoard struct {
	BoardID string
	Title   string
}

func (m RenameBoard) Apply(boards []model.Board) []model.Board {
	if i := ordering.IndexOf(boards, m.BoardID); i >= 0 {
		boards[i].Title = m.Title
	}
	return boards
}

// AddTask appends Task to the end of Task.BoardID.
type AddTask struct {
	Task model.Task
}

func (m AddTask) Apply(boards []model.Board) []model.Board {
	i := ordering.IndexOf(boards, m.Task.BoardID)
	if i < 0 {
		return boards
	}
	tk := m.Task
	tk.Order = ordering.AppendPosition(ordering.Max(boards[i].Tasks))
	boards[i].Tasks = append(boards[i].Tasks, tk)
	return boards
}

type RemoveTask struct {
	TaskID string
}

func (m RemoveTask) Apply(boards []model.Board) []model.Board {
	b := boardOfTask(boards, m.TaskID)
	if b < 0 {
		return boards
	}
	tasks := boards[b].Tasks
	i := ordering.IndexOf(tasks, m.TaskID)
	boards[b].Tasks = ordering.Renumber(append(tasks[:i], tasks[i+1:]...))
	return boards
}

type EditTask struct {
	TaskID      string
	Description string
}

func (m EditTask) Apply(boards []model.Board) []model.Board {
	if b := boardOfTask(boards, m.TaskID); b >= 0 {
		i := ordering.IndexOf(boards[b].Tasks, m.TaskID)
		boards[b].Tasks[i].Description = m.Description
	}
	return boards
}

func boardOfTask(boards []model.Board, taskID string) int {
	for i, b := range boards {
		if ordering.IndexOf(b.Tasks, taskID) >= 0 {
			return i
		}
	}
	return -1
}

// bind rewrites a create mutation with the server's copy of the entity it
// added, which carries the server-assigned id. The returned func renames the
// placeholder in a list the original mutation was already applied to.
func bind(m Mutation, data any) (Mutation, func([]model.Board), bool) {
	switch m := m.(type) {
	case AddBoard:
		b, ok := serverCopy[model.Board](data)
		if !ok || b.ID == "" {
			return m, nil, false
		}
		placeholder := m.Board.ID
		return AddBoard{Board: b}, func(boards []model.Board) {
			i := ordering.IndexOf(boards, placeholder)
			if i < 0 {
				return
			}
			boards[i].ID, boards[i].OwnerID, boards[i].Title = b.ID, b.OwnerID, b.Title
			for j := range boards[i].Tasks {
				boards[i].Tasks[j].BoardID = b.ID
			}
		}, true
	case AddTask:
		tk, ok := serverCopy[model.Task](data)
		if !ok || tk.ID == "" {
			return m, nil, false
		}
		placeholder := m.Task.ID
		return AddTask{Task: tk}, func(boards []model.Board) {
			bi := boardOfTask(boards, placeholder)
			if bi < 0 {
				return
			}
			i := ordering.IndexOf(boards[bi].Tasks, placeholder)
			boards[bi].Tasks[i].ID = tk.ID
			boards[bi].Tasks[i].Description = tk.Description
		}, true
	}
	return m, nil, false
}

func serverCopy[T any](data any) (T, bool) {
	switch v := data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}
