package model

import "time"

type Board struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
	Tasks   []Task `json:"tasks"`
}

func (b Board) Key() string { return b.ID }
func (b Board) Position() int { return b.Order }
func (b Board) WithPosition(n int) Board {
	b.Order = n
	return b
}

// Clone returns a copy of b whose task slice is not shared with b.
func (b Board) Clone() Board {
	if b.Tasks != nil {
		b.Tasks = append(make([]Task, 0, len(b.Tasks)), b.Tasks...)
	}
	return b
}

type Task struct {
	ID          string `json:"id"`
	BoardID     string `json:"board_id"`
	OwnerID     string `json:"owner_id"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

func (t Task) Key() string { return t.ID }
func (t Task) Position() int { return t.Order }
func (t Task) WithPosition(n int) Task {
	t.Order = n
	return t
}

// BoardPatch lists the board columns an update may touch; nil fields are left alone.
type BoardPatch struct {
	Title *string
	Order *int
}

type TaskPatch struct {
	BoardID     *string
	Description *string
	Order       *int
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated caller as seen by the services.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, DisplayName: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}

// CloneBoards deep-copies a board list including each board's tasks.
func CloneBoards(in []Board) []Board {
	if in == nil {
		return nil
	}
	out := make([]Board, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
