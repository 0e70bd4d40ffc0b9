package main

import (
	"net/http"
)

func (a *api) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.log.Error("decode create task", "err", err)
		writeError(w, 400, "invalid payload")
		return
	}
	writeResult(w, 201, a.actions.CreateTask(r.Context(), r.PathValue("id"), req.Description))
}

func (a *api) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	writeResult(w, 200, a.actions.UpdateTask(r.Context(), r.PathValue("id"), req.Description))
}

func (a *api) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	writeResult(w, 200, a.actions.DeleteTask(r.Context(), r.PathValue("id")))
}

// handleMoveTask places a task on board_id at order; board_id may differ
// from the task's current board.
func (a *api) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BoardID string `json:"board_id"`
		Order   int    `json:"order"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	writeResult(w, 200, a.actions.UpdateTaskOrder(r.Context(), req.BoardID, r.PathValue("id"), req.Order))
}
