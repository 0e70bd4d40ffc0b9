package main

import (
	"net/http"
)

type orderRequest struct {
	Order int `json:"order"`
}

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	writeResult(w, 200, a.actions.ListBoards(r.Context()))
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.log.Error("decode create board", "err", err)
		writeError(w, 400, "invalid payload")
		return
	}
	writeResult(w, 201, a.actions.CreateBoard(r.Context(), req.Title))
}

func (a *api) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	writeResult(w, 200, a.actions.UpdateBoard(r.Context(), r.PathValue("id"), req.Title))
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	writeResult(w, 200, a.actions.DeleteBoard(r.Context(), r.PathValue("id")))
}

func (a *api) handleMoveBoard(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	writeResult(w, 200, a.actions.ReorderBoard(r.Context(), r.PathValue("id"), req.Order))
}

// handleEvents streams "boards.changed" notifications for the caller.
func (a *api) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, _ := a.identity(r)
	a.bus.ServeSSE(w, r, id.UserID)
}
