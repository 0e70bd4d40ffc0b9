package main

import (
	"net/http"
	"time"
)

func (a *api) routes(mux *http.ServeMux) {
	// Auth endpoints
	mux.HandleFunc("POST /api/auth/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/me", a.handleMe)

	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/events", a.requireAuth(a.handleEvents))

	mux.HandleFunc("GET /api/boards", a.handleListBoards)
	mux.HandleFunc("POST /api/boards", a.handleCreateBoard)
	mux.HandleFunc("PATCH /api/boards/{id}", a.handleUpdateBoard)
	mux.HandleFunc("DELETE /api/boards/{id}", a.handleDeleteBoard)
	mux.HandleFunc("POST /api/boards/{id}/move", a.handleMoveBoard)

	mux.HandleFunc("POST /api/boards/{id}/tasks", a.handleCreateTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", a.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", a.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/move", a.handleMoveTask)
}
