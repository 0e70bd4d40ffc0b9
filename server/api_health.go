package main

import (
	"net/http"
	"time"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DB().PingContext(r.Context()); err != nil {
		a.log.Error("health", "err", err)
		writeJSON(w, 503, map[string]any{"ok": false, "ts": time.Now().UTC().Format(time.RFC3339)})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}
