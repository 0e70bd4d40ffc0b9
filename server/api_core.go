package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"

	"github.com/emrecunlu/trello-clone/kanban"
	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/store"
)

type api struct {
	store   *store.Store
	actions *kanban.Actions
	tokens  *tokenAuth
	bus     *EventBus
	cfg     Config
	lang    language.Tag
	log     *slog.Logger
	// users resolved from bearer claims, keyed by linkKey
	linked *expirable.LRU[string, model.User]
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

// newAPI wires the services: board lists are read through the Redis cache
// when rdb is set, and every committed mutation evicts the cache entry and
// notifies the owner's event streams.
func newAPI(st *store.Store, rdb *redis.Client, tokens *tokenAuth, cfg Config, log *slog.Logger) *api {
	cache := store.NewCache(st, rdb, cfg.BoardCacheTTL)
	bus := NewEventBus()
	actions := kanban.NewActions(kanban.Deps{
		Store:      st,
		Reader:     cache,
		Invalidate: kanban.Invalidators{cache, bus},
		Log:        log,
	})
	return &api{
		store:   st,
		actions: actions,
		tokens:  tokens,
		bus:     bus,
		cfg:     cfg,
		lang:    kanban.ParseLanguage(cfg.DefaultLang),
		log:     log,
		linked:  expirable.NewLRU[string, model.User](1024, nil, 5*time.Minute),
		rl:      map[string]*rateBucket{},
	}
}

// handler wraps the mux with request logging, language negotiation and
// identity resolution.
func (a *api) handler(mux *http.ServeMux) http.Handler {
	return withLogging(a.log, a.withLanguage(a.withIdentity(mux)))
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{count: 0, resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r.RemoteAddr, name, max, window) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, kanban.Result{Message: msg})
}

// writeResult sends res with the status its code maps to; ok is used on
// success.
func writeResult(w http.ResponseWriter, ok int, res kanban.Result) {
	status := ok
	switch res.Code {
	case kanban.CodeOK:
	case kanban.CodeValidation:
		status = http.StatusBadRequest
	case kanban.CodeAuth:
		status = http.StatusUnauthorized
	case kanban.CodeNotFound:
		status = http.StatusNotFound
	case kanban.CodeConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	if !res.Success && status == ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// cookie/session helpers
func (a *api) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: a.cfg.sameSite(),
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
	})
}

func (a *api) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: a.cfg.sameSite(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// currentUser resolves the caller from a bearer token, linking it to a user
// on first sight, or from the session cookie. Tokens are verified on every
// request; the upsert only runs when the claims were not seen recently.
func (a *api) currentUser(r *http.Request) (model.User, error) {
	if h := r.Header.Get("Authorization"); h != "" && a.tokens != nil {
		claims, err := a.tokens.Verify(h)
		if err != nil {
			return model.User{}, err
		}
		key := claims.linkKey()
		if u, ok := a.linked.Get(key); ok {
			return u, nil
		}
		u, err := a.store.UpsertUser(r.Context(), claims.Email, claims.Provider, claims.Name, claims.Picture)
		if err != nil {
			return model.User{}, err
		}
		a.linked.Add(key, u)
		return u, nil
	}
	c, err := r.Cookie(a.cfg.SessionCookieName)
	if err != nil || c.Value == "" {
		return model.User{}, store.ErrNotFound
	}
	return a.store.UserBySession(r.Context(), c.Value)
}

// withIdentity attaches the caller, when there is one, to the request
// context. Anonymous requests pass through; the services reject them.
func (a *api) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.currentUser(r)
		switch {
		case err == nil:
			r = r.WithContext(kanban.WithIdentity(r.Context(), u.Identity()))
		case !errors.Is(err, store.ErrNotFound):
			a.log.Debug("identity", "path", r.URL.Path, "err", err)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) identity(r *http.Request) (model.Identity, bool) {
	return kanban.ContextIdentity{}.CurrentIdentity(r.Context())
}

// requireAuth rejects anonymous callers of handlers that do not go through
// the services.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.identity(r); !ok {
			writeResult(w, http.StatusOK, kanban.Fail(r.Context(), kanban.ErrAuth))
			return
		}
		next(w, r)
	}
}

func (a *api) withLanguage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := kanban.MatchLanguage(r.Header.Get("Accept-Language"), a.lang)
		next.ServeHTTP(w, r.WithContext(kanban.WithLanguage(r.Context(), tag)))
	})
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status,
			"dur_ms", time.Since(start).Milliseconds(), "request_id", id)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Implement http.Flusher if underlying writer supports it (needed for SSE)
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
