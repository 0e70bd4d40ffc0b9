package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/store/storetest"
)

const testSecret = "test-secret"

type testServer struct {
	api     *api
	handler http.Handler
	redis   *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := storetest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := Config{
		SessionCookieName: "kanban_sess",
		SessionTTL:        time.Hour,
		BoardCacheTTL:     time.Minute,
		CookieSameSite:    "lax",
		DefaultLang:       "en",
		JWTSecret:         testSecret,
	}
	tokens, err := newTokenAuth(cfg)
	require.NoError(t, err)
	a := newAPI(st, rdb, tokens, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(a.bus.Close)
	mux := http.NewServeMux()
	a.routes(mux)
	return &testServer{api: a, handler: a.handler(mux), redis: mr}
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var res response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	}
	return rec, res
}

// register signs up a local user and returns a header carrying its session.
func (s *testServer) register(t *testing.T, email string) http.Header {
	t.Helper()
	rec, res := s.do(t, "POST", "/api/auth/register", map[string]string{"email": email, "password": "secret123", "name": "Ann"}, nil)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	require.True(t, res.Success)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "kanban_sess" {
			return http.Header{"Cookie": {c.Name + "=" + c.Value}}
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (s *testServer) boards(t *testing.T, h http.Header) []model.Board {
	t.Helper()
	rec, res := s.do(t, "GET", "/api/boards", nil, h)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	return decode[[]model.Board](t, res.Data)
}

func boardTitles(boards []model.Board) []string {
	out := make([]string, len(boards))
	for i, b := range boards {
		out[i] = b.Title
	}
	return out
}

func TestBoardAndTaskFlow(t *testing.T) {
	s := newTestServer(t)
	h := s.register(t, "ann@example.com")

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		rec, res := s.do(t, "POST", "/api/boards", map[string]string{"title": title}, h)
		require.Equal(t, 201, rec.Code, rec.Body.String())
		ids = append(ids, decode[model.Board](t, res.Data).ID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, boardTitles(s.boards(t, h)))

	rec, _ := s.do(t, "POST", "/api/boards/"+ids[0]+"/move", map[string]int{"order": 3}, h)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"B", "C", "A"}, boardTitles(s.boards(t, h)))

	rec, _ = s.do(t, "PATCH", "/api/boards/"+ids[2]+"", map[string]string{"title": "Done"}, h)
	require.Equal(t, 200, rec.Code)
	rec, _ = s.do(t, "DELETE", "/api/boards/"+ids[1], nil, h)
	require.Equal(t, 200, rec.Code)
	boards := s.boards(t, h)
	assert.Equal(t, []string{"Done", "A"}, boardTitles(boards))
	assert.Equal(t, 2, boards[1].Order)

	var tasks []model.Task
	for _, d := range []string{"t1", "t2"} {
		rec, res := s.do(t, "POST", "/api/boards/"+ids[0]+"/tasks", map[string]string{"description": d}, h)
		require.Equal(t, 201, rec.Code, rec.Body.String())
		tasks = append(tasks, decode[model.Task](t, res.Data))
	}
	rec, _ = s.do(t, "PATCH", "/api/tasks/"+tasks[1].ID, map[string]string{"description": "second"}, h)
	require.Equal(t, 200, rec.Code)
	rec, _ = s.do(t, "POST", "/api/tasks/"+tasks[0].ID+"/move", map[string]any{"board_id": ids[2], "order": 1}, h)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	boards = s.boards(t, h)
	require.Len(t, boards[0].Tasks, 1)
	assert.Equal(t, tasks[0].ID, boards[0].Tasks[0].ID)
	require.Len(t, boards[1].Tasks, 1)
	assert.Equal(t, "second", boards[1].Tasks[0].Description)
	assert.Equal(t, 1, boards[1].Tasks[0].Order)

	rec, _ = s.do(t, "DELETE", "/api/tasks/"+tasks[1].ID, nil, h)
	require.Equal(t, 200, rec.Code)
	assert.Empty(t, s.boards(t, h)[1].Tasks)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)

	rec, res := s.do(t, "GET", "/api/boards", nil, http.Header{"Accept-Language": {"tr-TR,tr;q=0.9"}})
	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "auth", res.Code)
	assert.Equal(t, "Hata: Kullanıcı bulunamadı", res.Message)

	h := s.register(t, "ann@example.com")
	rec, res = s.do(t, "POST", "/api/boards", map[string]string{"title": strings.Repeat("x", 31)}, h)
	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "validation", res.Code)
	assert.Equal(t, "Error: Title must be between 1 and 30 characters", res.Message)
	assert.Empty(t, s.boards(t, h))

	rec, res = s.do(t, "DELETE", "/api/boards/01HZZZZZZZZZZZZZZZZZZZZZZZ", nil, h)
	assert.Equal(t, 404, rec.Code)
	assert.Equal(t, "not_found", res.Code)

	rec, _ = s.do(t, "POST", "/api/boards", map[string]string{"name": "unknown field"}, h)
	assert.Equal(t, 400, rec.Code)

	rec, res = s.do(t, "POST", "/api/boards/x/move", map[string]int{"order": 0}, h)
	assert.Equal(t, 400, rec.Code)
	assert.False(t, res.Success)
}

func TestBoardsAreIsolatedPerUser(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "ann@example.com")
	bob := s.register(t, "bob@example.com")

	_, res := s.do(t, "POST", "/api/boards", map[string]string{"title": "Ann's"}, ann)
	b := decode[model.Board](t, res.Data)

	assert.Empty(t, s.boards(t, bob))
	rec, _ := s.do(t, "DELETE", "/api/boards/"+b.ID, nil, bob)
	assert.Equal(t, 404, rec.Code)
	assert.Len(t, s.boards(t, ann), 1)
}

func TestLoginLogoutAndMe(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ann@example.com")

	rec, _ := s.do(t, "POST", "/api/auth/login", map[string]string{"email": "ann@example.com", "password": "nope"}, nil)
	assert.Equal(t, 401, rec.Code)

	rec, _ = s.do(t, "POST", "/api/auth/login", map[string]string{"email": "ANN@example.com", "password": "secret123"}, nil)
	require.Equal(t, 200, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	h := http.Header{"Cookie": {cookies[0].Name + "=" + cookies[0].Value}}

	_, res := s.do(t, "GET", "/api/me", nil, h)
	me := decode[model.Identity](t, res.Data)
	assert.Equal(t, "ann@example.com", me.Email)

	rec, _ = s.do(t, "POST", "/api/auth/logout", nil, h)
	require.Equal(t, 200, rec.Code)
	_, res = s.do(t, "GET", "/api/me", nil, h)
	assert.True(t, res.Success)
	assert.Empty(t, res.Data)

	rec, _ = s.do(t, "POST", "/api/auth/register", map[string]string{"email": "ann@example.com", "password": "secret123"}, nil)
	assert.Equal(t, 409, rec.Code)
}

func signToken(t *testing.T, claims tokenClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func TestBearerTokenLinksUser(t *testing.T) {
	s := newTestServer(t)
	claims := tokenClaims{
		Email:    "gh@example.com",
		Name:     "Octo",
		Provider: "github",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	h := http.Header{"Authorization": {"Bearer " + signToken(t, claims)}}

	rec, _ := s.do(t, "POST", "/api/boards", map[string]string{"title": "From token"}, h)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"From token"}, boardTitles(s.boards(t, h)))

	u, err := s.api.store.UpsertUser(context.Background(), "gh@example.com", "github", "Octo", "")
	require.NoError(t, err)
	_, res := s.do(t, "GET", "/api/me", nil, h)
	assert.Equal(t, u.ID, decode[model.Identity](t, res.Data).UserID)

	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	rec, _ = s.do(t, "GET", "/api/boards", nil, http.Header{"Authorization": {"Bearer " + signToken(t, claims)}})
	assert.Equal(t, 401, rec.Code)

	rec, _ = s.do(t, "GET", "/api/boards", nil, http.Header{"Authorization": {"Token abc"}})
	assert.Equal(t, 401, rec.Code)
}

func TestBearerClaimsUpsertOnlyWhenChanged(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	claims := tokenClaims{
		Email:    "gh@example.com",
		Name:     "Octo",
		Provider: "github",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	h := http.Header{"Authorization": {"Bearer " + signToken(t, claims)}}

	_, res := s.do(t, "GET", "/api/me", nil, h)
	id := decode[model.Identity](t, res.Data).UserID
	require.NotEmpty(t, id)

	// A profile change made elsewhere survives repeated requests with the
	// same claims.
	_, err := s.api.store.UpsertUser(ctx, "gh@example.com", "github", "Renamed", "")
	require.NoError(t, err)
	rec, _ := s.do(t, "GET", "/api/boards", nil, h)
	require.Equal(t, 200, rec.Code)
	u, err := s.api.store.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.Name)
	assert.Equal(t, 1, s.api.linked.Len())

	claims.Name = "Octo 2"
	h = http.Header{"Authorization": {"Bearer " + signToken(t, claims)}}
	_, res = s.do(t, "GET", "/api/me", nil, h)
	assert.Equal(t, id, decode[model.Identity](t, res.Data).UserID)
	u, err = s.api.store.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Octo 2", u.Name)
}

func TestBoardListCacheIsEvicted(t *testing.T) {
	s := newTestServer(t)
	h := s.register(t, "ann@example.com")
	_, res := s.do(t, "GET", "/api/me", nil, h)
	key := "kanban:boards:" + decode[model.Identity](t, res.Data).UserID

	s.boards(t, h)
	assert.True(t, s.redis.Exists(key))

	rec, _ := s.do(t, "POST", "/api/boards", map[string]string{"title": "A"}, h)
	require.Equal(t, 201, rec.Code)
	assert.False(t, s.redis.Exists(key))
	assert.Len(t, s.boards(t, h), 1)
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t)
	h := s.register(t, "ann@example.com")
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header = h.Clone()
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	rec, _ := s.do(t, "POST", "/api/boards", map[string]string{"title": "A"}, h)
	require.Equal(t, 201, rec.Code)

	for {
		line, err = rd.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event:") {
			break
		}
	}
	assert.Equal(t, "event: boards.changed\n", line)
	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))
	ev := decode[Event](t, json.RawMessage(strings.TrimPrefix(strings.TrimSpace(line), "data: ")))
	assert.Equal(t, "boards.changed", ev.Type)

	rec, _ = s.do(t, "GET", "/api/events", nil, nil)
	assert.Equal(t, 401, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	var last int
	for i := 0; i < 21; i++ {
		rec, _ := s.do(t, "POST", "/api/auth/register", map[string]string{}, nil)
		last = rec.Code
	}
	assert.Equal(t, 429, last)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, "GET", "/api/health", nil, nil)
	assert.Equal(t, 200, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = s.do(t, "GET", "/api/health", nil, http.Header{"X-Request-Id": {"abc"}})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestLoadConfigOverlay(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("DEFAULT_LANG", "tr")
	path := filepath.Join(t.TempDir(), "kanban.toml")
	require.NoError(t, os.WriteFile(path, []byte("addr = \":7000\"\nboard_cache_ttl = \"30s\"\ncookie_samesite = \"strict\"\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.BoardCacheTTL)
	assert.Equal(t, "tr", cfg.DefaultLang)
	assert.Equal(t, http.SameSiteStrictMode, cfg.sameSite())
	assert.Equal(t, slog.LevelInfo, cfg.level())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
