// Package apitest is an in-memory task server for tests. It speaks the same
// HTTP API as the real backend and records every request it receives.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskboard-cli/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const Secret = "apitest-secret"

type account struct {
	user     model.User
	password string
}

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Body   string
	Auth   string
	ReqID  string
}

type Server struct {
	*httptest.Server

	mu            sync.Mutex
	accounts      map[int64]*account
	tasks         map[int64]model.Task
	notifications map[int64]model.Notification
	nextID        int64
	revoked       map[string]bool
	calls         []Call

	meFails bool
	hook    func(w http.ResponseWriter, r *http.Request) bool
}

// SetMeFails makes GET /users/me/ answer 500 (profile fallback path).
func (s *Server) SetMeFails(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meFails = v
}

// SetHook installs fn to run before each request is handled. Returning true
// means fn already wrote a response.
func (s *Server) SetHook(fn func(w http.ResponseWriter, r *http.Request) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// New starts a server seeded with admin/admin, gerente/gerente and
// viewer/viewer accounts.
func New() *Server {
	s := &Server{
		accounts:      map[int64]*account{},
		tasks:         map[int64]model.Task{},
		notifications: map[int64]model.Notification{},
		revoked:       map[string]bool{},
		nextID:        1,
	}
	s.AddUser(model.User{Username: "admin", Email: "admin@x.com", Role: model.RoleAdmin}, "admin")
	s.AddUser(model.User{Username: "gerente", Email: "gerente@x.com", Role: model.RoleManagerial}, "gerente")
	s.AddUser(model.User{Username: "viewer", Email: "viewer@x.com", Role: model.RoleViewOnly}, "viewer")
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) AddUser(u model.User, password string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.accounts[u.ID] = &account{user: u, password: password}
	return u
}

func (s *Server) UserByName(name string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Username == name {
			return a.user, true
		}
	}
	return model.User{}, false
}

func (s *Server) AddTask(t model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	if t.Status == "" {
		t.Status = model.StatusPending
	}
	if a, ok := s.accounts[t.OwnerID]; ok {
		t.OwnerUsername = a.user.Username
	}
	if t.CreatedAt == nil {
		t.CreatedAt = &model.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	}
	s.tasks[t.ID] = t
	return t
}

func (s *Server) Task(id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Server) AddNotification(n model.Notification) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	if n.CreatedAt == nil {
		n.CreatedAt = &model.Timestamp{Time: time.Now().UTC()}
	}
	s.notifications[n.ID] = n
	return n
}

// IssueToken signs a token for username, as POST /token would.
func (s *Server) IssueToken(username string, ttl time.Duration) string {
	s.mu.Lock()
	var role model.Role
	for _, a := range s.accounts {
		if a.user.Username == username {
			role = a.user.Role
		}
	}
	s.mu.Unlock()
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  username,
		"role": string(role),
		"exp":  time.Now().Add(ttl).Unix(),
	}).SignedString([]byte(Secret))
	return tok
}

// Revoke makes every later request with token answer 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Count returns how many recorded requests match method and path ("" matches any).
func (s *Server) Count(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if (method == "" || c.Method == method) && (path == "" || c.Path == path) {
			n++
		}
	}
	return n
}

// Mutations counts POST, PUT and DELETE requests.
func (s *Server) Mutations() int {
	n := 0
	for _, c := range s.Calls() {
		switch c.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if c.Path != "/token" {
				n++
			}
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(raw),
		Auth:   r.Header.Get("Authorization"),
		ReqID:  r.Header.Get("X-Request-ID"),
	})
	hook := s.hook
	meFails := s.meFails
	s.mu.Unlock()

	if hook != nil && hook(w, r) {
		return
	}

	if r.URL.Path == "/token" && r.Method == http.MethodPost {
		s.handleToken(w, r, raw)
		return
	}

	me, ok := s.authenticate(r)
	if !ok {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	path := r.URL.Path
	switch {
	case path == "/users/me/" && r.Method == http.MethodGet:
		if meFails {
			detail(w, http.StatusInternalServerError, "profile unavailable")
			return
		}
		writeJSON(w, http.StatusOK, me)
	case path == "/tasks/":
		s.handleTasks(w, r, me, raw)
	case strings.HasPrefix(path, "/tasks/"):
		s.handleTask(w, r, me, strings.TrimPrefix(path, "/tasks/"), raw)
	case path == "/users/":
		s.handleUsers(w, r, me, raw)
	case strings.HasPrefix(path, "/users/"):
		s.handleUser(w, r, me, strings.TrimPrefix(path, "/users/"), raw)
	case strings.HasPrefix(path, "/notifications/"):
		s.handleNotifications(w, r, strings.TrimPrefix(path, "/notifications/"))
	default:
		detail(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request, raw []byte) {
	vals, _ := parseForm(string(raw))
	user, pass := vals["username"], vals["password"]
	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if a.user.Username == user && a.password == pass {
			found = a
		}
	}
	s.mu.Unlock()
	if found == nil {
		detail(w, http.StatusUnauthorized, "Usuário ou senha incorretos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.IssueToken(user, time.Hour),
		"token_type":   "bearer",
	})
}

func (s *Server) authenticate(r *http.Request) (model.User, bool) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || tok == "" {
		return model.User{}, false
	}
	s.mu.Lock()
	revoked := s.revoked[tok]
	s.mu.Unlock()
	if revoked {
		return model.User{}, false
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) { return []byte(Secret), nil })
	if err != nil || !parsed.Valid {
		return model.User{}, false
	}
	sub, _ := claims.GetSubject()
	u, ok := s.UserByName(sub)
	return u, ok
}

func (s *Server) sortedTasks() []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, me model.User, raw []byte) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		out := s.sortedTasks()
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var in model.TaskInput
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Title) == "" {
			detail(w, http.StatusUnprocessableEntity, "titulo is required")
			return
		}
		if me.Role == model.RoleViewOnly {
			detail(w, http.StatusForbidden, "Sem permissão")
			return
		}
		owner := me.ID
		if in.OwnerID != nil {
			owner = *in.OwnerID
		}
		t := s.AddTask(model.Task{Title: in.Title, Description: in.Description, Status: in.Status, OwnerID: owner})
		writeJSON(w, http.StatusOK, t)
	default:
		detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, me model.User, idStr string, raw []byte) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		detail(w, http.StatusNotFound, "Tarefa não encontrada")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		detail(w, http.StatusNotFound, "Tarefa não encontrada")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var in model.TaskInput
		if err := json.Unmarshal(raw, &in); err != nil {
			detail(w, http.StatusUnprocessableEntity, "invalid body")
			return
		}
		if in.Status == model.StatusDone && me.Role == model.RoleViewOnly {
			detail(w, http.StatusForbidden, "Usuários com perfil visualização não podem concluir tarefas")
			return
		}
		t.Title, t.Description, t.Status = in.Title, in.Description, in.Status
		if in.OwnerID != nil {
			a, ok := s.accounts[*in.OwnerID]
			if !ok {
				detail(w, http.StatusNotFound, "Usuário destino não encontrado")
				return
			}
			t.OwnerID, t.OwnerUsername = a.user.ID, a.user.Username
		}
		s.tasks[id] = t
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		delete(s.tasks, id)
		writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})
	default:
		detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, me model.User, raw []byte) {
	if me.Role == model.RoleViewOnly {
		detail(w, http.StatusForbidden, "Sem permissão")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		out := make([]model.User, 0, len(s.accounts))
		for _, a := range s.accounts {
			out = append(out, a.user)
		}
		s.mu.Unlock()
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var in model.UserInput
		if err := json.Unmarshal(raw, &in); err != nil {
			detail(w, http.StatusUnprocessableEntity, "invalid body")
			return
		}
		if _, exists := s.UserByName(in.Username); exists {
			detail(w, http.StatusBadRequest, "Username já registrado")
			return
		}
		u := s.AddUser(model.User{Username: in.Username, Email: in.Email, Role: in.Role}, in.Password)
		writeJSON(w, http.StatusOK, u)
	default:
		detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, me model.User, idStr string, raw []byte) {
	id, err := strconv.ParseInt(strings.TrimSuffix(idStr, "/"), 10, 64)
	if err != nil {
		detail(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		detail(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	switch r.Method {
	case http.MethodPut:
		if me.Role == model.RoleManagerial && a.user.Role == model.RoleAdmin {
			detail(w, http.StatusForbidden, "Gerenciais não podem editar administradores")
			return
		}
		var in model.UserInput
		if err := json.Unmarshal(raw, &in); err != nil {
			detail(w, http.StatusUnprocessableEntity, "invalid body")
			return
		}
		a.user.Username, a.user.Email, a.user.Role = in.Username, in.Email, in.Role
		if in.Password != "" {
			a.password = in.Password
		}
		writeJSON(w, http.StatusOK, a.user)
	case http.MethodDelete:
		if me.Role != model.RoleAdmin {
			detail(w, http.StatusForbidden, "Sem permissão")
			return
		}
		delete(s.accounts, id)
		writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})
	default:
		detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, rest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case rest == "" && r.Method == http.MethodGet:
		out := make([]model.Notification, 0, len(s.notifications))
		for _, n := range s.notifications {
			out = append(out, n)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		writeJSON(w, http.StatusOK, out)
	case rest == "unread-count" && r.Method == http.MethodGet:
		n := 0
		for _, it := range s.notifications {
			if !it.Read {
				n++
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
	case rest == "read-all" && r.Method == http.MethodPut:
		for id, it := range s.notifications {
			it.Read = true
			s.notifications[id] = it
		}
		writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})
	case strings.HasSuffix(rest, "/read") && r.Method == http.MethodPut:
		id, err := strconv.ParseInt(strings.TrimSuffix(rest, "/read"), 10, 64)
		it, ok := s.notifications[id]
		if err != nil || !ok {
			detail(w, http.StatusNotFound, "Notificação não encontrada")
			return
		}
		it.Read = true
		s.notifications[id] = it
		writeJSON(w, http.StatusOK, it)
	default:
		detail(w, http.StatusNotFound, "Not Found")
	}
}

func parseForm(body string) (map[string]string, error) {
	out := map[string]string{}
	req, err := http.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := req.ParseForm(); err != nil {
		return out, err
	}
	for k := range req.PostForm {
		out[k] = req.PostForm.Get(k)
	}
	return out, nil
}
