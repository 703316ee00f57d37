// Package testutil provides testing utilities.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tgienger/taskboard/internal/models"
)

// Request is a request the fake backend received
type Request struct {
	Method    string
	Path      string
	Body      string
	Auth      string
	RequestID string
}

// Account is a login the fake backend accepts
type Account struct {
	Password string
	User     models.User
}

// FakeBackend is an in-memory implementation of the REST backend for testing.
// Mount it with Start, or use it directly as an http.Handler.
type FakeBackend struct {
	mu       sync.Mutex
	users    []models.User
	projects []models.Project
	tasks    []models.Task
	comments []models.Comment
	nextID   int64
	requests []Request
	accounts map[string]Account

	// Error injection for testing, keyed by route pattern, e.g.
	// "PATCH /tasks/{id}/status". The value is the status to reply with.
	Fail map[string]int

	// Gate, when set, holds each reply until it yields a value or is closed
	Gate chan struct{}

	// TokenField names the login response field carrying the token
	TokenField string

	mux *http.ServeMux
}

// NewFakeBackend creates an empty backend
func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{
		nextID:     100,
		accounts:   make(map[string]Account),
		Fail:       make(map[string]int),
		TokenField: "token",
		mux:        http.NewServeMux(),
	}
	f.routes()
	return f
}

// Start serves f on an httptest server closed at the end of the test. It
// returns the API root.
func (f *FakeBackend) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

// Seed helpers

func (f *FakeBackend) AddUser(u models.User) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = f.id(u.ID)
	f.users = append(f.users, u)
	return u
}

func (f *FakeBackend) AddProject(p models.Project) models.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id(p.ID)
	f.projects = append(f.projects, p)
	return p
}

func (f *FakeBackend) AddTask(t models.Task) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id(t.ID)
	f.tasks = append(f.tasks, t)
	return t
}

func (f *FakeBackend) AddComment(c models.Comment) models.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id(c.ID)
	f.comments = append(f.comments, c)
	return c
}

// AddAccount lets username sign in with password as u
func (f *FakeBackend) AddAccount(username, password string, u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[username] = Account{Password: password, User: u}
}

// Task returns the stored task with id
func (f *FakeBackend) Task(id int64) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Project returns the stored project with id
func (f *FakeBackend) Project(id int64) (models.Project, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

// Users returns the stored users
func (f *FakeBackend) Users() []models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.users)
}

// Requests returns every request received so far
func (f *FakeBackend) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// Count returns how many requests matched method and path
func (f *FakeBackend) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *FakeBackend) id(want int64) int64 {
	if want != 0 {
		return want
	}
	f.nextID++
	return f.nextID
}

// IssueToken signs a token for u the way the backend does. The signature is
// never checked by the client.
func IssueToken(u models.User, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   u.Username,
		"email": u.Email,
		"roles": []string{string(u.Role)},
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("fake-backend"))
	if err != nil {
		panic(err)
	}
	return token
}

func (f *FakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mux.ServeHTTP(w, r)
}

type handler func(w http.ResponseWriter, r *http.Request, caller models.User)

func (f *FakeBackend) handle(pattern string, h handler, public bool) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method:    r.Method,
			Path:      strings.TrimPrefix(r.URL.Path, "/api"),
			Body:      string(body),
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		status := f.Fail[strings.Replace(pattern, " /api", " ", 1)]
		gate := f.Gate
		f.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}

		var caller models.User
		if !public {
			var ok bool
			caller, ok = f.caller(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		h(w, r, caller)
	})
}

// caller resolves the bearer token's subject to a stored user
func (f *FakeBackend) caller(r *http.Request) (models.User, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return models.User{}, false
	}
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return models.User{}, false
	}
	sub, _ := claims["sub"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == sub {
			return u, true
		}
	}
	for name, a := range f.accounts {
		if name == sub {
			return a.User, true
		}
	}
	return models.User{}, false
}

func (f *FakeBackend) routes() {
	f.handle("POST /api/auth/login", f.login, true)
	f.handle("POST /api/auth/signup", f.signup, true)

	f.handle("GET /api/users", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]models.User, len(f.users))
		for i, u := range f.users {
			u.Password = ""
			out[i] = u
		}
		writeJSON(w, http.StatusOK, out)
	}, false)
	f.handle("GET /api/users/me", func(w http.ResponseWriter, r *http.Request, caller models.User) {
		caller.Password = ""
		writeJSON(w, http.StatusOK, caller)
	}, false)
	f.handle("POST /api/users", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var u models.User
		if !decode(w, r, &u) {
			return
		}
		f.mu.Lock()
		u.ID = f.id(0)
		f.users = append(f.users, u)
		f.mu.Unlock()
		u.Password = ""
		writeJSON(w, http.StatusCreated, u)
	}, false)
	f.handle("PUT /api/users/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var u models.User
		if !decode(w, r, &u) {
			return
		}
		id := pathID(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		i := slices.IndexFunc(f.users, func(x models.User) bool { return x.ID == id })
		if i < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
			return
		}
		u.ID = id
		if u.Password == "" {
			u.Password = f.users[i].Password
		}
		f.users[i] = u
		u.Password = ""
		writeJSON(w, http.StatusOK, u)
	}, false)
	f.handle("DELETE /api/users/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.remove(w, func() bool { return deleteByID(&f.users, pathID(r), func(u models.User) int64 { return u.ID }) })
	}, false)

	f.handle("GET /api/projects", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, nonNil(f.projects))
	}, false)
	f.handle("POST /api/projects", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var p models.Project
		if !decode(w, r, &p) {
			return
		}
		f.mu.Lock()
		p.ID = f.id(0)
		f.projects = append(f.projects, p)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, p)
	}, false)
	f.handle("PUT /api/projects/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var p models.Project
		if !decode(w, r, &p) {
			return
		}
		p.ID = pathID(r)
		f.replace(w, p, func() bool {
			i := slices.IndexFunc(f.projects, func(x models.Project) bool { return x.ID == p.ID })
			if i >= 0 {
				f.projects[i] = p
			}
			return i >= 0
		})
	}, false)
	f.handle("DELETE /api/projects/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.remove(w, func() bool { return deleteByID(&f.projects, pathID(r), func(p models.Project) int64 { return p.ID }) })
	}, false)

	f.handle("GET /api/tasks", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, nonNil(f.tasks))
	}, false)
	f.handle("GET /api/tasks/vital", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []models.Task{}
		for _, t := range f.tasks {
			if t.Vital {
				out = append(out, t)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}, false)
	f.handle("GET /api/tasks/user", func(w http.ResponseWriter, r *http.Request, caller models.User) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []models.Task{}
		for _, t := range f.tasks {
			if t.AssigneeID == caller.ID {
				out = append(out, t)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}, false)
	f.handle("POST /api/tasks", func(w http.ResponseWriter, r *http.Request, caller models.User) {
		var t models.Task
		if !decode(w, r, &t) {
			return
		}
		f.mu.Lock()
		t.ID = f.id(0)
		t.ReporterID = caller.ID
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
		if t.Status == "" {
			t.Status = models.StatusTodo
		}
		f.tasks = append(f.tasks, t)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, t)
	}, false)
	f.handle("PUT /api/tasks/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var t models.Task
		if !decode(w, r, &t) {
			return
		}
		t.ID = pathID(r)
		f.replace(w, t, func() bool {
			i := slices.IndexFunc(f.tasks, func(x models.Task) bool { return x.ID == t.ID })
			if i >= 0 {
				f.tasks[i] = t
			}
			return i >= 0
		})
	}, false)
	f.handle("PATCH /api/tasks/{id}/status", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var body struct {
			Status models.TaskStatus `json:"status"`
		}
		if !decode(w, r, &body) {
			return
		}
		id := pathID(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		i := slices.IndexFunc(f.tasks, func(x models.Task) bool { return x.ID == id })
		if i < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Task not found"})
			return
		}
		f.tasks[i].Status = body.Status
		if body.Status == models.StatusDone && f.tasks[i].CompletedAt == nil {
			now := time.Now().UTC()
			f.tasks[i].CompletedAt = &now
		}
		writeJSON(w, http.StatusOK, f.tasks[i])
	}, false)
	f.handle("DELETE /api/tasks/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.remove(w, func() bool { return deleteByID(&f.tasks, pathID(r), func(t models.Task) int64 { return t.ID }) })
	}, false)

	f.handle("GET /api/comments/task/{taskId}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		taskID, _ := strconv.ParseInt(r.PathValue("taskId"), 10, 64)
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []models.Comment{}
		for _, c := range f.comments {
			if c.TaskID == taskID {
				out = append(out, c)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}, false)
	f.handle("POST /api/comments", func(w http.ResponseWriter, r *http.Request, caller models.User) {
		var c models.Comment
		if !decode(w, r, &c) {
			return
		}
		f.mu.Lock()
		c.ID = f.id(0)
		if c.AuthorID == 0 {
			c.AuthorID = caller.ID
		}
		c.CreatedAt = time.Now().UTC().Truncate(time.Second)
		f.comments = append(f.comments, c)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, c)
	}, false)
	f.handle("DELETE /api/comments/{id}", func(w http.ResponseWriter, r *http.Request, _ models.User) {
		f.remove(w, func() bool { return deleteByID(&f.comments, pathID(r), func(c models.Comment) int64 { return c.ID }) })
	}, false)
}

func (f *FakeBackend) login(w http.ResponseWriter, r *http.Request, _ models.User) {
	var creds struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Password        string `json:"password"`
	}
	if !decode(w, r, &creds) {
		return
	}
	f.mu.Lock()
	var (
		acct  Account
		found bool
	)
	for name, a := range f.accounts {
		if name == creds.UsernameOrEmail || a.User.Email == creds.UsernameOrEmail {
			acct, found = a, true
			break
		}
	}
	field := f.TokenField
	f.mu.Unlock()

	if !found || acct.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{field: IssueToken(acct.User, time.Hour)})
}

func (f *FakeBackend) signup(w http.ResponseWriter, r *http.Request, _ models.User) {
	var u models.User
	if !decode(w, r, &u) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.accounts[u.Username]; taken {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Username already taken"})
		return
	}
	u.ID = f.id(0)
	u.Role = models.RoleUser
	pw := u.Password
	u.Password = ""
	f.users = append(f.users, u)
	f.accounts[u.Username] = Account{Password: pw, User: u}
	w.WriteHeader(http.StatusCreated)
}

// replace runs fn under the lock and replies with v, or 404 when fn reports
// nothing was replaced.
func (f *FakeBackend) replace(w http.ResponseWriter, v any, fn func() bool) {
	f.mu.Lock()
	ok := fn()
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (f *FakeBackend) remove(w http.ResponseWriter, fn func() bool) {
	f.mu.Lock()
	ok := fn()
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func deleteByID[T any](items *[]T, id int64, idOf func(T) int64) bool {
	i := slices.IndexFunc(*items, func(x T) bool { return idOf(x) == id })
	if i < 0 {
		return false
	}
	*items = slices.Delete(*items, i, i+1)
	return true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
