package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/testutil"
)

var amara = models.User{ID: 1, Username: "amara", FullName: "Amara Obi", Email: "amara@example.com", Role: models.RoleManager}

// staticTokens serves a fixed token, or err
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token() (*oauth2.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func setup(t *testing.T) (*Client, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend()
	fb.AddUser(amara)
	url := fb.Start(t)
	c := New(Config{BaseURL: url, Tokens: staticTokens{token: testutil.IssueToken(amara, time.Hour)}})
	return c, fb
}

func TestLoginIsAnonymous(t *testing.T) {
	c, fb := setup(t)
	fb.AddAccount("amara", "secret1", amara)

	token, err := c.Login(context.Background(), Credentials{UsernameOrEmail: "amara@example.com", Password: "secret1"})
	require.NoError(t, err)

	claims, err := auth.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "amara", claims.Username)

	reqs := fb.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Auth, "login must not carry a bearer token")
	assert.NotEmpty(t, reqs[0].RequestID)
	assert.JSONEq(t, `{"usernameOrEmail":"amara@example.com","password":"secret1"}`, reqs[0].Body)
}

func TestLoginAccessTokenField(t *testing.T) {
	c, fb := setup(t)
	fb.AddAccount("amara", "secret1", amara)
	fb.TokenField = "accessToken"

	token, err := c.Login(context.Background(), Credentials{UsernameOrEmail: "amara", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	fb.TokenField = "other"
	_, err = c.Login(context.Background(), Credentials{UsernameOrEmail: "amara", Password: "secret1"})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoginBadCredentials(t *testing.T) {
	c, fb := setup(t)
	fb.AddAccount("amara", "secret1", amara)

	_, err := c.Login(context.Background(), Credentials{UsernameOrEmail: "amara", Password: "wrong"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Bad credentials", apiErr.Message)
	assert.Equal(t, "Bad credentials", Message(err))
}

func TestSignUp(t *testing.T) {
	c, fb := setup(t)

	err := c.SignUp(context.Background(), Signup{Username: "kwame", FullName: "Kwame Mensah", Email: "kwame@example.com", Password: "secret1"})
	require.NoError(t, err)

	token, err := c.Login(context.Background(), Credentials{UsernameOrEmail: "kwame", Password: "secret1"})
	require.NoError(t, err)
	claims, err := auth.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, claims.Role())

	err = c.SignUp(context.Background(), Signup{Username: "kw"})
	var fe models.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "username")
	assert.Equal(t, 2, len(fb.Requests()), "invalid sign-up is never sent")
}

func TestBearerAttached(t *testing.T) {
	c, fb := setup(t)

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	reqs := fb.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Auth, "Bearer ")

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Amara Obi", me.FullName)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := New(Config{BaseURL: fb.Start(t), Tokens: staticTokens{err: auth.ErrNoToken}})

	_, err := c.Tasks(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, fb.Requests(), "nothing is sent without a token")
}

func TestServerUnauthorized(t *testing.T) {
	fb := testutil.NewFakeBackend()
	stranger := models.User{Username: "ghost", Role: models.RoleUser}
	c := New(Config{BaseURL: fb.Start(t), Tokens: staticTokens{token: testutil.IssueToken(stranger, time.Hour)}})

	_, err := c.Projects(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Unauthorized", Message(err))
}

func TestTaskLifecycle(t *testing.T) {
	c, fb := setup(t)
	ctx := context.Background()

	_, err := c.CreateTask(ctx, models.Task{Title: "No refs"})
	var fe models.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Empty(t, fb.Requests(), "invalid task is never sent")

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	created, err := c.CreateTask(ctx, models.Task{Title: "Ship", Priority: models.PriorityHigh, ProjectID: 5, AssigneeID: 1, DueDate: &due})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.StatusTodo, created.Status)
	assert.Equal(t, int64(1), created.ReporterID)

	updated, err := c.UpdateTaskStatus(ctx, created.ID, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	reqs := fb.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.JSONEq(t, `{"status":"DONE"}`, last.Body)

	created.Title = "Ship it"
	created.Vital = true
	_, err = c.UpdateTask(ctx, created)
	require.NoError(t, err)

	vital, err := c.VitalTasks(ctx)
	require.NoError(t, err)
	require.Len(t, vital, 1)
	assert.Equal(t, "Ship it", vital[0].Title)

	mine, err := c.MyTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, c.DeleteTask(ctx, created.ID))
	tasks, err := c.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	err = c.DeleteTask(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserOmitsBlankPassword(t *testing.T) {
	c, fb := setup(t)
	u := fb.AddUser(models.User{Username: "kwame", FullName: "Kwame", Email: "k@example.com", Password: "hunter22", Role: models.RoleUser})

	u.Password = ""
	u.FullName = "Kwame Mensah"
	_, err := c.UpdateUser(context.Background(), u)
	require.NoError(t, err)

	reqs := fb.Requests()
	assert.NotContains(t, reqs[len(reqs)-1].Body, "password")
	for _, stored := range fb.Users() {
		if stored.ID == u.ID {
			assert.Equal(t, "hunter22", stored.Password)
			assert.Equal(t, "Kwame Mensah", stored.FullName)
		}
	}
}

func TestUserCRUD(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	_, err := c.CreateUser(ctx, models.User{Username: "kw", Role: models.RoleUser})
	var fe models.FieldErrors
	require.ErrorAs(t, err, &fe)

	u, err := c.CreateUser(ctx, models.User{Username: "kwame", FullName: "Kwame", Email: "k@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)
	assert.Empty(t, u.Password)

	require.NoError(t, c.DeleteUser(ctx, u.ID))
	users, err := c.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestProjectStatusUpdate(t *testing.T) {
	c, fb := setup(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	p, err := c.CreateProject(ctx, models.Project{Name: "Alpha", OwnerID: 1, StartDate: &start, Status: models.ProjectPlanned})
	require.NoError(t, err)

	p.Status = models.ProjectActive
	_, err = c.UpdateProject(ctx, p)
	require.NoError(t, err)

	stored, ok := fb.Project(p.ID)
	require.True(t, ok)
	assert.Equal(t, models.ProjectActive, stored.Status)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	projects, err := c.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestComments(t *testing.T) {
	c, fb := setup(t)
	ctx := context.Background()
	fb.AddComment(models.Comment{TaskID: 9, AuthorID: 1, Content: "first"})
	fb.AddComment(models.Comment{TaskID: 8, AuthorID: 1, Content: "elsewhere"})

	_, err := c.AddComment(ctx, models.Comment{TaskID: 9, Content: "   "})
	require.Error(t, err)

	added, err := c.AddComment(ctx, models.Comment{TaskID: 9, AuthorID: 1, Content: "second"})
	require.NoError(t, err)

	comments, err := c.Comments(ctx, 9)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[1].Content)

	require.NoError(t, c.DeleteComment(ctx, added.ID))
	comments, err = c.Comments(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestInjectedFailure(t *testing.T) {
	c, fb := setup(t)
	task := fb.AddTask(models.Task{Title: "Ship", Status: models.StatusTodo, ProjectID: 1, AssigneeID: 1})
	fb.Fail["PATCH /tasks/{id}/status"] = http.StatusInternalServerError

	_, err := c.UpdateTaskStatus(context.Background(), task.ID, models.StatusDone)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.False(t, errors.Is(err, ErrUnauthorized))

	stored, _ := fb.Task(task.ID)
	assert.Equal(t, models.StatusTodo, stored.Status)
}

func TestTimeout(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddUser(amara)
	gate := make(chan struct{})
	fb.Gate = gate
	url := fb.Start(t)
	// release the held handler before the server shuts down
	t.Cleanup(func() { close(gate) })

	c := New(Config{BaseURL: url, Tokens: staticTokens{token: testutil.IssueToken(amara, time.Hour)}, Timeout: 50 * time.Millisecond})
	_, err := c.Tasks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentGetsShareOneRequest(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddUser(amara)
	gate := make(chan struct{})
	fb.Gate = gate
	c := New(Config{BaseURL: fb.Start(t), Tokens: staticTokens{token: testutil.IssueToken(amara, time.Hour)}})

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Projects(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return fb.Count(http.MethodGet, "/projects") == 1 }, time.Second, 5*time.Millisecond)
	// let the other callers join the in-flight request
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fb.Count(http.MethodGet, "/projects"))
}

// swapTokens serves whichever token was set last
type swapTokens struct {
	mu    sync.Mutex
	token string
}

func (s *swapTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *swapTokens) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func TestCancelledCallerLeavesSharedGetRunning(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddUser(amara)
	gate := make(chan struct{})
	fb.Gate = gate
	c := New(Config{BaseURL: fb.Start(t), Tokens: staticTokens{token: testutil.IssueToken(amara, time.Hour)}})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Projects(first)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return fb.Count(http.MethodGet, "/projects") == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.Projects(context.Background())
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(gate)
	select {
	case err := <-secondErr:
		assert.NoError(t, err, "the other caller still gets the reply")
	case <-time.After(time.Second):
		t.Fatal("shared request never finished")
	}
	assert.Equal(t, 1, fb.Count(http.MethodGet, "/projects"))
}

func TestGetsWithDifferentTokensAreNotShared(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddUser(amara)
	kwame := fb.AddUser(models.User{Username: "kwame", FullName: "Kwame", Email: "kwame@example.com", Role: models.RoleUser})
	gate := make(chan struct{})
	fb.Gate = gate
	tokens := &swapTokens{token: testutil.IssueToken(amara, time.Hour)}
	c := New(Config{BaseURL: fb.Start(t), Tokens: tokens})

	errs := make(chan error, 2)
	get := func() {
		_, err := c.Projects(context.Background())
		errs <- err
	}
	go get()
	require.Eventually(t, func() bool { return fb.Count(http.MethodGet, "/projects") == 1 }, time.Second, 5*time.Millisecond)

	// signed in as someone else while the first request is held
	tokens.set(testutil.IssueToken(kwame, time.Hour))
	go get()
	require.Eventually(t, func() bool { return fb.Count(http.MethodGet, "/projects") == 2 }, time.Second, 5*time.Millisecond)

	close(gate)
	for range 2 {
		require.NoError(t, <-errs)
	}

	var auths []string
	for _, r := range fb.Requests() {
		if r.Path == "/projects" {
			auths = append(auths, r.Auth)
		}
	}
	require.Len(t, auths, 2)
	assert.NotEqual(t, auths[0], auths[1])
}
