package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tgienger/taskboard/internal/models"
)

// ErrNoToken is returned by Login when the reply carries no token
var ErrNoToken = errors.New("no token in login response")

// Credentials is the login request
type Credentials struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// Signup is the self-registration request
type Signup struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if err := c.doWith(ctx, c.anon, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return "", err
	}
	if resp.Token != "" {
		return resp.Token, nil
	}
	if resp.AccessToken != "" {
		return resp.AccessToken, nil
	}
	return "", ErrNoToken
}

// SignUp registers a new account. The backend assigns the role.
func (c *Client) SignUp(ctx context.Context, s Signup) error {
	errs := models.ValidateUser(models.User{
		Username: s.Username, FullName: s.FullName, Email: s.Email, Password: s.Password,
		Role: models.RoleUser,
	}, true)
	if err := errs.Err(); err != nil {
		return err
	}
	return c.doWith(ctx, c.anon, http.MethodPost, "/auth/signup", s, nil)
}

// Users

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Me returns the signed-in user's profile
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	if err := c.get(ctx, "/users/me", &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// CreateUser validates u and creates it. Field errors are returned as
// models.FieldErrors without contacting the backend.
func (c *Client) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if err := models.ValidateUser(u, true).Err(); err != nil {
		return models.User{}, err
	}
	var out models.User
	if err := c.do(ctx, http.MethodPost, "/users", u, &out); err != nil {
		return models.User{}, err
	}
	return out, nil
}

// UpdateUser validates u and replaces it. An empty password keeps the
// current one.
func (c *Client) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	if err := models.ValidateUser(u, false).Err(); err != nil {
		return models.User{}, err
	}
	var out models.User
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", u.ID), u, &out); err != nil {
		return models.User{}, err
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

// Projects

func (c *Client) Projects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.get(ctx, "/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if err := models.ValidateProject(p).Err(); err != nil {
		return models.Project{}, err
	}
	var out models.Project
	if err := c.do(ctx, http.MethodPost, "/projects", p, &out); err != nil {
		return models.Project{}, err
	}
	return out, nil
}

// UpdateProject replaces p. The project board also uses it to persist a
// status change.
func (c *Client) UpdateProject(ctx context.Context, p models.Project) (models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/projects/%d", p.ID), p, &out); err != nil {
		return models.Project{}, err
	}
	return out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", id), nil, nil)
}

// Tasks

func (c *Client) Tasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// VitalTasks returns the tasks flagged vital
func (c *Client) VitalTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks/vital", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MyTasks returns the tasks assigned to the signed-in user
func (c *Client) MyTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks/user", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := models.ValidateTask(t).Err(); err != nil {
		return models.Task{}, err
	}
	var out models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", t, &out); err != nil {
		return models.Task{}, err
	}
	return out, nil
}

func (c *Client) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := models.ValidateTask(t).Err(); err != nil {
		return models.Task{}, err
	}
	var out models.Task
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d", t.ID), t, &out); err != nil {
		return models.Task{}, err
	}
	return out, nil
}

// UpdateTaskStatus changes only the status of a task
func (c *Client) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus) (models.Task, error) {
	body := struct {
		Status models.TaskStatus `json:"status"`
	}{status}
	var out models.Task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/status", id), body, &out); err != nil {
		return models.Task{}, err
	}
	return out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil)
}

// Comments

// Comments returns the comments on a task
func (c *Client) Comments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	var comments []models.Comment
	if err := c.get(ctx, fmt.Sprintf("/comments/task/%d", taskID), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment posts a comment. Blank content is rejected locally.
func (c *Client) AddComment(ctx context.Context, cm models.Comment) (models.Comment, error) {
	if strings.TrimSpace(cm.Content) == "" {
		return models.Comment{}, models.FieldErrors{"content": "Comment cannot be empty"}
	}
	var out models.Comment
	if err := c.do(ctx, http.MethodPost, "/comments", cm, &out); err != nil {
		return models.Comment{}, err
	}
	return out, nil
}

func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", id), nil, nil)
}
