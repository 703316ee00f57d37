package views

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// ErrNoRole is shown when a token carries no role this client knows
var ErrNoRole = errors.New("your account has no role assigned; contact an administrator")

// LoginView signs in, or registers a new account
type LoginView struct {
	deps   Deps
	owner  int64
	styles *styles.Styles
	keys   keys.KeyMap

	signingUp bool
	form      *form
	err       string
	busy      bool

	width  int
	height int
}

type loginResult struct {
	owner int64
	token string
	err   error
}

type signupResult struct {
	owner    int64
	username string
	err      error
}

func NewLoginView(deps Deps) *LoginView {
	v := &LoginView{
		deps:   deps,
		owner:  nextOwner(),
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
	}
	v.reset("")
	return v
}

func (v *LoginView) reset(identifier string) {
	v.err = ""
	if v.signingUp {
		v.form = newForm("Create an account", v.styles, v.keys).
			addText("username", "Username", "3-15 characters", "", 15).
			addText("fullName", "Full Name", "Your name", "", 40).
			addText("email", "Email", "you@example.com", "", 40).
			addSecret("password", "Password", "6-20 characters")
		return
	}
	v.form = newForm("Sign in", v.styles, v.keys).
		addText("usernameOrEmail", "Username or email", "", identifier, 40).
		addSecret("password", "Password", "")
}

func (v *LoginView) Title() string { return "Login" }

// Capturing is always true: every key belongs to the form
func (v *LoginView) Capturing() bool { return true }

func (v *LoginView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.form.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
		return v, nil

	case loginResult:
		if msg.owner != v.owner {
			return v, nil
		}
		v.busy = false
		if msg.err != nil {
			v.err = loginMessage(msg.err)
			return v, nil
		}
		token := msg.token
		return v, func() tea.Msg { return SignedIn{Token: token} }

	case signupResult:
		if msg.owner != v.owner {
			return v, nil
		}
		v.busy = false
		if fe, ok := fieldErrors(msg.err); ok {
			v.form.setErrors(fe)
			return v, nil
		}
		if msg.err != nil {
			v.err = api.Message(msg.err)
			return v, nil
		}
		v.signingUp = false
		v.reset(msg.username)
		v.form.cycle(1)
		return v, toast("Account created, please sign in")

	case tea.KeyMsg:
		if key.Matches(msg, v.keys.Toggle) {
			v.signingUp = !v.signingUp
			v.reset("")
			return v, textinput.Blink
		}
		if msg.String() == "ctrl+c" {
			return v, tea.Quit
		}
		if v.busy {
			return v, nil
		}
		action, cmd := v.form.Update(msg)
		switch action {
		case formSubmit:
			return v, v.submit()
		case formCancel:
			v.err = ""
			return v, nil
		}
		return v, cmd
	}
	return v, nil
}

func loginMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoRole):
		return "Your account has no role assigned. Contact an administrator."
	case errors.Is(err, api.ErrUnauthorized):
		return "Invalid username or password"
	}
	return api.Message(err)
}

func (v *LoginView) submit() tea.Cmd {
	v.err = ""
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner

	if v.signingUp {
		s := api.Signup{
			Username: v.form.value("username"),
			FullName: v.form.value("fullName"),
			Email:    v.form.value("email"),
			Password: v.form.value("password"),
		}
		errs := models.ValidateUser(models.User{
			Username: s.Username, FullName: s.FullName, Email: s.Email, Password: s.Password,
			Role: models.RoleUser,
		}, true)
		v.form.setErrors(errs)
		if len(errs) > 0 {
			return nil
		}
		v.busy = true
		return func() tea.Msg {
			return signupResult{owner: owner, username: s.Username, err: client.SignUp(ctx, s)}
		}
	}

	creds := api.Credentials{
		UsernameOrEmail: v.form.value("usernameOrEmail"),
		Password:        v.form.value("password"),
	}
	errs := models.FieldErrors{}
	if creds.UsernameOrEmail == "" {
		errs["usernameOrEmail"] = "Username or email is required"
	}
	if creds.Password == "" {
		errs["password"] = "Password is required"
	}
	v.form.setErrors(errs)
	if len(errs) > 0 {
		return nil
	}

	v.busy = true
	return func() tea.Msg {
		token, err := client.Login(ctx, creds)
		if err != nil {
			return loginResult{owner: owner, err: err}
		}
		claims, err := auth.Decode(token)
		if err != nil {
			return loginResult{owner: owner, err: err}
		}
		if claims.Role() == "" {
			return loginResult{owner: owner, err: ErrNoRole}
		}
		return loginResult{owner: owner, token: token}
	}
}

func (v *LoginView) View() string {
	s := v.styles

	hint := "ctrl+t: create an account"
	if v.signingUp {
		hint = "ctrl+t: back to sign in"
	}
	rows := []string{
		s.Title.Render("taskboard"),
		"",
		v.form.View(),
	}
	if v.busy {
		rows = append(rows, "", s.TitleMuted.Render("Working…"))
	}
	if v.err != "" {
		rows = append(rows, "", s.FieldError.Render(v.err))
	}
	rows = append(rows, "", s.TitleMuted.Render(hint))

	return place(s.FilterBar.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)), v.width, v.height)
}
