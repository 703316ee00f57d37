package views

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// SettingsView edits the signed-in user's profile
type SettingsView struct {
	deps   Deps
	owner  int64
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	user *models.User
	form *form
	busy bool
}

type profileLoadedMsg struct {
	owner int64
	user  models.User
	err   error
}

type profileSavedMsg struct {
	owner int64
	user  models.User
	err   error
}

func NewSettingsView(deps Deps) *SettingsView {
	return &SettingsView{
		deps:   deps,
		owner:  nextOwner(),
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
	}
}

func (v *SettingsView) Title() string { return "Settings" }

// Capturing is true once the profile form is shown
func (v *SettingsView) Capturing() bool { return v.form != nil }

func (v *SettingsView) Init() tea.Cmd {
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		u, err := client.Me(ctx)
		return profileLoadedMsg{owner: owner, user: u, err: err}
	}
}

func (v *SettingsView) startForm(u models.User) {
	v.user = &u
	v.form = newForm("Profile", v.styles, v.keys).
		addText("username", "Username", "", u.Username, 15).
		addText("fullName", "Full Name", "", u.FullName, 40).
		addText("email", "Email", "", u.Email, 40).
		addSecret("password", "New password (leave blank to keep)", "6-20 characters")
	v.form.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
}

func (v *SettingsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		if v.form != nil {
			v.form.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
		}
		return v, nil

	case profileLoadedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load profile", msg.err) }
		}
		v.startForm(msg.user)
		return v, textinput.Blink

	case profileSavedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		v.busy = false
		if fe, ok := fieldErrors(msg.err); ok {
			v.form.setErrors(fe)
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("update profile", msg.err) }
		}
		if v.deps.Session != nil {
			if err := v.deps.Session.SetUser(msg.user); err != nil {
				return v, func() tea.Msg { return failure("save profile locally", err) }
			}
		}
		v.startForm(msg.user)
		return v, toast("Profile updated")

	case tea.KeyMsg:
		if v.form == nil || v.busy {
			return v, nil
		}
		action, cmd := v.form.Update(msg)
		switch action {
		case formSubmit:
			return v, v.save()
		case formCancel:
			// discard edits
			v.startForm(*v.user)
			return v, nil
		}
		return v, cmd
	}
	return v, nil
}

func (v *SettingsView) save() tea.Cmd {
	u := *v.user
	u.Username = v.form.value("username")
	u.FullName = v.form.value("fullName")
	u.Email = v.form.value("email")
	u.Password = v.form.value("password")

	errs := models.ValidateUser(u, false)
	v.form.setErrors(errs)
	if len(errs) > 0 {
		return nil
	}

	v.busy = true
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		saved, err := client.UpdateUser(ctx, u)
		if err == nil && saved.ID == 0 {
			saved = u
		}
		saved.Password = ""
		return profileSavedMsg{owner: owner, user: saved, err: err}
	}
}

func (v *SettingsView) View() string {
	s := v.styles
	if v.form == nil {
		return place(s.TitleMuted.Render("Loading profile…"), v.width, v.height)
	}
	rows := []string{
		v.form.View(),
		"",
		s.TitleMuted.Render("Role: ") + v.user.Role.Label(),
	}
	if v.busy {
		rows = append(rows, s.TitleMuted.Render("Saving…"))
	}
	return place(lipgloss.JoinVertical(lipgloss.Left, rows...), v.width, v.height)
}
