package views

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

type userItem struct {
	user models.User
}

func (i userItem) Title() string { return i.user.FullName }
func (i userItem) Description() string {
	return fmt.Sprintf("@%s · %s · %s", i.user.Username, i.user.Email, i.user.Role.Label())
}
func (i userItem) FilterValue() string {
	return i.user.Username + " " + i.user.FullName + " " + i.user.Email
}

type userDelegate struct {
	styles *styles.Styles
	width  int
}

func (d userDelegate) Height() int                               { return 2 }
func (d userDelegate) Spacing() int                              { return 1 }
func (d userDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d userDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	u, ok := item.(userItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(u.Title()), descStyle.Render(u.Description()))
}

// UsersView is the administrator's user list
type UsersView struct {
	deps     Deps
	owner    int64
	list     list.Model
	delegate *userDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int

	users   []models.User
	loaded  bool
	form    *form
	editing *models.User // nil while creating

	confirmingDelete bool
	deleteTarget     models.User

	showHelpPopup bool
}

type usersLoadedMsg struct {
	owner int64
	users []models.User
	err   error
}

type userSavedMsg struct {
	owner int64
	user  models.User
	err   error
}

type userDeletedMsg struct {
	owner int64
	err   error
}

func NewUsersView(deps Deps) *UsersView {
	s := styles.NewStyles()
	delegate := &userDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Users"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &UsersView{
		deps:     deps,
		owner:    nextOwner(),
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
	}
}

func (v *UsersView) Title() string { return "Users" }

func (v *UsersView) Capturing() bool {
	return v.form != nil || v.confirmingDelete || v.list.FilterState() == list.Filtering
}

func (v *UsersView) Init() tea.Cmd {
	return v.load()
}

func (v *UsersView) load() tea.Cmd {
	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		users, err := client.Users(ctx)
		return usersLoadedMsg{owner: owner, users: users, err: err}
	}
}

func (v *UsersView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth, max(v.height-4, 4))
		if v.form != nil {
			v.form.setWidth(clamp(contentWidth-10, 20, 50))
		}
		return v, nil

	case usersLoadedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("load users", msg.err) }
		}
		v.users = msg.users
		v.loaded = true
		items := make([]list.Item, len(msg.users))
		for i, u := range msg.users {
			items[i] = userItem{user: u}
		}
		return v, v.list.SetItems(items)

	case userSavedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if fe, ok := fieldErrors(msg.err); ok && v.form != nil {
			v.form.setErrors(fe)
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("save user", msg.err) }
		}
		v.form = nil
		v.editing = nil
		return v, tea.Batch(toast(fmt.Sprintf("User %q saved", msg.user.Username)), v.load())

	case userDeletedMsg:
		if msg.owner != v.owner {
			return v, nil
		}
		if msg.err != nil {
			return v, func() tea.Msg { return failure("delete user", msg.err) }
		}
		return v, tea.Batch(toast("User deleted"), v.load())

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.form != nil {
			return v.updateForm(msg)
		}
		return v.updateNormal(msg)
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *UsersView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Let the list handle keys while typing a filter
	if v.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		v.list, cmd = v.list.Update(msg)
		return v, cmd
	}

	switch {
	case key.Matches(msg, v.keys.New):
		v.startForm(nil)
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Edit), key.Matches(msg, v.keys.Enter):
		if item, ok := v.list.SelectedItem().(userItem); ok {
			u := item.user
			v.startForm(&u)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if item, ok := v.list.SelectedItem().(userItem); ok {
			v.confirmingDelete = true
			v.deleteTarget = item.user
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.load()

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *UsersView) startForm(u *models.User) {
	v.editing = u
	var cur models.User
	title := "New User"
	pwLabel := "Password"
	if u != nil {
		cur = *u
		title = "Edit User"
		pwLabel = "Password (leave blank to keep)"
	}
	if cur.Role == "" {
		cur.Role = models.RoleUser
	}

	v.form = newForm(title, v.styles, v.keys).
		addText("username", "Username", "3-15 characters", cur.Username, 15).
		addText("fullName", "Full Name", "", cur.FullName, 40).
		addText("email", "Email", "user@example.com", cur.Email, 40).
		addSecret("password", pwLabel, "6-20 characters").
		addSelect("role", "Role", enumOptions(models.Roles, ""), string(cur.Role))
	v.form.setWidth(clamp(styles.ContentWidth(v.width)-10, 20, 50))
}

func (v *UsersView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := v.form.Update(msg)
	switch action {
	case formCancel:
		v.form = nil
		v.editing = nil
		return v, nil
	case formSubmit:
		return v, v.save()
	}
	return v, cmd
}

func (v *UsersView) save() tea.Cmd {
	u := models.User{
		Username: v.form.value("username"),
		FullName: v.form.value("fullName"),
		Email:    v.form.value("email"),
		Password: v.form.value("password"),
		Role:     models.Role(v.form.value("role")),
	}
	creating := v.editing == nil
	if !creating {
		u.ID = v.editing.ID
		u.CreatedAt = v.editing.CreatedAt
	}

	errs := models.ValidateUser(u, creating)
	v.form.setErrors(errs)
	if len(errs) > 0 {
		return nil
	}

	client, ctx, owner := v.deps.API, v.deps.ctx(), v.owner
	return func() tea.Msg {
		var (
			saved models.User
			err   error
		)
		if creating {
			saved, err = client.CreateUser(ctx, u)
		} else {
			saved, err = client.UpdateUser(ctx, u)
		}
		if err == nil && saved.Username == "" {
			saved = u
		}
		return userSavedMsg{owner: owner, user: saved, err: err}
	}
}

func (v *UsersView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	yes, done := confirmKey(msg)
	if !done {
		return v, nil
	}
	v.confirmingDelete = false
	if !yes {
		return v, nil
	}
	client, ctx, owner, id := v.deps.API, v.deps.ctx(), v.owner, v.deleteTarget.ID
	return v, func() tea.Msg {
		return userDeletedMsg{owner: owner, err: client.DeleteUser(ctx, id)}
	}
}

func (v *UsersView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return renderConfirmDelete(v.styles, "User", v.deleteTarget.Username, v.width, v.height)
	}
	if v.form != nil {
		return place(v.form.View(), v.width, v.height)
	}

	body := v.list.View()
	if v.loaded && len(v.users) == 0 {
		body = v.styles.TitleMuted.Render("No users yet. Press n to create one.")
	}
	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left,
		body,
		renderHelp(v.styles, "n", "new", "e", "edit", "d", "delete", "/", "search", "r", "refresh", "?", "help"),
	), v.width, v.height)
}

func (v *UsersView) renderHelpPopup() string {
	s := v.styles
	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Keyboard Shortcuts"),
		"",
		s.HelpKey.Render("n")+"      new user",
		s.HelpKey.Render("e/↵")+"    edit user",
		s.HelpKey.Render("d")+"      delete user",
		s.HelpKey.Render("/")+"      search",
		s.HelpKey.Render("r")+"      refresh",
		"",
		s.TitleMuted.Render("Press any key to close"),
	)
	return place(s.FilterBar.Render(content), v.width, v.height)
}
