package ui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/ui/views"
)

// ToastDuration is how long a toast stays on screen
const ToastDuration = 4 * time.Second

const collapsedSidebarWidth = 5

// Route is a screen reachable from the sidebar
type Route struct {
	Name  string // persisted as the last screen
	Label string
	build func(views.Deps) views.Screen
}

var (
	routeUsers       = Route{"users", "Users", func(d views.Deps) views.Screen { return views.NewUsersView(d) }}
	routeDashboard   = Route{"dashboard", "Dashboard", func(d views.Deps) views.Screen { return views.NewDashboardView(d) }}
	routeProjects    = Route{"projects", "Projects", func(d views.Deps) views.Screen { return views.NewProjectsView(d) }}
	routeTasks       = Route{"tasks", "Tasks", func(d views.Deps) views.Screen { return views.NewTasksView(d) }}
	routeMyDashboard = Route{"my-dashboard", "My Dashboard", func(d views.Deps) views.Screen { return views.NewMyDashboardView(d) }}
	routeMyTasks     = Route{"my-tasks", "My Tasks", func(d views.Deps) views.Screen { return views.NewMyTasksView(d) }}
	routeVital       = Route{"vital", "Vital", func(d views.Deps) views.Screen { return views.NewVitalView(d) }}
	routeSettings    = Route{"settings", "Settings", func(d views.Deps) views.Screen { return views.NewSettingsView(d) }}
)

// Routes returns the screens role may open, in sidebar order. An unknown
// role has none.
func Routes(role models.Role) []Route {
	switch role {
	case models.RoleAdmin:
		return []Route{routeUsers, routeDashboard, routeProjects, routeTasks, routeSettings}
	case models.RoleManager:
		return []Route{routeDashboard, routeProjects, routeTasks, routeSettings}
	case models.RoleUser:
		return []Route{routeMyDashboard, routeMyTasks, routeVital, routeSettings}
	}
	return nil
}

// App routes between the login screen and the screens of the signed-in
// user's role
type App struct {
	deps    views.Deps
	session *session.Store
	styles  *styles.Styles
	keys    keys.KeyMap

	// state is the session as last delivered by the subscription
	state       session.State
	sub         <-chan session.State
	unsubscribe func()
	signingOut  bool

	login   *views.LoginView
	routes  []Route
	screens map[string]views.Screen
	current int

	collapsed bool
	toast     *views.Toast
	toastSeq  int

	width  int
	height int
}

type clearToastMsg struct {
	seq int
}

type profileMsg struct {
	user models.User
	err  error
}

type sessionMsg session.State

// NewApp creates the application. deps.Session must be restored already.
func NewApp(deps views.Deps) *App {
	return &App{
		deps:      deps,
		session:   deps.Session,
		styles:    styles.NewStyles(),
		keys:      keys.DefaultKeyMap(),
		screens:   make(map[string]views.Screen),
		collapsed: deps.Session.SidebarCollapsed(),
	}
}

// Init subscribes to the session. The first state delivered decides between
// the login screen and the role's screens.
func (a *App) Init() tea.Cmd {
	if a.sub == nil {
		a.sub, a.unsubscribe = a.session.Subscribe()
	}
	return a.listen()
}

// Close ends the session subscription
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// listen waits for the next session state. It is re-armed after every
// delivery and ends when the subscription is closed.
func (a *App) listen() tea.Cmd {
	sub := a.sub
	return func() tea.Msg {
		st, ok := <-sub
		if !ok {
			return nil
		}
		return sessionMsg(st)
	}
}

// applySession moves the UI to match st
func (a *App) applySession(st session.State) tea.Cmd {
	a.state = st
	if !st.SignedIn() {
		a.signingOut = false
		if a.login != nil {
			return nil
		}
		return a.showLogin()
	}
	if a.signingOut {
		// states queued ahead of the sign-out
		return nil
	}
	if a.login != nil || a.routes == nil {
		return a.enter(st)
	}
	// the profile's role wins over the token's
	if routes := Routes(st.Role()); len(routes) > 0 && !sameRoutes(routes, a.routes) {
		slog.Info("role changed, rebuilding screens", "role", st.Role())
		a.routes = routes
		a.screens = make(map[string]views.Screen)
		return a.open(0)
	}
	return nil
}

func (a *App) showLogin() tea.Cmd {
	a.routes = nil
	a.screens = make(map[string]views.Screen)
	a.login = views.NewLoginView(a.deps)
	a.login.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
	return a.login.Init()
}

// enter opens the screens for a signed-in session
func (a *App) enter(st session.State) tea.Cmd {
	a.routes = Routes(st.Role())
	if len(a.routes) == 0 {
		slog.Warn("signed-in user has no known role", "user", st.Claims.Username)
		a.signOut()
		return a.notify("Your account has no role assigned", true)
	}
	a.login = nil
	a.screens = make(map[string]views.Screen)

	start := 0
	last := a.session.LastScreen()
	for i, r := range a.routes {
		if r.Name == last {
			start = i
		}
	}
	return tea.Batch(a.loadProfile(), a.open(start))
}

func (a *App) loadProfile() tea.Cmd {
	client, ctx := a.deps.API, a.deps.Ctx
	return func() tea.Msg {
		u, err := client.Me(ctx)
		return profileMsg{user: u, err: err}
	}
}

// signOut clears the session. The login screen follows once the
// subscription delivers the signed-out state.
func (a *App) signOut() {
	a.signingOut = true
	if err := a.session.SignOut(); err != nil {
		slog.Error("sign out", "error", err)
	}
}

// open switches to route i, building its screen on first use
func (a *App) open(i int) tea.Cmd {
	if len(a.routes) == 0 {
		return nil
	}
	i = (i + len(a.routes)) % len(a.routes)
	a.current = i
	r := a.routes[i]
	if err := a.session.SetLastScreen(r.Name); err != nil {
		slog.Warn("save last screen", "error", err)
	}

	if _, ok := a.screens[r.Name]; ok {
		return nil
	}
	slog.Debug("opening screen", "screen", r.Name)
	scr := r.build(a.deps)
	a.screens[r.Name] = scr
	w, h := a.screenSize()
	scr.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return scr.Init()
}

func (a *App) screen() views.Screen {
	if a.current >= len(a.routes) {
		return nil
	}
	return a.screens[a.routes[a.current].Name]
}

func (a *App) sidebarWidth() int {
	if a.collapsed {
		return collapsedSidebarWidth
	}
	return styles.SidebarWidth
}

func (a *App) screenSize() (int, int) {
	return max(a.width-a.sidebarWidth(), 0), max(a.height-1, 0)
}

func (a *App) resize() {
	w, h := a.screenSize()
	for _, scr := range a.screens {
		scr.Update(tea.WindowSizeMsg{Width: w, Height: h})
	}
}

func (a *App) notify(text string, isErr bool) tea.Cmd {
	return func() tea.Msg { return views.Toast{Text: text, Err: isErr} }
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.login != nil {
			a.login.Update(msg)
		}
		a.resize()
		return a, nil

	case sessionMsg:
		return a, tea.Batch(a.applySession(session.State(msg)), a.listen())

	case views.SignedIn:
		st, err := a.session.SignIn(msg.Token)
		if err != nil {
			slog.Warn("sign in rejected", "error", err)
			return a, a.notify("Sign in failed: "+err.Error(), true)
		}
		slog.Info("signed in", "user", st.Claims.Username, "role", st.Role())
		return a, nil

	case views.Unauthorized:
		if a.login != nil || a.signingOut {
			return a, nil
		}
		slog.Info("session rejected by backend, signing out")
		a.signOut()
		return a, a.notify("Your session has expired, please sign in again", true)

	case profileMsg:
		if msg.err != nil {
			if a.login == nil {
				slog.Warn("load profile", "error", msg.err)
			}
			return a, nil
		}
		if a.login != nil || a.signingOut {
			return a, nil
		}
		if err := a.session.SetUser(msg.user); err != nil {
			slog.Warn("cache profile", "error", err)
		}
		return a, nil

	case views.Toast:
		a.toast = &msg
		a.toastSeq++
		seq := a.toastSeq
		return a, tea.Tick(ToastDuration, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} })

	case clearToastMsg:
		if msg.seq == a.toastSeq {
			a.toast = nil
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)
	}

	// Asynchronous results go to every live screen; each ignores what it
	// did not ask for.
	var cmds []tea.Cmd
	if a.login != nil {
		_, cmd := a.login.Update(msg)
		cmds = append(cmds, cmd)
	}
	for _, scr := range a.screens {
		_, cmd := scr.Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.login != nil {
		_, cmd := a.login.Update(msg)
		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Logout):
		slog.Info("signing out")
		a.signOut()
		return a, nil
	case key.Matches(msg, a.keys.Sidebar):
		a.collapsed = !a.collapsed
		if err := a.session.SetSidebarCollapsed(a.collapsed); err != nil {
			slog.Warn("save sidebar preference", "error", err)
		}
		a.resize()
		return a, nil
	case key.Matches(msg, a.keys.NextView):
		return a, a.open(a.current + 1)
	case key.Matches(msg, a.keys.PrevView):
		return a, a.open(a.current - 1)
	}

	scr := a.screen()
	if scr == nil {
		return a, nil
	}
	if !scr.Capturing() {
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if n := int(s[0] - '1'); n < len(a.routes) {
				return a, a.open(n)
			}
		}
	}
	_, cmd := scr.Update(msg)
	return a, cmd
}

func sameRoutes(a, b []Route) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

func (a *App) View() string {
	var body string
	if a.login != nil {
		body = a.login.View()
	} else if scr := a.screen(); scr != nil {
		w, h := a.screenSize()
		content := lipgloss.NewStyle().Width(w).Height(h).MaxHeight(h).Render(scr.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, a.renderSidebar(), content)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, a.renderStatusBar())
}

func (a *App) renderSidebar() string {
	s := a.styles
	h := max(a.height-1, 1)

	var rows []string
	if a.collapsed {
		for i := range a.routes {
			st := s.SidebarItem
			if i == a.current {
				st = s.SidebarActive
			}
			rows = append(rows, st.Render(fmt.Sprint(i+1)))
		}
		return s.Sidebar.Width(collapsedSidebarWidth - 1).Height(h - 2).Render(strings.Join(rows, "\n"))
	}

	st := a.state
	rows = append(rows,
		s.Title.Render("taskboard"),
		s.TitleMuted.Render(st.DisplayName()),
		s.TitleMuted.Render(st.Role().Label()),
		"",
	)
	for i, r := range a.routes {
		item := s.SidebarItem
		if i == a.current {
			item = s.SidebarActive
		}
		rows = append(rows, item.Render(fmt.Sprintf("%d %s", i+1, r.Label)))
	}
	rows = append(rows, "",
		s.HelpDesc.Render(s.HelpKey.Render("ctrl+b")+" collapse"),
		s.HelpDesc.Render(s.HelpKey.Render("ctrl+o")+" log out"),
	)
	return s.Sidebar.Width(styles.SidebarWidth - 1).Height(h - 2).Render(strings.Join(rows, "\n"))
}

func (a *App) renderStatusBar() string {
	s := a.styles
	if a.toast != nil {
		if a.toast.Err {
			return s.ToastError.Render(a.toast.Text)
		}
		return s.Toast.Render(a.toast.Text)
	}
	if a.login != nil {
		return s.StatusBar.Render("ctrl+c quit")
	}
	if scr := a.screen(); scr != nil {
		return s.StatusBar.Render(scr.Title() + " · 1-9 switch · ctrl+n/p next/prev · q quit")
	}
	return ""
}
