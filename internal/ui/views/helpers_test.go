package views

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/testutil"
)

// cmdTimeout drops commands that wait on a timer, such as cursor blinks
const cmdTimeout = time.Second

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type env struct {
	backend *testutil.FakeBackend
	store   *session.Store
	deps    Deps
	me      models.User
}

// newEnv starts a fake backend and signs in as me, who is also stored as a
// backend user. A zero me leaves the session signed out.
func newEnv(t *testing.T, me models.User) *env {
	t.Helper()
	fb := testutil.NewFakeBackend()
	url := fb.Start(t)

	d, err := db.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	store := session.New(d)

	if me.Username != "" {
		me = fb.AddUser(me)
		_, err := store.SignIn(testutil.IssueToken(me, time.Hour))
		require.NoError(t, err)
		require.NoError(t, store.SetUser(me))
	}

	return &env{
		backend: fb,
		store:   store,
		me:      me,
		deps: Deps{
			Ctx:     context.Background(),
			API:     api.New(api.Config{BaseURL: url, Tokens: store, Timeout: 5 * time.Second}),
			Session: store,
			Now:     func() time.Time { return testNow },
		},
	}
}

func manager() models.User {
	return models.User{Username: "amara", FullName: "Amara Obi", Email: "amara@example.com", Role: models.RoleManager}
}

func member() models.User {
	return models.User{Username: "kenji", FullName: "Kenji Sato", Email: "kenji@example.com", Role: models.RoleUser}
}

// execCmd runs cmd and returns the messages it produces, flattening
// batches. Commands still running after cmdTimeout are dropped.
func execCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(cmdTimeout):
		return nil
	}

	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	}
	results := make([][]tea.Msg, len(batch))
	var wg sync.WaitGroup
	for i, c := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = execCmd(c)
		}()
	}
	wg.Wait()
	var out []tea.Msg
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// outward reports whether msg is addressed to the app rather than a screen
func outward(msg tea.Msg) bool {
	switch msg.(type) {
	case Toast, Unauthorized, SignedIn, tea.QuitMsg:
		return true
	}
	return false
}

// pump runs cmd and feeds what it produces back into m until nothing is
// left. Messages addressed to the app are returned.
func pump(t *testing.T, m tea.Model, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var out []tea.Msg
	queue := execCmd(cmd)
	for i := 0; len(queue) > 0; i++ {
		require.Less(t, i, 500, "message loop did not settle")
		msg := queue[0]
		queue = queue[1:]
		if outward(msg) {
			out = append(out, msg)
			continue
		}
		_, next := m.Update(msg)
		queue = append(queue, execCmd(next)...)
	}
	return out
}

// send delivers msg to m and pumps the result
func send(t *testing.T, m tea.Model, msgs ...tea.Msg) []tea.Msg {
	t.Helper()
	var out []tea.Msg
	for _, msg := range msgs {
		_, cmd := m.Update(msg)
		out = append(out, pump(t, m, cmd)...)
	}
	return out
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}

	keyToggle = tea.KeyMsg{Type: tea.KeyCtrlT}
)

func toasts(msgs []tea.Msg) []Toast {
	var out []Toast
	for _, m := range msgs {
		if t, ok := m.(Toast); ok {
			out = append(out, t)
		}
	}
	return out
}

func hasUnauthorized(msgs []tea.Msg) bool {
	for _, m := range msgs {
		if _, ok := m.(Unauthorized); ok {
			return true
		}
	}
	return false
}

func day(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}
