package views

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsUpdatesProfile(t *testing.T) {
	e := newEnv(t, member())
	v := NewSettingsView(e.deps)
	assert.False(t, v.Capturing())

	pump(t, v, v.Init())
	require.NotNil(t, v.form)
	assert.True(t, v.Capturing())
	assert.Equal(t, "kenji", v.form.value("username"))
	assert.Equal(t, "Kenji Sato", v.form.value("fullName"))

	v.form.set("fullName", "Kenji S.")
	out := send(t, v, keySave)
	assert.Equal(t, []Toast{{Text: "Profile updated"}}, toasts(out))

	cur := e.store.Current().User
	require.NotNil(t, cur)
	assert.Equal(t, "Kenji S.", cur.FullName)

	path := fmt.Sprintf("/users/%d", e.me.ID)
	require.Equal(t, 1, e.backend.Count(http.MethodPut, path))
	for _, r := range e.backend.Requests() {
		if r.Method == http.MethodPut {
			assert.NotContains(t, r.Body, "password", "a blank password is left out")
		}
	}
}

func TestSettingsRejectsShortPassword(t *testing.T) {
	e := newEnv(t, member())
	v := NewSettingsView(e.deps)
	pump(t, v, v.Init())

	v.form.set("password", "123")
	out := send(t, v, keySave)
	assert.Empty(t, out)
	assert.Equal(t, "Password must be 6-20 characters", v.form.errs["password"])
	assert.Zero(t, e.backend.Count(http.MethodPut, fmt.Sprintf("/users/%d", e.me.ID)))
}

func TestSettingsEscDiscardsEdits(t *testing.T) {
	e := newEnv(t, member())
	v := NewSettingsView(e.deps)
	pump(t, v, v.Init())

	v.form.set("fullName", "Someone Else")
	v.Update(keyEsc)
	assert.Equal(t, "Kenji Sato", v.form.value("fullName"))
}
