// Package session holds the signed-in identity for the lifetime of the
// program and mirrors it to the local database so it survives restarts.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/models"
)

// State is a snapshot of the session
type State struct {
	Token  string
	Claims auth.Claims
	User   *models.User
}

// SignedIn reports whether a token is held
func (s State) SignedIn() bool { return s.Token != "" }

// Role prefers the role of the cached profile and falls back to the token
func (s State) Role() models.Role {
	if s.User != nil && s.User.Role != "" {
		return s.User.Role
	}
	return s.Claims.Role()
}

// DisplayName returns the best available name for the signed-in user
func (s State) DisplayName() string {
	if s.User != nil && s.User.FullName != "" {
		return s.User.FullName
	}
	return s.Claims.Username
}

// Store is the application-scoped session. It is safe for concurrent use:
// the HTTP transport reads the token from request goroutines while the UI
// signs in and out.
type Store struct {
	db  *db.DB
	now func() time.Time

	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}
}

// New creates an empty store backed by d. Call Restore to rehydrate.
func New(d *db.DB) *Store {
	return &Store{db: d, now: time.Now, subs: make(map[chan State]struct{})}
}

// Restore loads the persisted token and profile. A missing, malformed or
// expired token leaves the store signed out and clears what was persisted.
func (s *Store) Restore() (State, error) {
	token, err := s.db.GetSetting(db.KeyToken)
	if err != nil {
		return State{}, fmt.Errorf("read token: %w", err)
	}

	claims, err := auth.Decode(token)
	if err == nil && claims.Expired(s.now()) {
		err = auth.ErrExpired
	}
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) {
			slog.Info("discarding stored session", "error", err)
		}
		return State{}, s.SignOut()
	}

	st := State{Token: token, Claims: claims}
	if raw, err := s.db.GetSetting(db.KeyCurrentUser); err != nil {
		return State{}, fmt.Errorf("read current user: %w", err)
	} else if raw != "" {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			slog.Warn("ignoring unreadable cached user", "error", err)
		} else {
			st.User = &u
		}
	}

	s.publish(st)
	return st, nil
}

// SignIn stores a freshly issued token. The cached profile from any previous
// session is dropped.
func (s *Store) SignIn(token string) (State, error) {
	claims, err := auth.Decode(token)
	if err != nil {
		return State{}, err
	}
	if err := s.db.SetSetting(db.KeyToken, token); err != nil {
		return State{}, fmt.Errorf("save token: %w", err)
	}
	if err := s.db.DeleteSettings(db.KeyCurrentUser); err != nil {
		return State{}, fmt.Errorf("clear current user: %w", err)
	}

	st := State{Token: token, Claims: claims}
	s.publish(st)
	return st, nil
}

// SetUser caches the signed-in user's profile
func (s *Store) SetUser(u models.User) error {
	u.Password = ""
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.db.SetSetting(db.KeyCurrentUser, string(raw)); err != nil {
		return fmt.Errorf("save current user: %w", err)
	}

	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	st.User = &u
	s.publish(st)
	return nil
}

// SignOut clears the token and the cached profile
func (s *Store) SignOut() error {
	err := s.db.DeleteSettings(db.KeyToken, db.KeyCurrentUser)
	s.publish(State{})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the current state
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// subscriberBuffer is how many states a subscriber may fall behind before
// the oldest unread one is discarded
const subscriberBuffer = 8

// Subscribe returns a channel that receives the current state immediately
// and every change after it. A slow subscriber misses intermediate states
// but always receives the latest one.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)
	s.mu.Lock()
	ch <- s.state
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	for ch := range s.subs {
		deliver(ch, st)
	}
}

// deliver sends st without blocking, evicting the oldest queued state when
// ch is full. Only publish sends, under s.mu, so the retry always finds room.
func deliver(ch chan State, st State) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Token implements oauth2.TokenSource for the API client's transport
func (s *Store) Token() (*oauth2.Token, error) {
	st := s.Current()
	if !st.SignedIn() {
		return nil, auth.ErrNoToken
	}
	if st.Claims.Expired(s.now()) {
		return nil, auth.ErrExpired
	}
	return &oauth2.Token{
		AccessToken: st.Token,
		TokenType:   "Bearer",
		Expiry:      st.Claims.ExpiresAt,
	}, nil
}

// SidebarCollapsed returns the persisted sidebar preference
func (s *Store) SidebarCollapsed() bool {
	v, err := s.db.GetBool(db.KeySidebarCollapsed)
	if err != nil {
		slog.Warn("read sidebar preference", "error", err)
	}
	return v
}

func (s *Store) SetSidebarCollapsed(v bool) error {
	return s.db.SetBool(db.KeySidebarCollapsed, v)
}

// LastScreen returns the screen that was open when the program last exited
func (s *Store) LastScreen() string {
	v, err := s.db.GetSetting(db.KeyLastScreen)
	if err != nil {
		slog.Warn("read last screen", "error", err)
	}
	return v
}

func (s *Store) SetLastScreen(name string) error {
	return s.db.SetSetting(db.KeyLastScreen, name)
}
