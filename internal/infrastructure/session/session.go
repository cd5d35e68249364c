package session

import (
	"fmt"
	"net/http"
	"os"

	"github.com/altmarket/digitalstore/internal/domain/grant"
	"github.com/gorilla/sessions"
)

const (
	sessionName = "store_session"

	grantKey = "authorizedProduct"
	loginKey = "isLoggedIn"
)

// Manager wraps a filesystem-backed cookie session store. Sessions survive
// process restarts, matching the durability the download grant needs.
type Manager struct {
	store *sessions.FilesystemStore
}

func NewManager(dir, secret string, secure bool) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create store dir: %w", err)
	}
	store := sessions.NewFilesystemStore(dir, []byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}, nil
}

// ForRequest loads (or starts) the caller's session. A cookie that fails to
// decode is treated as a fresh session rather than an error.
func (m *Manager) ForRequest(w http.ResponseWriter, r *http.Request) *Session {
	s, _ := m.store.Get(r, sessionName)
	return &Session{sess: s, w: w, r: r}
}

// Session is one user's session, scoped to a single request/response pair.
// Mutations are flushed to the backing store before they return, so a grant
// that has been cleared can never be observed live by a later request.
type Session struct {
	sess *sessions.Session
	w    http.ResponseWriter
	r    *http.Request
}

var _ grant.Session = (*Session)(nil)

func (s *Session) Grant() (string, bool) {
	id, ok := s.sess.Values[grantKey].(string)
	return id, ok && id != ""
}

func (s *Session) SetGrant(productID string) error {
	s.sess.Values[grantKey] = productID
	return s.sess.Save(s.r, s.w)
}

func (s *Session) ClearGrant() error {
	delete(s.sess.Values, grantKey)
	return s.sess.Save(s.r, s.w)
}

// IsLoggedIn reports the admin login flag. Unrelated to download grants.
func (s *Session) IsLoggedIn() bool {
	loggedIn, ok := s.sess.Values[loginKey].(bool)
	return ok && loggedIn
}

func (s *Session) SetLoggedIn() error {
	s.sess.Values[loginKey] = true
	return s.sess.Save(s.r, s.w)
}

func (s *Session) Logout() error {
	delete(s.sess.Values, loginKey)
	return s.sess.Save(s.r, s.w)
}
