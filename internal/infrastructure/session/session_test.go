package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), "test-secret-key", false)
	require.NoError(t, err)
	return m
}

// roundTrip runs fn against a fresh request carrying the given cookies and
// returns the cookies the response set.
func roundTrip(t *testing.T, m *Manager, cookies []*http.Cookie, fn func(s *Session)) []*http.Cookie {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	fn(m.ForRequest(w, r))

	set := w.Result().Cookies()
	if len(set) == 0 {
		return cookies
	}
	return set
}

func TestGrantSurvivesRequests(t *testing.T) {
	m := newTestManager(t)

	cookies := roundTrip(t, m, nil, func(s *Session) {
		require.NoError(t, s.SetGrant("guide"))
	})
	require.NotEmpty(t, cookies)

	roundTrip(t, m, cookies, func(s *Session) {
		id, ok := s.Grant()
		require.True(t, ok)
		assert.Equal(t, "guide", id)
	})
}

func TestClearGrantIsDurable(t *testing.T) {
	m := newTestManager(t)

	cookies := roundTrip(t, m, nil, func(s *Session) {
		require.NoError(t, s.SetGrant("guide"))
	})
	cookies = roundTrip(t, m, cookies, func(s *Session) {
		require.NoError(t, s.ClearGrant())
	})
	roundTrip(t, m, cookies, func(s *Session) {
		_, ok := s.Grant()
		assert.False(t, ok, "cleared grant must not be observable later")
	})
}

func TestSetGrantOverwrites(t *testing.T) {
	m := newTestManager(t)

	cookies := roundTrip(t, m, nil, func(s *Session) {
		require.NoError(t, s.SetGrant("guide"))
		require.NoError(t, s.SetGrant("atlas"))
	})
	roundTrip(t, m, cookies, func(s *Session) {
		id, ok := s.Grant()
		require.True(t, ok)
		assert.Equal(t, "atlas", id)
	})
}

func TestFreshSessionHasNoGrant(t *testing.T) {
	m := newTestManager(t)

	roundTrip(t, m, nil, func(s *Session) {
		_, ok := s.Grant()
		assert.False(t, ok)
		assert.False(t, s.IsLoggedIn())
	})
}

func TestUndecodableCookieStartsFresh(t *testing.T) {
	m := newTestManager(t)

	bad := []*http.Cookie{{Name: "store_session", Value: "garbage"}}
	roundTrip(t, m, bad, func(s *Session) {
		_, ok := s.Grant()
		assert.False(t, ok)
	})
}

func TestAdminLoginFlag(t *testing.T) {
	m := newTestManager(t)

	cookies := roundTrip(t, m, nil, func(s *Session) {
		require.NoError(t, s.SetLoggedIn())
	})
	cookies = roundTrip(t, m, cookies, func(s *Session) {
		assert.True(t, s.IsLoggedIn())
		require.NoError(t, s.Logout())
	})
	roundTrip(t, m, cookies, func(s *Session) {
		assert.False(t, s.IsLoggedIn())
	})
}

func TestLoginFlagIndependentOfGrant(t *testing.T) {
	m := newTestManager(t)

	cookies := roundTrip(t, m, nil, func(s *Session) {
		require.NoError(t, s.SetGrant("guide"))
		require.NoError(t, s.SetLoggedIn())
	})
	cookies = roundTrip(t, m, cookies, func(s *Session) {
		require.NoError(t, s.ClearGrant())
	})
	roundTrip(t, m, cookies, func(s *Session) {
		assert.True(t, s.IsLoggedIn())
		_, ok := s.Grant()
		assert.False(t, ok)
	})
}
