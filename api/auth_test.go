package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginRequest(username, password string) *http.Request {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/admin-login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPostAdminLogin(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		wantStatus int
	}{
		{
			name:       "valid credentials",
			username:   "alice",
			password:   "pw1",
			wantStatus: http.StatusFound,
		},
		{
			name:       "wrong password",
			username:   "alice",
			password:   "wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown user",
			username:   "mallory",
			password:   "pw1",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.seedUser(t, "alice", "pw1")

			w := ts.do(loginRequest(tt.username, tt.password))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusFound {
				assert.Equal(t, "/admin-dashboard", w.Header().Get("Location"))
			} else {
				assert.Contains(t, w.Body.String(), invalidCredentials)
			}
		})
	}
}

// Unknown username and wrong password must be indistinguishable to the
// caller.
func TestPostAdminLogin_FailuresAreIndistinguishable(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "pw1")

	wrongPassword := ts.do(loginRequest("alice", "nope"))
	unknownUser := ts.do(loginRequest("mallory", "pw1"))

	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestPostAdminLogin_SetsSessionPayload(t *testing.T) {
	ts := newTestServer(t)
	user := ts.seedUser(t, "alice", "pw1")

	w := ts.do(loginRequest("alice", "pw1"))
	require.Equal(t, http.StatusFound, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// the issued cookie opens the dashboard
	req := httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil)
	w2 := ts.do(req, cookies[0])
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), user.Username)
}

func TestRequireAdmin_RedirectsAnonymous(t *testing.T) {
	ts := newTestServer(t)

	protectedRuns := 0
	ts.router.GET("/protected", ts.impl.RequireAdmin(), func(c *gin.Context) {
		protectedRuns++
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/admin-dashboard", "/protected"} {
		w := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Contains(t, w.Header().Get("Location"), "/admin-login?notice=", path)
	}
	assert.Zero(t, protectedRuns)
}

func TestRequireAdmin_RejectsTamperedCookie(t *testing.T) {
	ts := newTestServer(t)
	user := ts.seedUser(t, "alice", "pw1")

	cookie := ts.sessionCookie(t, AdminSession{UserID: user.ID, Username: user.Username})
	cookie.Value = "forged." + strings.Split(cookie.Value, ".")[1]

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/admin-login")
}

func TestGetLogout_IsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	user := ts.seedUser(t, "alice", "pw1")
	cookie := ts.sessionCookie(t, AdminSession{UserID: user.ID, Username: user.Username})

	for i := 0; i < 2; i++ {
		w := ts.do(httptest.NewRequest(http.MethodGet, "/logout", nil), cookie)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	}

	// the session no longer opens protected routes
	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/admin-login")
}

func TestGetAdminLogin_EchoesNotice(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/admin-login?notice=Please+log+in", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please log in")
}
