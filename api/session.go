package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"

	"gallery/adapters/redis"
	"gallery/adapters/session"
)

const (
	// SESSION_KEY_ADMIN holds the serialized AdminSession payload.
	SESSION_KEY_ADMIN = "admin"

	// ContextKeyAdmin carries the authenticated payload from the guard to
	// the handler.
	ContextKeyAdmin = "gallery-admin-session"
)

// AdminSession is the typed session payload of a logged-in admin. Keeping
// the user identity in one payload avoids the flag-plus-cached-username
// split that can diverge.
type AdminSession struct {
	UserID   uint
	Username string
}

func (s AdminSession) MarshalBinary() ([]byte, error) {
	type tmp struct {
		UserID   uint
		Username string
	}
	return msgpack.Marshal(tmp{UserID: s.UserID, Username: s.Username})
}

func (s *AdminSession) UnmarshalBinary(data []byte) error {
	type tmp struct {
		UserID   uint
		Username string
	}
	var bfr tmp
	if err := msgpack.Unmarshal(data, &bfr); err != nil {
		return err
	}
	s.UserID = bfr.UserID
	s.Username = bfr.Username
	return nil
}

// adminSessionFrom decodes the admin payload out of a loaded session,
// returning nil when the session is anonymous or the payload is corrupt.
func adminSessionFrom(s session.ISession) *AdminSession {
	raw := s.Get(SESSION_KEY_ADMIN)
	if raw == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var payload AdminSession
	if err := payload.UnmarshalBinary(data); err != nil {
		return nil
	}
	return &payload
}

func setAdminSession(s session.ISession, payload AdminSession) error {
	data, err := payload.MarshalBinary()
	if err != nil {
		return err
	}
	s.Set(SESSION_KEY_ADMIN, base64.StdEncoding.EncodeToString(data))
	return s.Save()
}

func (impl *ServerImpl) SessionMiddleware() gin.HandlerFunc {
	return session.GinMiddleware(
		impl.sessionStore,
		[]byte(impl.config.Session.Secret),
		session.WithCookieMaxAge(impl.config.Session.CookieMaxAge),
	)
}

// RequireAdmin gates a route on an authenticated session. Anonymous
// requests are sent to the login page with a notice; the wrapped handler
// never runs.
func (impl *ServerImpl) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "RequireAdmin"
		s, err := session.GetSession(c)
		if err != nil {
			slog.Error("Fail to load session", slog.String("op", op), slog.Any("error", err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		payload := adminSessionFrom(s)
		if payload == nil {
			c.Redirect(http.StatusFound, "/admin-login?notice="+url.QueryEscape("Please log in to access this page."))
			c.Abort()
			return
		}
		c.Set(ContextKeyAdmin, payload)
		c.Next()
	}
}

func (impl *ServerImpl) newSessionStore() session.IStore {
	return redis.NewStore(
		impl.redisClient,
		redis.WithStorePrefix(impl.config.Redis.KeyPrefix+"session:"),
	)
}
