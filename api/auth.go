package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gallery/adapters/session"
	"gallery/models"
)

// invalidCredentials is the single message for every login failure. Unknown
// username and wrong password are indistinguishable to the caller.
const invalidCredentials = "Invalid credentials. Please try again."

// Render the login entry point
// (GET /admin-login)
func (impl *ServerImpl) GetAdminLogin(c *gin.Context) {
	resp := gin.H{"form": gin.H{"fields": []string{"username", "password"}, "action": "/admin-login"}}
	if notice := c.Query("notice"); notice != "" {
		resp["notice"] = notice
	}
	c.JSON(http.StatusOK, resp)
}

// Validate credentials and open an admin session
// (POST /admin-login)
func (impl *ServerImpl) PostAdminLogin(c *gin.Context) {
	const op = "PostAdminLogin"
	username := c.PostForm("username")
	password := c.PostForm("password")

	user := models.User{}
	result := impl.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Error("Fail to look up user", slog.String("op", op), slog.Any("error", result.Error))
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": invalidCredentials})
		return
	}
	// One-way comparison; the plaintext never touches the stored hash.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": invalidCredentials})
		return
	}

	s, err := session.GetSession(c)
	if err != nil {
		slog.Error("Fail to load session", slog.String("op", op), slog.Any("error", err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if err := setAdminSession(s, AdminSession{UserID: user.ID, Username: user.Username}); err != nil {
		slog.Error("Fail to save session", slog.String("op", op), slog.Any("error", err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("Admin logged in", slog.String("username", user.Username))
	c.Redirect(http.StatusFound, "/admin-dashboard")
}

// Close the admin session
// (GET /logout)
func (impl *ServerImpl) GetLogout(c *gin.Context) {
	const op = "GetLogout"
	s, err := session.GetSession(c)
	if err != nil {
		slog.Error("Fail to load session", slog.String("op", op), slog.Any("error", err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	// Clearing an anonymous session is a no-op, so logout is idempotent.
	s.Delete(SESSION_KEY_ADMIN)
	if err := s.Save(); err != nil {
		slog.Error("Fail to save session", slog.String("op", op), slog.Any("error", err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Redirect(http.StatusFound, "/")
}
