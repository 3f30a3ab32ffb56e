package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"gallery/models"
)

// galleryWindow is the fixed display window: one featured image plus the
// five next most recent.
const galleryWindow = 6

type imageView struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Likes      int       `json:"likes"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (impl *ServerImpl) imageToView(image models.Image) imageView {
	return imageView{
		ID:         image.ID,
		Title:      image.Title,
		URL:        impl.storage.PublicURL(image.Filename),
		Likes:      image.Likes,
		UploadedAt: image.UploadedAt,
	}
}

// Render the public gallery
// (GET /)
func (impl *ServerImpl) GetGallery(c *gin.Context) {
	const op = "GetGallery"
	var images []models.Image
	result := impl.db.
		Where("pending = ?", false).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "uploaded_at"}, Desc: true}).
		Limit(galleryWindow).
		Find(&images)
	if result.Error != nil {
		slog.Error("Fail to list gallery images", slog.String("op", op), slog.Any("error", result.Error))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	var featured *imageView
	recent := []imageView{}
	if len(images) > 0 {
		featured = lo.ToPtr(impl.imageToView(images[0]))
		recent = lo.Map(images[1:], func(image models.Image, _ int) imageView {
			return impl.imageToView(image)
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"featured": featured,
		"recent":   recent,
	})
}

// Render the admin view
// (GET /admin-dashboard)
func (impl *ServerImpl) GetAdminDashboard(c *gin.Context) {
	const op = "GetAdminDashboard"
	payload := c.MustGet(ContextKeyAdmin).(*AdminSession)

	var images []models.Image
	result := impl.db.
		Where("user_id = ? AND pending = ?", payload.UserID, false).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "uploaded_at"}, Desc: true}).
		Find(&images)
	if result.Error != nil {
		slog.Error("Fail to list admin images", slog.String("op", op), slog.Any("error", result.Error))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	resp := gin.H{
		"username": payload.Username,
		"images": lo.Map(images, func(image models.Image, _ int) imageView {
			return impl.imageToView(image)
		}),
	}
	if notice := c.Query("notice"); notice != "" {
		resp["notice"] = notice
	}
	c.JSON(http.StatusOK, resp)
}
