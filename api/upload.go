package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	internalS3 "gallery/adapters/s3"
	"gallery/models"
)

// Accept an image and persist its metadata
// (POST /upload)
//
// The metadata row is written first in a pending state and confirmed once
// object storage acknowledges the bytes, so a crash between the two calls
// leaves a pending row for the sweep instead of a phantom gallery entry.
func (impl *ServerImpl) PostUpload(c *gin.Context) {
	const op = "PostUpload"
	payload := c.MustGet(ContextKeyAdmin).(*AdminSession)

	// preconditions, in order
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		// a file input submitted empty arrives as a value part with no
		// filename, which is "no selected file" rather than a missing part
		if form, ferr := c.MultipartForm(); ferr == nil && len(form.Value["file"]) > 0 {
			c.String(http.StatusBadRequest, "no selected file")
			return
		}
		c.String(http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		c.String(http.StatusBadRequest, "no selected file")
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = header.Filename
	}
	title = impl.titlePolicy.Sanitize(title)

	// read the stream through the size cap and type-check the actual bytes;
	// the client-declared content type is not trusted
	body := internalS3.NewMaxSizeReader(file, impl.config.Upload.MaxBytes)
	content, err := io.ReadAll(body)
	if errors.As(err, &internalS3.ErrReachLimitType) {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Fail to read upload", slog.String("op", op), slog.Any("error", err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	mimeType := http.DetectContentType(content)
	secure, _ := internalS3.CheckSecureImageAndGetExtension(mimeType)
	if !secure {
		c.String(http.StatusBadRequest, fmt.Sprintf("Invalid image type: %s", mimeType))
		return
	}

	// resolve the uploader before touching storage; a stale session writes
	// nothing anywhere
	user := models.User{}
	result := impl.db.Where("id = ?", payload.UserID).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		c.Redirect(http.StatusFound, "/admin-dashboard?notice="+url.QueryEscape("user not found"))
		return
	}
	if result.Error != nil {
		slog.Error("Fail to resolve uploader", slog.String("op", op), slog.Any("error", result.Error))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	// the object key is the bare original filename; re-uploading the same
	// name overwrites the object
	key := filepath.Base(header.Filename)

	image := models.Image{
		Title:      title,
		Filename:   key,
		UploadedAt: time.Now().UTC(),
		Pending:    true,
		UserID:     user.ID,
	}
	if result := impl.db.Create(&image); result.Error != nil {
		slog.Error("Fail to create image row", slog.String("op", op), slog.Any("error", result.Error))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := impl.storage.Upload(c.Request.Context(), key, mimeType, content); err != nil {
		slog.Error("Fail to upload image to storage", slog.String("op", op), slog.Any("error", err))
		// best effort; the sweep picks up whatever this leaves behind
		if result := impl.db.Delete(&image); result.Error != nil {
			slog.Warn("Fail to remove pending image row", slog.String("op", op), slog.Any("error", result.Error))
		}
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	if result := impl.db.Model(&image).Update("pending", false); result.Error != nil {
		slog.Error("Fail to confirm image row", slog.String("op", op), slog.Any("error", result.Error))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("Image uploaded",
		slog.String("filename", key),
		slog.String("mimeType", mimeType),
		slog.Uint64("userID", uint64(user.ID)),
	)
	c.Redirect(http.StatusFound, "/admin-dashboard")
}
