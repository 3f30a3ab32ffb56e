package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gallery/adapters/session"
	"gallery/models"
)

const testSessionSecret = "test-session-secret"

// fakeStorage records uploads instead of talking to a bucket.
type fakeStorage struct {
	mu      sync.Mutex
	uploads []fakeUpload
	failErr error
}

type fakeUpload struct {
	Key         string
	ContentType string
	Size        int
}

func (f *fakeStorage) Upload(_ context.Context, key, contentType string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return "", f.failErr
	}
	f.uploads = append(f.uploads, fakeUpload{Key: key, ContentType: contentType, Size: len(content)})
	return f.PublicURL(key), nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "https://img.test/" + key
}

func (f *fakeStorage) calls() []fakeUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeUpload(nil), f.uploads...)
}

// memSessionStore is an in-memory session.IStore.
type memSessionStore struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{data: make(map[string]map[string]string)}
}

func (s *memSessionStore) Load(_ context.Context, name string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data[name]))
	for k, v := range s.data[name] {
		out[k] = v
	}
	return out, nil
}

func (s *memSessionStore) Save(_ context.Context, name string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	s.data[name] = cp
	return nil
}

type testServer struct {
	impl    *ServerImpl
	router  *gin.Engine
	storage *fakeStorage
	store   *memSessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Image{}))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		_ = sqlDB.Close()
	})

	storage := &fakeStorage{}
	store := newMemSessionStore()
	impl := &ServerImpl{
		db:           db,
		storage:      storage,
		sessionStore: store,
		titlePolicy:  bluemonday.StrictPolicy(),
		config: ServerConfig{
			Session: SessionConfig{
				Secret:       testSessionSecret,
				CookieMaxAge: time.Hour,
			},
			Upload: UploadConfig{
				MaxBytes:      1 << 20,
				PendingMaxAge: 15 * time.Minute,
				SweepInterval: 10 * time.Millisecond,
			},
		},
	}

	router := gin.New()
	impl.RegisterRoutes(router)

	return &testServer{impl: impl, router: router, storage: storage, store: store}
}

func (ts *testServer) seedUser(t *testing.T, username, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: string(hash)}
	require.NoError(t, ts.impl.db.Create(&user).Error)
	return user
}

// sessionCookie plants an authenticated session in the store and returns
// the matching signed cookie.
func (ts *testServer) sessionCookie(t *testing.T, payload AdminSession) *http.Cookie {
	t.Helper()
	data, err := payload.MarshalBinary()
	require.NoError(t, err)
	id := uuid.NewString()
	require.NoError(t, ts.store.Save(context.Background(), id, map[string]string{
		SESSION_KEY_ADMIN: base64.StdEncoding.EncodeToString(data),
	}))
	return &http.Cookie{
		Name:  session.DefaultSessionKeyForCookie,
		Value: session.SignSessionID(id, []byte(testSessionSecret)),
	}
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// pngPayload is a minimal buffer http.DetectContentType reads as image/png.
func pngPayload(size int) []byte {
	payload := make([]byte, size)
	copy(payload, []byte("\x89PNG\r\n\x1a\n"))
	return payload
}

type filePart struct {
	field    string
	filename string
	content  []byte
}

// multipartBody builds a multipart form with optional file parts and plain
// fields. A filePart with an empty filename mimics a browser submitting an
// empty file input.
func multipartBody(t *testing.T, files []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		header.Set("Content-Type", "application/octet-stream")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (ts *testServer) imageCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, ts.impl.db.Model(&models.Image{}).Count(&count).Error)
	return count
}
