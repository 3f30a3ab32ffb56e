package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	internalS3 "gallery/adapters/s3"
	"gallery/adapters/session"
	"gallery/models"
)

// ObjectStorage is the narrow gateway the upload flow needs from the
// bucket. The S3 operator implements it; tests substitute a recorder.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, content []byte) (string, error)
	PublicURL(key string) string
}

type ServerImpl struct {
	db           *gorm.DB
	storage      ObjectStorage
	sessionStore session.IStore
	titlePolicy  *bluemonday.Policy
	redisClient  *redis.Client
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// S3 client
	s3Cfg, err := awsCfg.LoadDefaultConfig(
		context.Background(),
		awsCfg.WithBaseEndpoint(config.S3.Endpoint),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.S3.AccessKeyID, config.S3.SecretAccessKey, "")),
		awsCfg.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load AWS config, err=%w", op, err)
	}
	storage, err := internalS3.NewOperator(s3.NewFromConfig(s3Cfg), config.S3.Bucket, config.S3.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create S3 operator, err=%w", op, err)
	}

	// database
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Image{}); err != nil {
		return nil, fmt.Errorf("[%s] Fail to migrate schema, err=%w", op, err)
	}

	// redis, backing the session store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	impl := &ServerImpl{
		db:          db,
		storage:     storage,
		titlePolicy: bluemonday.StrictPolicy(),
		redisClient: redisClient,
		config:      config,
	}
	impl.sessionStore = impl.newSessionStore()

	if err := impl.seedAdmin(); err != nil {
		return nil, fmt.Errorf("[%s] Fail to seed admin user, err=%w", op, err)
	}

	return impl, nil
}

// seedAdmin creates the configured admin account if it does not exist yet.
// All other user rows are created externally.
func (impl *ServerImpl) seedAdmin() error {
	const op = "seedAdmin"
	if impl.config.Admin.Username == "" || impl.config.Admin.Password == "" {
		return nil
	}
	user := models.User{}
	result := impl.db.Where("username = ?", impl.config.Admin.Username).First(&user)
	if result.Error == nil {
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("[%s] Fail to look up admin user, err=%w", op, result.Error)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(impl.config.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("[%s] Fail to hash admin password, err=%w", op, err)
	}
	user = models.User{
		Username:     impl.config.Admin.Username,
		PasswordHash: string(hash),
	}
	if result := impl.db.Create(&user); result.Error != nil {
		return fmt.Errorf("[%s] Fail to create admin user, err=%w", op, result.Error)
	}
	slog.Info("Seeded admin user", slog.String("username", user.Username))
	return nil
}

func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	router.Use(impl.SessionMiddleware())

	router.GET("/", impl.GetGallery)
	router.GET("/admin-login", impl.GetAdminLogin)
	router.POST("/admin-login", impl.PostAdminLogin)
	router.GET("/logout", impl.GetLogout)

	admin := router.Group("/", impl.RequireAdmin())
	admin.GET("/admin-dashboard", impl.GetAdminDashboard)
	admin.POST("/upload", impl.PostUpload)
}

// Start launches the reconciliation sweep that removes pending image rows
// whose storage upload never got confirmed.
func (impl *ServerImpl) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel
	slog.Info("Start pending image sweep worker")
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "PendingSweep"))
		defer impl.wg.Done()
		defer slog.Info("Pending image sweep worker stopped")
		ticker := time.NewTicker(impl.config.Upload.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := impl.sweepPending(time.Now().UTC())
				if err != nil {
					logger.Error("Fail to sweep pending images", slog.Any("error", err))
					continue
				}
				if removed > 0 {
					logger.Info("Removed abandoned pending images", slog.Int64("count", removed))
				}
			}
		}
	}()
}

// sweepPending deletes pending rows older than the configured abandonment
// age. The object under the same key, if any, is tolerated: a retried
// upload overwrites it.
func (impl *ServerImpl) sweepPending(now time.Time) (int64, error) {
	const op = "sweepPending"
	cutoff := now.Add(-impl.config.Upload.PendingMaxAge)
	result := impl.db.Where("pending = ? AND uploaded_at < ?", true, cutoff).Delete(&models.Image{})
	if result.Error != nil {
		return 0, fmt.Errorf("[%s] Fail to delete pending images, err=%w", op, result.Error)
	}
	return result.RowsAffected, nil
}

func (impl *ServerImpl) Close() {
	if impl.cancelFunc != nil {
		impl.cancelFunc()
	}
	impl.wg.Wait()
	if impl.redisClient != nil {
		if err := impl.redisClient.Close(); err != nil {
			slog.Warn("Fail to close redis client", slog.Any("error", err))
		}
	}
}
