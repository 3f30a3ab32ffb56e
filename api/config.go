package api

import "time"

type ServerConfig struct {
	Session SessionConfig
	Admin   AdminConfig
	S3      S3Config
	DB      DBConfig
	Redis   RedisConfig
	Upload  UploadConfig
}

type SessionConfig struct {
	// Secret signs session cookies.
	Secret       string
	CookieMaxAge time.Duration
}

// AdminConfig optionally seeds the admin account at startup. Further user
// rows are created externally.
type AdminConfig struct {
	Username string
	Password string
}

type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Bucket          string
	PublicBaseURL   string
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type UploadConfig struct {
	// MaxBytes caps the accepted image size.
	MaxBytes int64
	// PendingMaxAge is how long an unconfirmed metadata row may live before
	// the reconciliation sweep removes it.
	PendingMaxAge time.Duration
	// SweepInterval is the pause between reconciliation sweeps.
	SweepInterval time.Duration
}
