package app

import (
	"github.com/stagium/backend/internal/platform/envutil"
)

type Config struct {
	Port              string
	Env               string
	Version           string
	JWTSecretKey      string
	UploadRoot        string
	NotifyConcurrency int
	CacheEnabled      bool
}

func LoadConfig() Config {
	return Config{
		Port:              envutil.Str("PORT", "8080"),
		Env:               envutil.Str("APP_ENV", "development"),
		Version:           envutil.Str("APP_VERSION", "dev"),
		JWTSecretKey:      envutil.Str("JWT_SECRET_KEY", "defaultsecret"),
		UploadRoot:        envutil.Str("UPLOAD_ROOT", "./uploads/notes_service"),
		NotifyConcurrency: envutil.Int("NOTIFY_CONCURRENCY", 4),
		CacheEnabled:      envutil.Str("REDIS_ADDR", "") != "",
	}
}
