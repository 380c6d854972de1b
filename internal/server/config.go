package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config は HTTP サーバーの設定です。環境変数から読み込みます。
type Config struct {
	Port            int           `env:"STORY_SERVER_PORT" envDefault:"8080"`
	SessionTTL      time.Duration `env:"STORY_SESSION_TTL" envDefault:"30m"`
	ShutdownTimeout time.Duration `env:"STORY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"STORY_MAX_BODY_BYTES" envDefault:"1048576"`
	// MaxPanels はリクエストで指定がない場合のパネル数です。0 ならエンジンの設定に従います。
	MaxPanels int `env:"STORY_MAX_PANELS" envDefault:"0"`
	// HeartbeatInterval は SSE のコメント行を送る間隔です。0 なら送りません。
	HeartbeatInterval time.Duration `env:"STORY_SSE_HEARTBEAT" envDefault:"15s"`
}

// LoadConfig は環境変数からサーバー設定を読み込みます。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
