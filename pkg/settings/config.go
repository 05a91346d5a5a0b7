package settings

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// consts
const (
	Name = "Medilink"
)

// Config ...
type Config struct {
	Name    string `ignored:"true"`
	Version string `ignored:"true"`
	Develop bool   `envconfig:"DEVELOP"`

	HTTPListen   string   `envconfig:"HTTP_LISTEN" default:":5001"`
	AllowOrigins []string `envconfig:"allow_origins" default:"*"` // CORS origins
	StartLimit   string   `envconfig:"START_LIMIT" default:"30-M"` // ulule/limiter formatted rate

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"https://medilinkaiservice-production.up.railway.app/"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"60s"`

	HistoryBackend  string        `envconfig:"HISTORY_BACKEND" default:"redis"` // redis | memory
	HistoryKey      string        `envconfig:"HISTORY_KEY" default:"medilink_consultation_history"`
	HistoryLifetime time.Duration `envconfig:"HISTORY_LIFETIME"` // zero keeps forever
	RedisURI        string        `envconfig:"redis_uri" default:"redis://localhost:6379/1"`

	PresetFile string `envconfig:"preset_file"`
}

var (
	// Current 当前配置
	Current = new(Config)
)

func init() {
	if err := envconfig.Process(Name, Current); err != nil {
		log.Printf("envconfig process fail: %s", err)
	}

	Current.Name = Name
	Current.Version = version
}

// Usage 打印配置帮助
func Usage() error {
	log.Printf("ver: %s", Current.Version)
	return envconfig.Usage(Current.Name, Current)
}

// InDevelop ...
func InDevelop() bool {
	return Current.Develop
}

// AllowAllOrigins ...
func AllowAllOrigins() bool {
	return 0 == len(Current.AllowOrigins) ||
		1 == len(Current.AllowOrigins) && Current.AllowOrigins[0] == "*"
}
