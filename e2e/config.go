package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// BACKEND_URL is the base url of a running backend, e.g. http://localhost:8080
	BackendURL string `envconfig:"BACKEND_URL"`
	// E2E_DEBUG logs every client step at debug level
	Debug bool `envconfig:"E2E_DEBUG" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func (c Config) ChatBrokerURL() string {
	return c.BackendURL + "/ws/chat"
}

func (c Config) NotificationBrokerURL() string {
	return c.BackendURL + "/ws/notifications"
}
