package internal

import (
	"classroom-live/auth"
	"fmt"
	"time"
)

// ClientConfig is read from the environment (and an optional .env file) by
// the classroom-live command.
type ClientConfig struct {
	APIBaseURL            string        `env:"API_BASE_URL,default=http://localhost:8080"`
	ChatBrokerURL         string        `env:"CHAT_BROKER_URL,default=http://localhost:8080/ws/chat"`
	NotificationBrokerURL string        `env:"NOTIFICATION_BROKER_URL,default=http://localhost:8080/ws/notifications"`
	AuthToken             string        `env:"AUTH_TOKEN"`
	Username              string        `env:"USERNAME"`
	PageSize              int           `env:"PAGE_SIZE,default=10"`
	ReconnectDelay        time.Duration `env:"RECONNECT_DELAY,default=5s"`
	StompHeartBeat        time.Duration `env:"STOMP_HEARTBEAT,default=10s"`
	HTTPTimeout           time.Duration `env:"HTTP_TIMEOUT,default=10s"`
	LoadMoreThreshold     int           `env:"LOAD_MORE_THRESHOLD,default=3"`
	LogLevel              string        `env:"LOG_LEVEL,default=INFO"`
}

func (c ClientConfig) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if c.LoadMoreThreshold < 0 {
		return fmt.Errorf("LOAD_MORE_THRESHOLD can't be negative, got %d", c.LoadMoreThreshold)
	}
	return nil
}

// BackendConfig configures the development backend.
type BackendConfig struct {
	Host              string        `envconfig:"HOST" default:"localhost"`
	Port              int           `envconfig:"PORT" default:"8080"`
	BadgerFilepath    string        `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	AuthTokenDuration time.Duration `envconfig:"AUTH_TOKEN_DURATION" default:"24h"`
	Argon2MemoryKiB   uint32        `envconfig:"ARGON2_MEMORY_KIB" default:"65536"`
	Argon2Iterations  uint32        `envconfig:"ARGON2_ITERATIONS" default:"3"`
	Argon2Parallelism uint8         `envconfig:"ARGON2_PARALLELISM" default:"2"`
	SessionBuffer     int           `envconfig:"SESSION_BUFFER" default:"64"`
	CharReplacement   string        `envconfig:"CHARACTER_REPLACEMENT" default:"*"`
	CensoredDir       string        `envconfig:"CENSORED_DIR"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`
}

func (c BackendConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Argon2 returns the cost of new password hashes; salt and key lengths are fixed.
func (c BackendConfig) Argon2() auth.Argon2Params {
	params := auth.DefaultArgon2Params
	params.MemoryKiB = c.Argon2MemoryKiB
	params.Iterations = c.Argon2Iterations
	params.Parallelism = c.Argon2Parallelism
	return params
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
