package internal

import (
	"classroom-live/auth"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_Defaults(t *testing.T) {
	req := require.New(t)
	var cfg ClientConfig
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.NoError(cfg.Validate())
	req.Equal(10, cfg.PageSize)
	req.Equal(5*time.Second, cfg.ReconnectDelay)
}

func TestClientConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("RECONNECT_DELAY", "250ms")
	t.Setenv("USERNAME", "bob")

	var cfg ClientConfig
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.Equal(25, cfg.PageSize)
	req.Equal(250*time.Millisecond, cfg.ReconnectDelay)
	req.Equal("bob", cfg.Username)

	cfg.PageSize = 0
	req.Error(cfg.Validate())
}

func TestBackendConfig(t *testing.T) {
	req := require.New(t)
	var cfg BackendConfig
	req.Error(envconfig.Process("", &cfg), "JWT_SECRET is required")

	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("PORT", "9090")
	req.NoError(envconfig.Process("", &cfg))
	req.Equal("localhost:9090", cfg.Address())
	req.Equal(24*time.Hour, cfg.AuthTokenDuration)
	req.Equal(auth.DefaultArgon2Params, cfg.Argon2())

	// Given a lighter hashing cost for a small host
	t.Setenv("ARGON2_MEMORY_KIB", "19456")
	t.Setenv("ARGON2_ITERATIONS", "2")
	t.Setenv("ARGON2_PARALLELISM", "1")
	req.NoError(envconfig.Process("", &cfg))
	params := cfg.Argon2()
	req.Equal(uint32(19456), params.MemoryKiB)
	req.Equal(uint32(2), params.Iterations)
	req.Equal(uint8(1), params.Parallelism)
	req.Equal(auth.DefaultArgon2Params.KeyLength, params.KeyLength)
	req.NoError(params.Validate())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)
	_, err = CharacterRune("**")
	req.Error(err)
}
