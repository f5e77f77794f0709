package e2e

import (
	"classroom-live/infrastructure/rest"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const stepTimeout = 30 * time.Second

// BaseSuite runs scenarios against the backend named by BACKEND_URL.
type BaseSuite struct {
	suite.Suite
	Config Config
	Log    *slog.Logger
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.BackendURL == "" {
		s.T().Skip("BACKEND_URL is not set, skipping end-to-end scenarios")
	}
	level := slog.LevelInfo
	if s.Config.Debug {
		level = slog.LevelDebug
	}
	s.Log = logs.GetLoggerFromLevel(level)
}

// Header prints a step title in the test output
func (s *BaseSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Account registers a fresh user and returns its token and a client carrying it.
func (s *BaseSuite) Account(prefix string) (string, string, *rest.Client) {
	username := prefix + uuid.NewString()[:8]
	anonymous, err := rest.NewClient(s.Log, s.Config.BackendURL, "", 10*time.Second)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	token, err := anonymous.Register(ctx, username, "correct-horse-battery")
	s.Require().NoError(err, "Failed to register "+username)
	return username, token, anonymous.WithToken(token)
}

// Step runs fn under a titled header with a bounded context.
func (s *BaseSuite) Step(name string, fn func(ctx context.Context)) {
	s.Header(name)
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	fn(ctx)
}
