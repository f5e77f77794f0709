package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{line: "hello class", want: command{arg: "hello class"}},
		{line: "  /more ", want: command{name: "more"}},
		{line: "/OPEN c2", want: command{name: "open", arg: "c2"}},
		{line: "/retry  local-1 ", want: command{name: "retry", arg: "local-1"}},
		{line: "", want: command{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			require.Equal(t, tt.want, parseCommand(tt.line))
		})
	}
}

func TestConsole_NextStopsAtEndOfInput(t *testing.T) {
	req := require.New(t)
	c := newConsole(strings.NewReader("/read\nhi\n"), &bytes.Buffer{}, 3)

	cmd, ok := c.next(context.Background())
	req.True(ok)
	req.Equal("read", cmd.name)
	cmd, ok = c.next(context.Background())
	req.True(ok)
	req.Equal("hi", cmd.arg)

	_, ok = c.next(context.Background())
	req.False(ok)
}

func TestConsole_NextStopsWithContext(t *testing.T) {
	req := require.New(t)
	// Given an input that never ends
	c := newConsole(blocking{}, &bytes.Buffer{}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := c.next(ctx)
	req.False(ok)
}

type blocking struct{}

func (blocking) Read([]byte) (int, error) {
	select {}
}
