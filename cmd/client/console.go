package main

import (
	"bufio"
	"classroom-live/projection"
	"classroom-live/runtime"
	"classroom-live/services"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
)

const chatHelp = "/more older messages, /open <id> switch conversation, /retry <id>, /discard <id>, /quit"
const notificationHelp = "/more older notifications, /read mark all as read, /quit"

type command struct {
	name string
	arg  string
}

// parseCommand splits "/name arg". Any other line is a plain text command.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{arg: line}
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// console reads the user's commands line by line.
type console struct {
	lines     chan string
	out       io.Writer
	threshold int
}

func newConsole(in io.Reader, out io.Writer, threshold int) *console {
	c := &console{lines: make(chan string), out: out, threshold: threshold}
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
	return c
}

// next blocks for the next command. ok is false once input or ctx ended.
func (c *console) next(ctx context.Context) (command, bool) {
	select {
	case <-ctx.Done():
		return command{}, false
	case line, ok := <-c.lines:
		if !ok {
			return command{}, false
		}
		return parseCommand(line), true
	}
}

func (c *console) chat(ctx context.Context, svc *services.ConversationService) error {
	c.info(chatHelp)
	for {
		cmd, ok := c.next(ctx)
		if !ok {
			return nil
		}
		switch cmd.name {
		case "":
			if cmd.arg == "" {
				continue
			}
			// A failed send stays in the timeline, flagged for retry
			_, _ = svc.Send(ctx, cmd.arg)
		case "more":
			more(c, svc.Current(), svc.Timeline())
		case "open":
			if cmd.arg == "" {
				c.warn("usage: /open <conversationId>")
				continue
			}
			svc.Open(ctx, cmd.arg)
		case "retry":
			if _, err := svc.Retry(ctx, cmd.arg); err != nil {
				c.warn(err.Error())
			}
		case "discard":
			if !svc.Discard(cmd.arg) {
				c.warn("no pending message " + cmd.arg)
			}
		case "quit", "exit":
			return nil
		default:
			c.info(chatHelp)
		}
	}
}

func (c *console) notifications(ctx context.Context, svc *services.NotificationService) error {
	c.info(notificationHelp)
	for {
		cmd, ok := c.next(ctx)
		if !ok {
			return nil
		}
		switch cmd.name {
		case "":
			continue
		case "more":
			more(c, svc.Current(), svc.Timeline())
		case "read":
			if err := svc.MarkAllRead(ctx); err != nil {
				c.warn(err.Error())
			}
		case "quit", "exit":
			return nil
		default:
			c.info(notificationHelp)
		}
	}
}

// more asks for the page above the oldest loaded item, as a scroll to the
// top of the list would.
func more[T projection.Item](c *console, session *runtime.Session[T], timeline *projection.Timeline[T]) {
	if session == nil {
		return
	}
	state := timeline.Snapshot()
	if session.OnViewport(state.AnchorIndex, c.threshold) {
		return
	}
	switch {
	case state.IsFetchingHistory:
		c.info("already loading")
	case state.HistoryErr != nil:
		c.warn(fmt.Sprintf("history unavailable: %v", state.HistoryErr))
	case !state.HasMoreHistory:
		c.info("beginning of history")
	}
}

func (c *console) info(s string) {
	_, _ = fmt.Fprintln(c.out, color.FgDarkGray.Sprint(s))
}

func (c *console) warn(s string) {
	_, _ = fmt.Fprintln(c.out, color.FgRed.Sprint(s))
}
