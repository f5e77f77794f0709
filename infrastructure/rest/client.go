// Package rest is the HTTP client of the classroom backend's chat and
// notification endpoints.
package rest

import (
	"bytes"
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const maxBodySize = 4 << 20

type Client struct {
	log     *slog.Logger
	baseURL *url.URL
	http    *http.Client
	token   string
}

func NewClient(log *slog.Logger, baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		log:     log,
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}, nil
}

// WithToken returns a client sending the given bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// FetchConversationPage returns one page of a conversation, newest first.
func (c *Client) FetchConversationPage(ctx context.Context, conversationID string, page, size int) ([]chat.Message, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var raw []wire.ChatMessage
	if err := c.do(ctx, http.MethodGet, c.endpoint(query, "chat", "startChat", conversationID), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(raw))
	for _, w := range raw {
		msg, err := w.ToDomain()
		if err != nil {
			return nil, err
		}
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, msg chat.OutgoingMessage) error {
	return c.do(ctx, http.MethodPost, c.endpoint(nil, "chat", "startChat"), wire.FromOutgoing(msg), nil)
}

// FetchNotifications returns the whole notification feed of username.
func (c *Client) FetchNotifications(ctx context.Context, username string) ([]notification.Notification, error) {
	var raw []wire.Notification
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "notifications", username), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]notification.Notification, 0, len(raw))
	for _, w := range raw {
		n, err := w.ToDomain()
		if err != nil {
			return nil, err
		}
		if n.Username == "" {
			n.Username = username
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *Client) MarkAllRead(ctx context.Context, username string) error {
	query := url.Values{}
	query.Set("username", username)
	return c.do(ctx, http.MethodPost, c.endpoint(query, "notifications", "read-all"), nil, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var res wire.TokenResult
	creds := wire.Credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "auth", "login"), creds, &res); err != nil {
		return "", err
	}
	return res.Token, nil
}

// Register creates an account and returns its first bearer token.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var res wire.TokenResult
	creds := wire.Credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "auth", "register"), creds, &res); err != nil {
		return "", err
	}
	return res.Token, nil
}

// Notify sends a notification to n.Username on behalf of the token's owner.
func (c *Client) Notify(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	var res wire.Notification
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "notifications"), wire.FromNotification(n), &res); err != nil {
		return notification.Notification{}, err
	}
	return res.ToDomain()
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.baseURL.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request. out receives the envelope's result, nil to ignore it.
func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, req.URL.Path, err)
	}
	c.log.Debug("Backend call", "method", method, "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, errors.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: unexpected status %d", method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return wire.DecodeResult(raw, out)
}
