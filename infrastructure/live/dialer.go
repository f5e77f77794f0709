// Package live connects to the classroom broker: STOMP 1.2 frames carried
// over a WebSocket, one endpoint per scope type.
package live

import (
	"classroom-live/contract"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
)

const disconnectTimeout = 2 * time.Second

// Dialer opens STOMP sessions on one broker endpoint.
type Dialer struct {
	log       *slog.Logger
	endpoint  string
	host      string
	token     string
	heartBeat time.Duration
	ws        *websocket.Dialer
}

// NewDialer accepts a ws(s):// or http(s):// endpoint. SockJS endpoints are
// reached through their raw "/websocket" transport.
func NewDialer(log *slog.Logger, endpoint, token string, heartBeat time.Duration) (*Dialer, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid broker endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid broker endpoint %q: unsupported scheme", endpoint)
	}
	if !strings.HasSuffix(u.Path, "/websocket") {
		u = u.JoinPath("websocket")
	}
	return &Dialer{
		log:       log,
		endpoint:  u.String(),
		host:      u.Hostname(),
		token:     token,
		heartBeat: heartBeat,
		ws:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
	}, nil
}

func (d *Dialer) Endpoint() string {
	return d.endpoint
}

func (d *Dialer) Dial(ctx context.Context) (contract.LiveConnection, error) {
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}
	ws, _, err := d.ws.DialContext(ctx, d.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("websocket %s: %w", d.endpoint, err)
	}

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(d.host),
		stomp.ConnOpt.HeartBeat(d.heartBeat, d.heartBeat),
	}
	if d.token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+d.token))
	}
	conn, err := stomp.Connect(newWSConn(ws), opts...)
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("stomp connect %s: %w", d.endpoint, err)
	}
	d.log.Debug("Broker connected", "endpoint", d.endpoint, "version", conn.Version())
	return &connection{log: d.log, conn: conn}, nil
}

type connection struct {
	log  *slog.Logger
	conn *stomp.Conn
}

func (c *connection) Subscribe(destination string) (contract.LiveSubscription, error) {
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	s := &subscription{
		sub:  sub,
		out:  make(chan contract.Delivery),
		done: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

// Disconnect waits briefly for the broker's receipt, then drops the socket.
func (c *connection) Disconnect() error {
	result := make(chan error, 1)
	go func() { result <- c.conn.Disconnect() }()
	select {
	case err := <-result:
		return err
	case <-time.After(disconnectTimeout):
		c.log.Debug("No disconnect receipt, closing socket")
		return c.conn.MustDisconnect()
	}
}

type subscription struct {
	sub      *stomp.Subscription
	out      chan contract.Delivery
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) Deliveries() <-chan contract.Delivery {
	return s.out
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.sub.Active() {
			err = s.sub.Unsubscribe()
		}
	})
	return err
}

// pump forwards broker messages until the subscription ends.
func (s *subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.sub.C:
			if !ok {
				return
			}
			delivery := contract.Delivery{Err: msg.Err}
			if msg.Err == nil {
				delivery.Body = msg.Body
			}
			select {
			case s.out <- delivery:
			case <-s.done:
				return
			}
			if msg.Err != nil {
				return
			}
		}
	}
}
