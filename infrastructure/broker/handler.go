package broker

import (
	"bytes"
	"classroom-live/observability"
	"fmt"
	"io"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// transport is the part of a WebSocket connection a session uses.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler upgrades the request and serves one STOMP session on it.
// usernameKey names the fiber local holding the authenticated user.
func (b *Broker) Handler(usernameKey string) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		username, _ := c.Locals(usernameKey).(string)
		b.Serve(c, username)
	})
}

// Serve runs a STOMP session until the client disconnects or the socket breaks.
func (b *Broker) Serve(conn transport, username string) {
	s := b.register(username)
	log := b.log.With("session", s.id, "username", username)
	log.Debug("Broker session opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for data := range s.out {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("Write failed", "error", err)
				// Keep draining so the reader side can unregister
				for range s.out {
				}
				return
			}
		}
	}()

	defer func() {
		b.unregister(s)
		<-writerDone
		_ = conn.Close()
		log.Debug("Broker session closed")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reader := frame.NewReader(bytes.NewReader(data))
		for {
			f, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.fail(s, fmt.Sprintf("malformed frame: %v", err), nil)
				return
			}
			if f == nil {
				// heart-beat
				continue
			}
			if !b.handle(s, f) {
				return
			}
		}
	}
}

// handle processes one client frame and reports whether the session goes on.
func (b *Broker) handle(s *session, f *frame.Frame) bool {
	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		b.send(s, frame.New(frame.CONNECTED,
			frame.Version, "1.2",
			frame.HeartBeat, "0,0",
			frame.Server, "classroom-live"))
	case frame.SUBSCRIBE:
		destination, id := f.Header.Get(frame.Destination), f.Header.Get(frame.Id)
		if destination == "" || id == "" {
			b.fail(s, "subscribe requires destination and id", f)
			return false
		}
		if b.authorize != nil {
			if err := b.authorize(s.username, destination); err != nil {
				b.fail(s, err.Error(), f)
				return false
			}
		}
		b.subscribe(s, id, destination)
		b.log.Debug("Subscribed", "session", s.id, "destination", destination, "id", id)
	case frame.UNSUBSCRIBE:
		b.unsubscribe(s, f.Header.Get(frame.Id))
	case frame.SEND:
		// Receipt goes first, Publish may write to this very session
		b.receipt(s, f)
		b.Publish(f.Header.Get(frame.Destination), f.Body)
		return true
	case frame.DISCONNECT:
		b.receipt(s, f)
		return false
	case frame.ACK, frame.NACK, frame.BEGIN, frame.COMMIT, frame.ABORT:
		// auto acknowledgement only, nothing to track
	default:
		b.fail(s, "unsupported command "+f.Command, f)
		return false
	}
	b.receipt(s, f)
	return true
}

func (b *Broker) receipt(s *session, f *frame.Frame) {
	if receipt := f.Header.Get(frame.Receipt); receipt != "" {
		b.send(s, frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
	}
}

func (b *Broker) fail(s *session, message string, cause *frame.Frame) {
	errFrame := frame.New(frame.ERROR, frame.Message, message)
	if cause != nil {
		if receipt := cause.Header.Get(frame.Receipt); receipt != "" {
			errFrame.Header.Add(frame.ReceiptId, receipt)
		}
	}
	b.send(s, errFrame)
	b.log.Warn("Broker session refused a frame", "session", s.id, "reason", message)
}

// send queues a control frame. It shares the lock with Publish so it never
// races the outbox closing.
func (b *Broker) send(s *session, f *frame.Frame) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !s.offer(encode(f)) {
		observability.RecordDroppedFrame()
	}
}
