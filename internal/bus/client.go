// Package bus connects the runtime to NATS and publishes turn analytics.
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hawkaii/raahi-assistant/internal/config"
	"github.com/hawkaii/raahi-assistant/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Publisher is the slice of the bus the orchestrator needs. A nil *Client
// satisfies it as a no-op, so disabling the bus costs nothing at call sites.
type Publisher interface {
	PublishTurn(ctx context.Context, evt protocol.TurnEvent) error
	PublishSession(ctx context.Context, evt protocol.SessionEvent) error
}

// Client wraps a NATS connection with publish helpers for assistant events.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("raahi-assistant"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{
		conn: conn,
		log:  log,
	}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// PublishTurn emits a completed-turn event. Publishing is best effort; the
// response to the driver never waits on the bus.
func (c *Client) PublishTurn(ctx context.Context, evt protocol.TurnEvent) error {
	if c == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return c.publish(protocol.SubjectTurnCompleted, evt)
}

// PublishSession emits a session lifecycle event.
func (c *Client) PublishSession(ctx context.Context, evt protocol.SessionEvent) error {
	if c == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	subject := protocol.SubjectSessionCreated
	if evt.State == "ended" {
		subject = protocol.SubjectSessionEnded
	}
	return c.publish(subject, evt)
}

func (c *Client) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
