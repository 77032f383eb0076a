// Package natsutil publishes JSON records over NATS with OpenTelemetry
// trace propagation and idempotent message ids.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// MsgIDHeader lets JetStream-enabled subjects drop duplicate publishes.
const MsgIDHeader = "Nats-Msg-Id"

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

func newMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

// PublishWithID publishes v as JSON with a deterministic message id derived
// from key, so republishing the same record is idempotent on deduplicating
// streams. Trace context from ctx travels in the message headers.
func PublishWithID[T any](ctx context.Context, nc *nats.Conn, subject, key string, v T) error {
	msg, err := newMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	(*natsHeaderCarrier)(msg).Set(MsgIDHeader, MessageID(key))
	return nc.PublishMsg(msg)
}

// MessageID returns the stable id PublishWithID uses for key.
func MessageID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
