package natsbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

func testConfig() config.NATSConfig {
	return config.NATSConfig{
		Enabled:       true,
		URL:           nats.DefaultURL,
		SubjectPrefix: "grayhub-test",
		Name:          "grayhub-natsbus-test",
	}
}

// connectOrSkip connects to a local NATS server or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	c, err := Connect(testConfig())
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "nats://127.0.0.1:1"
	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"grayhub", []string{"device", "created"}, "grayhub.device.created"},
		{"grayhub", []string{"registry.", ".cleared"}, "grayhub.registry.cleared"},
		{"site1", []string{"device", "", "removed"}, "site1.device.removed"},
		{"grayhub", nil, "grayhub"},
	}
	for _, tt := range tests {
		if got := subject(tt.prefix, tt.parts...); got != tt.want {
			t.Errorf("subject(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c := &Client{prefix: "grayhub"}

	if err := c.Publish("", nil); !errors.Is(err, ErrInvalidSubject) {
		t.Errorf("Publish(empty) error = %v, want ErrInvalidSubject", err)
	}
	if err := c.PublishJSON("grayhub.x", map[string]int{"a": 1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishJSON() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestPublishJSON_RoundTrip(t *testing.T) {
	c := connectOrSkip(t)

	sub, err := c.conn.SubscribeSync(c.Subject("device", ">"))
	if err != nil {
		t.Fatalf("SubscribeSync() error = %v", err)
	}
	defer sub.Unsubscribe()

	if err := c.PublishJSON(c.Subject("device", "created"), map[string]string{"id": "lamp"}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg() error = %v", err)
	}
	if msg.Subject != "grayhub-test.device.created" || string(msg.Data) != `{"id":"lamp"}` {
		t.Errorf("got %s %s", msg.Subject, msg.Data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
