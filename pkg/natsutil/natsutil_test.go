package natsutil

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestHeaderCarrier(t *testing.T) {
	c := (*natsHeaderCarrier)(&nats.Msg{})

	if got := c.Get("traceparent"); got != "" {
		t.Errorf("empty carrier returned %q", got)
	}
	if keys := c.Keys(); keys != nil {
		t.Errorf("empty carrier keys = %v", keys)
	}

	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("Get = %q", got)
	}
	if keys := c.Keys(); len(keys) != 1 {
		t.Errorf("keys = %v", keys)
	}
}

func TestHeaderCarrier_Overwrite(t *testing.T) {
	c := (*natsHeaderCarrier)(&nats.Msg{})
	c.Set("k", "one")
	c.Set("k", "two")
	if got := c.Get("k"); got != "two" {
		t.Errorf("Get = %q, want last set value", got)
	}
}
