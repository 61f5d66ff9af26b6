package app

import (
	"io"
	"log/slog"
	"testing"
)

func TestControllerLoopFirstConnect(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := newControllerLoop("", nil, nil, logger)

	var calls []string
	c.onFirstConnect = func(padType string) {
		calls = append(calls, padType)
	}

	if connected, padType := c.status(); connected || padType != "none" {
		t.Fatalf("initial status = %v/%s, want false/none", connected, padType)
	}

	c.setStatus(true, "PS3")
	if connected, padType := c.status(); !connected || padType != "PS3" {
		t.Errorf("status after connect = %v/%s, want true/PS3", connected, padType)
	}

	// disconnect and reconnect: the callback must not fire again
	c.setStatus(false, "none")
	c.setStatus(true, "Xbox")

	if len(calls) != 1 || calls[0] != "PS3" {
		t.Errorf("onFirstConnect calls = %v, want exactly [PS3]", calls)
	}
}

func TestControllerLoopNoCallback(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := newControllerLoop("", nil, nil, logger)

	// no onFirstConnect set; must not panic
	c.setStatus(true, "PS3")
	if connected, _ := c.status(); !connected {
		t.Error("status after connect = false, want true")
	}
}
