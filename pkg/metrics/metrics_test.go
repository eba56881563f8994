package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConnectionMetrics(t *testing.T) {
	ConnectionsTotal.Reset()
	AuthenticationAttempts.Reset()

	ConnectionsTotal.WithLabelValues("ssl", "success").Inc()
	ConnectionsTotal.WithLabelValues("plain", "failure").Inc()
	ConnectionsTotal.WithLabelValues("plain", "failure").Inc()
	AuthenticationAttempts.WithLabelValues("apop", "failure").Inc()
	AuthenticationAttempts.WithLabelValues("user", "success").Inc()

	if got := testutil.ToFloat64(ConnectionsTotal.WithLabelValues("plain", "failure")); got != 2 {
		t.Errorf("Expected 2 failed plain connections, got %f", got)
	}
	if got := testutil.ToFloat64(ConnectionsTotal.WithLabelValues("ssl", "success")); got != 1 {
		t.Errorf("Expected 1 ssl connection, got %f", got)
	}
	if got := testutil.ToFloat64(AuthenticationAttempts.WithLabelValues("apop", "failure")); got != 1 {
		t.Errorf("Expected 1 apop failure, got %f", got)
	}
}

func TestCommandMetrics(t *testing.T) {
	CommandsTotal.Reset()

	CommandsTotal.WithLabelValues("RETR", StatusLabel(true, true)).Inc()
	CommandsTotal.WithLabelValues("DELE", StatusLabel(true, false)).Inc()
	CommandsTotal.WithLabelValues("QUIT", StatusLabel(false, false)).Inc()

	tests := []struct {
		command string
		status  string
	}{
		{"RETR", "ok"},
		{"DELE", "err"},
		{"QUIT", "send_failed"},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(CommandsTotal.WithLabelValues(tt.command, tt.status)); got != 1 {
			t.Errorf("%s/%s: expected 1, got %f", tt.command, tt.status, got)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if StatusLabel(false, true) != "send_failed" {
		t.Error("unsent command must be labelled send_failed regardless of ok")
	}
	if StatusLabel(true, true) != "ok" || StatusLabel(true, false) != "err" {
		t.Error("unexpected label for sent command")
	}
}
