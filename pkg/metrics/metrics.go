package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popfetch_connections_total",
			Help: "Total number of connection attempts to the mail server",
		},
		[]string{"security", "result"},
	)

	ConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popfetch_connections_current",
			Help: "Current number of open server connections",
		},
	)

	ConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "popfetch_connection_duration_seconds",
			Help:    "Duration of server connections in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AuthenticationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popfetch_authentication_attempts_total",
			Help: "Total number of authentication attempts by mechanism",
		},
		[]string{"mechanism", "result"},
	)
)

// Protocol metrics
var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popfetch_commands_total",
			Help: "Total number of POP3 commands sent, by reply status",
		},
		[]string{"command", "status"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "popfetch_command_duration_seconds",
			Help:    "Round-trip time of POP3 commands",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"command"},
	)

	BytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popfetch_bytes_received_total",
			Help: "Total bytes of multi-line response payload received",
		},
	)
)

// Message metrics
var (
	MessagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popfetch_messages_fetched_total",
			Help: "Total number of messages retrieved with RETR",
		},
	)

	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popfetch_messages_deleted_total",
			Help: "Total number of DELE commands by result",
		},
		[]string{"result"},
	)

	MessagesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popfetch_messages_decoded_total",
			Help: "Total number of raw messages assembled into records",
		},
		[]string{"result"},
	)

	AttachmentsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popfetch_attachments_decoded_total",
			Help: "Total number of named MIME parts decoded as attachments",
		},
	)
)

// StatusLabel maps a reply outcome to the status label used by CommandsTotal.
func StatusLabel(sent, ok bool) string {
	switch {
	case !sent:
		return "send_failed"
	case ok:
		return "ok"
	default:
		return "err"
	}
}
