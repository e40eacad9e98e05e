package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svr_connections_accepted_total",
		Help: "Total number of client connections accepted and queued.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svr_queue_depth",
		Help: "Connections waiting for a worker.",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svr_events_received_total",
		Help: "Events decoded by workers, labelled by type name.",
	}, []string{"type"})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svr_events_rejected_total",
		Help: "Events dropped because their type is outside the known enumeration.",
	})

	TransportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svr_transport_errors_total",
		Help: "Connections that failed before a full event was read.",
	})

	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svr_alerts_total",
		Help: "Alert deliveries, labelled by channel and status.",
	}, []string{"channel", "status"})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "svr_event_processing_duration_ms",
		Help:    "Time from pop to close for one connection, in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	OutboundOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atm_outbound_connections_open",
		Help: "Outbound connections currently open from this ATM.",
	})

	ConnectFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atm_connect_failures_total",
		Help: "Candidate addresses that could not be connected to.",
	})

	EventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atm_events_sent_total",
		Help: "Events transmitted by this ATM, labelled by type name.",
	}, []string{"type"})
)
