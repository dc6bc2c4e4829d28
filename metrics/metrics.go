// Package metrics exposes Prometheus counters for the association and
// DIMSE message lifecycle, registered against the default registry the
// way github.com/prometheus/client_golang/prometheus/promhttp expects.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AssociationsEstablished counts successful A-ASSOCIATE-AC sends.
	AssociationsEstablished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicomkit_associations_established_total",
		Help: "Associations that completed negotiation and reached Established.",
	})

	// AssociationsRejected counts A-ASSOCIATE-RJ sends, by reason text.
	AssociationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomkit_associations_rejected_total",
		Help: "Associations rejected during negotiation, by reason.",
	}, []string{"reason"})

	// AssociationsAborted counts A-ABORT PDUs sent or received, by which
	// side issued them ("local" or "peer").
	AssociationsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomkit_associations_aborted_total",
		Help: "Associations ended by A-ABORT, by origin (local/peer).",
	}, []string{"source"})

	// PDUsSent counts outbound Upper Layer PDUs, by type.
	PDUsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomkit_pdus_sent_total",
		Help: "Upper Layer PDUs written to the wire, by PDU type.",
	}, []string{"type"})

	// PDUsReceived counts inbound Upper Layer PDUs, by type.
	PDUsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomkit_pdus_received_total",
		Help: "Upper Layer PDUs read from the wire, by PDU type.",
	}, []string{"type"})

	// DIMSECommandsDispatched counts DIMSE command sets handled, by command
	// field name (C-ECHO-RQ, C-STORE-RQ, ...).
	DIMSECommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomkit_dimse_commands_dispatched_total",
		Help: "DIMSE command sets dispatched to a service handler, by command.",
	}, []string{"command"})

	// BytesParsed counts dataset bytes consumed by the Part 10 parser.
	BytesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicomkit_dataset_bytes_parsed_total",
		Help: "Total bytes consumed while parsing DICOM datasets.",
	})
)

// Handler returns the HTTP handler that serves the registered metrics in
// the Prometheus exposition format. Callers mount it on whatever HTTP
// server they already run; this package does not start one itself.
func Handler() http.Handler {
	return promhttp.Handler()
}
