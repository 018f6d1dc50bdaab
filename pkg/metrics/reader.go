package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReverseSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revread_sessions_total",
			Help: "Total number of reverse read sessions started",
		},
		[]string{"strategy"}, // chunked, buffered, mapped
	)

	ReverseLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revread_lines_emitted_total",
			Help: "Total number of lines emitted in reverse order",
		},
		[]string{"strategy"},
	)

	ReverseBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revread_bytes_read_total",
			Help: "Total number of source bytes consumed by reverse readers",
		},
		[]string{"strategy"},
	)

	WarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revread_warnings_total",
			Help: "Total number of non-fatal warnings raised while reading",
		},
		[]string{"kind"},
	)

	LineEndings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revread_line_endings_detected_total",
			Help: "Line ending conventions detected by the sniffer",
		},
		[]string{"ending"},
	)
)
