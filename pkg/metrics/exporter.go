package metrics

import (
	"fmt"
	"net/http"

	"github.com/downfa11-org/revread/pkg/types"
	"github.com/downfa11-org/revread/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	prometheus.MustRegister(ReverseSessions, ReverseLines, ReverseBytes, WarningsTotal, LineEndings)
	prometheus.MustRegister(LockAcquisitions, LockWait, LocksHeld)
}

func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		util.Info("[METRICS] Prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			util.Error("[METRICS] Failed to start metrics server: %v", err)
		}
	}()
}

// ReportWarning is the default sink for reader warnings: count it, then log it.
func ReportWarning(w types.Warning) {
	WarningsTotal.WithLabelValues(w.Kind.String()).Inc()
	util.Warn("%s", w)
}
