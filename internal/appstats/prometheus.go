package appstats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/soniclabs/native-recorder/internal/config"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "in_requests",
		Help:      "Number of commands received by the recorder",
	},
		[]string{
			"method",
		})

	InvalidRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "invalid_requests",
		Help:      "Number of invalid commands",
	})

	Responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "out_responses",
		Help:      "Number of responses from the recorder",
	},
		[]string{
			"method",
		})

	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "sessions",
		Help:      "Current number of engine sessions",
	})

	JoinResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "join_results_total",
		Help:      "Total number of settled join attempts by outcome",
	},
		[]string{
			"outcome", // joined/failed
		})

	JoinTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "join_timeouts_total",
		Help:      "Total number of join timeout expiries (advisory or fatal)",
	})

	RelayedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "relayed_events_total",
		Help:      "Total number of engine events relayed to subscribers",
	},
		[]string{
			"kind", // engine callback kind
		})

	SessionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "session_errors_total",
		Help:      "Total number of session errors",
	},
		[]string{
			"reason",
		})
)

func Init() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(InvalidRequests)
	prometheus.MustRegister(Responses)
	prometheus.MustRegister(Sessions)
	prometheus.MustRegister(JoinResults)
	prometheus.MustRegister(JoinTimeouts)
	prometheus.MustRegister(RelayedEvents)
	prometheus.MustRegister(SessionErrors)
}

func ServePromMetrics(cfg config.Prometheus) {
	if !cfg.Enable {
		return
	}

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(cfg.ListenAddress, nil); err != nil {
			log.Errorf("failed to start metrics server: %s", err)
		}
	}()

	log.Infof("Prometheus metrics exported on %s", cfg.ListenAddress)
}

func OnServerRequest(method string) {
	Requests.WithLabelValues(method).Inc()
}

func OnInvalidRequest() {
	InvalidRequests.Inc()
}

func OnServerResponse(method string) {
	Responses.WithLabelValues(method).Inc()
}

var joinOutcomes = map[bool]string{true: "joined", false: "failed"}

func OnJoinResult(joined bool) {
	JoinResults.WithLabelValues(joinOutcomes[joined]).Inc()
}

func OnJoinTimeout() {
	JoinTimeouts.Inc()
}

func OnEventRelayed(kind string) {
	RelayedEvents.WithLabelValues(kind).Inc()
}

func OnSessionError(reason string) {
	SessionErrors.WithLabelValues(reason).Inc()
}
