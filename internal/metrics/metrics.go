package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photokiosk_sessions_started_total",
			Help: "Total sessions created at product selection",
		},
	)

	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_sessions_finished_total",
			Help: "Total sessions that reached a terminal stage",
		},
		[]string{"outcome"},
	)

	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "photokiosk_session_active",
			Help: "Whether a session is currently in progress",
		},
	)

	StageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_stage_transitions_total",
			Help: "Total stage transitions",
		},
		[]string{"from", "to"},
	)

	SessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photokiosk_session_duration_seconds",
			Help:    "Session duration from product selection to terminal stage",
			Buckets: []float64{30, 60, 120, 180, 300, 600, 900},
		},
		[]string{"outcome"},
	)

	// Capture metrics
	ShotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_shots_total",
			Help: "Total shutter triggers by result",
		},
		[]string{"result"},
	)

	CompositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_compositions_total",
			Help: "Total composition attempts by result",
		},
		[]string{"result"},
	)

	// Upsell and credit metrics
	UpsellOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_upsell_outcomes_total",
			Help: "Upsell offers by outcome",
		},
		[]string{"offer", "outcome"},
	)

	CreditRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_credit_rejections_total",
			Help: "Transitions refused for insufficient credit",
		},
		[]string{"stage"},
	)

	RevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_revenue_total",
			Help: "Revenue of finalized orders in currency units",
		},
		[]string{"product"},
	)

	// Order metrics
	OrdersRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photokiosk_orders_recorded_total",
			Help: "Total orders written to storage",
		},
	)

	OrdersPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photokiosk_orders_pruned_total",
			Help: "Total orders removed by retention",
		},
	)

	// Asset metrics
	AssetCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photokiosk_asset_cache_hits_total",
			Help: "Template asset cache hits",
		},
	)

	AssetCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photokiosk_asset_cache_misses_total",
			Help: "Template asset cache misses",
		},
	)

	// Control API metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photokiosk_api_requests_total",
			Help: "Total control API requests",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photokiosk_api_request_duration_seconds",
			Help:    "Control API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionsStarted,
		SessionsFinished,
		SessionActive,
		StageTransitions,
		SessionDuration,
		ShotsTotal,
		CompositionsTotal,
		UpsellOutcomes,
		CreditRejections,
		RevenueTotal,
		OrdersRecorded,
		OrdersPruned,
		AssetCacheHits,
		AssetCacheMisses,
		RequestsTotal,
		RequestDuration,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler serves /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
