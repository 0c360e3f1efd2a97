// Package api exposes the session machine to the kiosk front-end as a
// local JSON control API.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/session"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/rs/zerolog"
)

// CreditReader reports the credit balance.
type CreditReader interface {
	Balance(ctx context.Context) (domain.Money, error)
}

// ProductLister lists the product catalogue.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// OrderReader reads recorded orders and daily sales.
type OrderReader interface {
	Get(ctx context.Context, id string) (*storage.Order, error)
	List(ctx context.Context, date string) ([]storage.Order, error)
	Sales(ctx context.Context, date string) (*storage.DailySales, error)
}

// NotificationSource returns the most recent customer notification.
type NotificationSource interface {
	Last() (notify.Notification, bool)
}

// Dependencies are the collaborators served by the API. Only Machine is
// required.
type Dependencies struct {
	Machine       *session.Machine
	Credit        CreditReader
	Products      ProductLister
	Orders        OrderReader
	Notifications NotificationSource
}

// Server is the control API HTTP server
type Server struct {
	deps     Dependencies
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a control API server on addr
func NewServer(addr string, deps Dependencies, requestTimeout time.Duration, logger zerolog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(requestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the route table
func (s *Server) Router(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(instrument)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/product", s.selectProduct)
			r.Post("/template", s.selectTemplate)

			r.Post("/capture", s.beginCapture)
			r.Post("/capture/retry", s.retryCapture)
			r.Get("/capture/diagnostics", s.captureDiagnostics)

			r.Post("/composed", s.onComposed)
			r.Post("/compose/retry", s.retryCompose)

			r.Post("/approve", s.approvePhotos)
			r.Post("/retake", s.requestRetake)

			r.Get("/extra-copies/quote", s.quoteExtraCopies)
			r.Post("/extra-copies", s.chooseExtraCopies)
			r.Post("/extra-copies/quantity/{direction}", s.changeQuantity)

			r.Post("/cross-sell/photo/{direction}", s.browseCrossSell)
			r.Post("/cross-sell/accept", s.acceptCrossSell)
			r.Post("/cross-sell/decline", s.declineCrossSell)

			r.Post("/finalize", s.finalize)
			r.Post("/abort", s.abort)
			r.Post("/reset", s.reset)
		})

		r.Get("/products", s.listProducts)
		r.Get("/credit", s.getCredit)
		r.Get("/orders", s.listOrders)
		r.Get("/orders/{order_id}", s.getOrder)
		r.Get("/sales", s.getSales)
	})

	return r
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting control API server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Control API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping control API server")
	return s.server.Shutdown(ctx)
}
