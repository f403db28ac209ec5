package api

import (
	"context"
	"net/http"
	"time"

	"marketsim/internal/market"
	"marketsim/internal/trading"
	"marketsim/pkg/storage/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Market serves quotes and chart windows.
type Market interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
	Chart(ctx context.Context, symbol string, period string) ([]market.PricePoint, error)
}

// Trading is the paper-trading surface exposed over HTTP.
type Trading interface {
	PlaceOrder(ctx context.Context, userID int64, order trading.Order) (*trading.OrderResult, error)
	PortfolioSummary(ctx context.Context, userID int64) (*trading.Portfolio, error)
	TradeHistory(ctx context.Context, userID int64, limit int) ([]trading.Trade, error)
	Reset(ctx context.Context, userID int64) (*trading.Account, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	Logger         *zap.Logger
	DB             *database.Client
	Market         Market
	Trading        Trading
	// Stream serves /ws/prices when set.
	Stream http.Handler
}

// Server is the HTTP front of the simulator.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	logger  *zap.Logger
	db      *database.Client
	market  Market
	trading Trading
}

func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  cfg.Logger.With(zap.String("component", "server")),
		db:      cfg.DB,
		market:  cfg.Market,
		trading: cfg.Trading,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes(cfg.Stream)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes(stream http.Handler) {
	s.router.Get("/health", s.handleHealth)

	if stream != nil {
		s.router.Handle("/ws/prices", stream)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Route("/stocks/{ticker}", func(r chi.Router) {
			r.Get("/data", s.handleQuote)
			r.Get("/chart", s.handleChart)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/paper", func(r chi.Router) {
				r.Post("/orders", s.handlePlaceOrder)
				r.Get("/portfolio", s.handlePortfolio)
				r.Get("/trades", s.handleTrades)
				r.Post("/reset", s.handleReset)
			})

			r.Get("/alerts", s.handleListAlerts)
			r.Post("/alerts", s.handleCreateAlert)
		})
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
