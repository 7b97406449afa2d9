// Package httpapi — HTTP-сервер только для чтения: health, метрики и JSON API
// по категориям, ценам, рынку и кошелькам.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/market"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
	"serotonyl.ru/blindbox-bot/internal/features/wallet"
)

// Catalog — реестр категорий.
type Catalog interface {
	Get(id string) (*catalog.Category, bool)
	List() []*catalog.Category
}

// Pricing рассчитывает цены.
type Pricing interface {
	Quote(ctx context.Context, groupID, categoryID, itemID string) (pricing.Quote, error)
	BasePrice(categoryID string) int64
}

// Market отдаёт активные лоты.
type Market interface {
	Listings(ctx context.Context, groupID, categoryID string) ([]market.Listing, error)
}

// Wallets читает кошельки.
type Wallets interface {
	Get(ctx context.Context, groupID, userID string) (*wallet.Wallet, error)
}

// Pinger проверяет доступность БД.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps — зависимости API.
type Deps struct {
	DB      Pinger
	Catalog Catalog
	Pricing Pricing
	Market  Market
	Wallets Wallets
}

// Server — HTTP-сервер API.
type Server struct {
	httpServer *http.Server
}

// NewServer создаёт сервер на addr.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
	}
}

// NewRouter собирает маршруты.
func NewRouter(deps Deps) http.Handler {
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger,
	)

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", h.listCategories)
		r.Get("/categories/{id}/price", h.categoryPrice)
		r.Get("/groups/{group}/market", h.groupMarket)
		r.Get("/groups/{group}/wallets/{user}", h.userWallet)
	})
	return r
}

// Start слушает порт до отмены ctx, затем плавно останавливается.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("HTTP API запущен")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("HTTP API остановлен")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			return
		}
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP запрос")
	})
}
