package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-basket-challenge/internal/api"
	"github.com/xenking/shop-basket-challenge/internal/domain/basket"
	"github.com/xenking/shop-basket-challenge/internal/domain/checkout"
	"github.com/xenking/shop-basket-challenge/internal/domain/deal"
	"github.com/xenking/shop-basket-challenge/internal/domain/product"
	"github.com/xenking/shop-basket-challenge/internal/seed"
	"github.com/xenking/shop-basket-challenge/pkg/health"
	"github.com/xenking/shop-basket-challenge/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Inventory seeded once at startup; IDs are assigned in file order.
	inventory := product.NewInventory()
	records, err := seed.Load(cfg.InventoryFile)
	if err != nil {
		return errors.Wrap(err, "load inventory seed")
	}
	for _, rec := range records {
		p, err := inventory.Create(ctx, product.Product{
			Name:        rec.Name,
			Price:       rec.Price,
			Description: rec.Description,
			Available:   rec.Quantity,
		})
		if err != nil {
			return errors.Wrapf(err, "seed product %q", rec.Name)
		}
		lg.Debug("Seeded product", zap.Int64("id", p.ID), zap.String("name", p.Name))
	}
	lg.Info("Inventory seeded", zap.Int("products", len(records)))

	// Domain components.
	deals := deal.NewCatalog(inventory)
	baskets := basket.NewStore(inventory)
	engine := checkout.NewEngine(inventory, deals, baskets)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("inventory", time.Second, health.InventoryCheck(inventory))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP routes: health endpoints + API routes on one mux.
	h := api.NewHandler(inventory, deals, baskets, engine)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("basket-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
