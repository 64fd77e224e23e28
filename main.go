package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appAuth "github.com/JoshDFN/ic-commerce/internal/application/auth"
	appCart "github.com/JoshDFN/ic-commerce/internal/application/cart"
	appCheckout "github.com/JoshDFN/ic-commerce/internal/application/checkout"
	appSession "github.com/JoshDFN/ic-commerce/internal/application/session"
	domainCart "github.com/JoshDFN/ic-commerce/internal/domain/cart"
	domainCheckout "github.com/JoshDFN/ic-commerce/internal/domain/checkout"
	domainGateway "github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	domainOutbox "github.com/JoshDFN/ic-commerce/internal/domain/outbox"
	domainPayment "github.com/JoshDFN/ic-commerce/internal/domain/payment"
	domainSession "github.com/JoshDFN/ic-commerce/internal/domain/session"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/config"
	gatewayclient "github.com/JoshDFN/ic-commerce/internal/infrastructure/gateway"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/id"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/memory"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/observability/telemetry"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/observability/zaplogger"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/outbox"
	sessionstore "github.com/JoshDFN/ic-commerce/internal/infrastructure/session"
	stripeinfra "github.com/JoshDFN/ic-commerce/internal/infrastructure/stripe"
	"github.com/JoshDFN/ic-commerce/internal/observability"
	"github.com/JoshDFN/ic-commerce/internal/pkg/logging"
	httppresentation "github.com/JoshDFN/ic-commerce/internal/presentation/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("STOREFRONT_CONFIG"))
	if err != nil {
		panic(err)
	}

	env := getenvDefault("ENV", "dev")
	baseLogger := logging.MustNewLogger(cfg.ServiceName, env, cfg.Logging.Level, cfg.Logging.File)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	tel := telemetry.Setup(cfg.ServiceName, zaplogger.Wrap(baseLogger))

	// In-memory event bus carries cart and checkout notifications.
	bus := outbox.NewBus(tel.Logger())
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	gw, processor, webhooks := buildGateway(cfg, tel)

	store := buildSessionStore(cfg)
	idGen := id.NewGenerator()
	sessions := appSession.NewService(store, idGen, tel.Logger())
	resolver := appAuth.NewAnonymousResolver()

	carts := appCart.NewService(gw, sessions, resolver, bus, tel)
	orchestrator := appCheckout.NewOrchestrator(
		gw, processor, carts, sessions, resolver, bus, idGen,
		appCheckout.ShippingPolicy{
			Fee:           cfg.Shipping.Fee,
			FreeThreshold: cfg.Shipping.FreeThreshold,
		},
		tel,
	)

	subscribeEventLogs(bus, tel.Logger())

	handler := httppresentation.NewHandler(carts, orchestrator, sessions, webhooks, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("mode", string(cfg.Mode)),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// buildGateway selects the ledger backing for the configured mode. Demo mode
// runs the in-process ledger with a seeded catalog and the approving fake
// processor; remote mode proxies to a real backend and confirms with Stripe.
func buildGateway(cfg *config.Config, tel observability.Observability) (domainGateway.Client, domainPayment.Processor, *stripeinfra.WebhookService) {
	if cfg.Mode == config.ModeRemote {
		gw := gatewayclient.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, tel.Logger())
		stripeinfra.Configure(cfg.Stripe.SecretKey)
		processor := stripeinfra.NewProcessor(cfg.Stripe.PaymentMethod, tel.Logger())
		return gw, processor, nil
	}

	publishableKey := cfg.Stripe.PublishableKey
	if publishableKey == "" {
		publishableKey = "pk_test_demo"
	}
	ledger := memory.NewLedger(demoCatalog(), publishableKey)

	var webhooks *stripeinfra.WebhookService
	if cfg.Stripe.WebhookSecret != "" {
		webhooks = stripeinfra.NewWebhookService(cfg.Stripe.WebhookSecret, ledger, tel.Logger())
	}
	return ledger, stripeinfra.NewFakeProcessor(), webhooks
}

func buildSessionStore(cfg *config.Config) domainSession.Store {
	if cfg.Session.Path != "" {
		return sessionstore.NewFileStore(cfg.Session.Path)
	}
	return sessionstore.NewMemoryStore()
}

// subscribeEventLogs attaches observing consumers so demo deployments show
// the event flow in their logs.
func subscribeEventLogs(bus *outbox.Bus, logger observability.Logger) {
	bus.Subscribe(domainCart.CartReplacedEvent{}.EventName(), func(_ context.Context, e domainOutbox.Event) error {
		if ev, ok := e.(domainCart.CartReplacedEvent); ok && ev.Cart != nil {
			logger.Debug("cart_projection_replaced",
				observability.F("items", ev.Cart.ItemCount()),
				observability.F("total", ev.Cart.Total),
			)
		}
		return nil
	})
	bus.Subscribe(domainCheckout.CheckoutCompletedEvent{}.EventName(), func(_ context.Context, e domainOutbox.Event) error {
		if ev, ok := e.(domainCheckout.CheckoutCompletedEvent); ok {
			logger.Info("order_confirmed",
				observability.F("order_number", ev.OrderNumber),
				observability.F("charged_total", ev.ChargedTotal),
			)
		}
		return nil
	})
}

func demoCatalog() []memory.Product {
	return []memory.Product{
		{VariantID: "var-espresso-cup", Name: "Espresso Cup Set", Slug: "espresso-cup-set", Price: 2400, Currency: "USD", InStock: 120},
		{VariantID: "var-pour-over", Name: "Pour Over Kettle", Slug: "pour-over-kettle", Price: 5600, Currency: "USD", InStock: 45},
		{VariantID: "var-grinder", Name: "Burr Grinder", Slug: "burr-grinder", Price: 8900, Currency: "USD", InStock: 30},
		{VariantID: "var-beans-1kg", Name: "House Blend Beans 1kg", Slug: "house-blend-1kg", Price: 1800, Currency: "USD", InStock: 300},
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
