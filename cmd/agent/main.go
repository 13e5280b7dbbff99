package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/piyushyadav-melb/expert-realtime/configs"
	"github.com/piyushyadav-melb/expert-realtime/internal/chat"
	"github.com/piyushyadav-melb/expert-realtime/internal/identity"
	"github.com/piyushyadav-melb/expert-realtime/internal/notification"
	"github.com/piyushyadav-melb/expert-realtime/internal/popup"
	"github.com/piyushyadav-melb/expert-realtime/internal/shared/httpx"
	"github.com/piyushyadav-melb/expert-realtime/internal/socket"
	"github.com/piyushyadav-melb/expert-realtime/internal/unread"
)

func initOTEL(ctx context.Context, cfg *configs.Config) func(context.Context) error {
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTELEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		log.Fatalf("otel exporter: %v", err)
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	ratio := 1.0
	if s := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); s != "" {
		if f, e := strconv.ParseFloat(s, 64); e == nil && f >= 0 && f <= 1 {
			ratio = f
		}
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown
}

func newLogger(env string) *zap.Logger {
	if env == "local" {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

func main() {
	cfg := configs.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := initOTEL(ctx, cfg)
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(c)
	}()

	logger := newLogger(cfg.Environment)
	defer func() { _ = logger.Sync() }()

	// Credential
	var src identity.TokenSource
	if cfg.TokenFile != "" {
		src = identity.FileToken(cfg.TokenFile)
	} else {
		src = identity.StaticToken(cfg.Token)
	}
	ids := identity.NewProvider(src)

	// Shared socket
	manager := socket.NewManager(socket.Dialer(cfg.SocketURL, ids.Token), logger)
	bus := manager.Acquire(ctx)
	defer manager.DisconnectGlobal()

	// Notifications + popups
	store := notification.NewStore()
	queue := popup.NewQueue(func(id string) { store.MarkRead(id) }, logger)
	defer queue.Stop()
	notifSvc := notification.NewService(store, ids, queue, logger)
	if err := notifSvc.Bind(bus); err != nil {
		logger.Fatal("bind notifications", zap.Error(err))
	}
	defer notifSvc.Teardown()

	// Chat
	client := chat.NewClient(cfg.APIBaseURL, ids.Token)
	dir := chat.NewDirectory(logger)
	dir.Bind(bus)
	defer dir.Teardown()
	if err := dir.Load(ctx, client); err != nil {
		logger.Warn("customer directory load failed, starting empty", zap.Error(err))
	}
	session := chat.NewSession(client, bus, ids, logger)
	chatSvc := chat.NewService(client, dir, session, ids, logger)
	defer chatSvc.Leave()

	// Unread counters
	agg := unread.New(client, dir.IDs, logger)
	agg.Bind(bus)
	defer agg.Teardown()

	// HTTP
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, map[string]any{"status": "ok", "socketConnected": bus.Connected()}, http.StatusOK)
	})

	nh := notification.NewHandler(store)
	mux.Handle("GET /notifications", httpx.Wrap(nh.List))
	mux.Handle("GET /notifications/unread-count", httpx.Wrap(nh.UnreadCount))
	mux.Handle("POST /notifications/{id}/read", httpx.Wrap(nh.MarkRead))
	mux.Handle("POST /notifications/read-all", httpx.Wrap(nh.MarkAllRead))
	mux.Handle("PATCH /notifications/{id}", httpx.Wrap(nh.Update))
	mux.Handle("DELETE /notifications/{id}", httpx.Wrap(nh.Remove))
	mux.Handle("DELETE /notifications", httpx.Wrap(nh.ClearAll))

	ph := popup.NewHandler(queue)
	mux.Handle("GET /popups", httpx.Wrap(ph.Active))
	mux.Handle("POST /popups/{id}/dismiss", httpx.Wrap(ph.Dismiss))
	mux.Handle("POST /popups/{id}/activate", httpx.Wrap(ph.Activate))

	uh := unread.NewHandler(agg)
	mux.Handle("GET /unread-counts", httpx.Wrap(uh.Snapshot))

	ch := chat.NewHandler(chatSvc)
	mux.Handle("GET /chat/customers", httpx.Wrap(ch.Customers))
	mux.Handle("POST /chat/select", httpx.Wrap(ch.Select))
	mux.Handle("GET /chat/messages", httpx.Wrap(ch.Messages))
	mux.Handle("POST /chat/messages", httpx.Wrap(ch.Send))
	mux.Handle("POST /chat/typing", httpx.Wrap(ch.Typing))
	mux.Handle("POST /chat/leave", httpx.Wrap(ch.Leave))
	mux.Handle("DELETE /chat/customers/{customer_id}", httpx.Wrap(ch.Delete))

	srv := &http.Server{
		Addr:              cfg.AppPort,
		Handler:           otelhttp.NewHandler(mux, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		logger.Info("agent listening", zap.String("addr", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}
