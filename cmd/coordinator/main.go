package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"quickask/internal/activation"
	"quickask/internal/app"
	"quickask/internal/bridge"
	"quickask/internal/httputil"
	"quickask/internal/message"
	"quickask/internal/queue"
)

const (
	maxRequestBytes = 64 << 10
	shutdownGrace   = 10 * time.Second
)

// msgBadRequest is returned when the ask body cannot be decoded.
const msgBadRequest = "Invalid request"

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, deps); err != nil {
		deps.Log.Error("coordinator stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, deps app.Deps) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Log.Info("coordinator listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Queue != nil {
		g.Go(func() error {
			return deps.Queue.Worker(ctx, queue.TaskTypeActivate, activationTaskHandler(deps))
		})
	}

	return g.Wait()
}

func newRouter(deps app.Deps) chi.Router {
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/ask", askHandler(deps))
	r.Method(http.MethodPost, "/api/activate",
		httputil.WithTimeout(activationTimeout(deps), activateHandler(deps)))
	r.Handle("/ws/bridge", deps.Bridge)
	r.Get("/healthz", httputil.HealthHandler(deps))

	return r
}

// activationTimeout covers the probe, the inject, and the toggle.
func activationTimeout(deps app.Deps) time.Duration {
	d := deps.Config.BridgeCallTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return 3*d + time.Second
}

// askHandler always answers with an AnswerResponse body so the page agent
// has a single reply shape to render.
func askHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req message.QuestionRequest
		body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			deps.Log.Warn("invalid ask payload", "err", err)
			httputil.WriteJSON(w, http.StatusBadRequest, message.Failed(msgBadRequest))
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			deps.Log.Warn("ask payload rejected", "err", err)
			httputil.WriteJSON(w, http.StatusBadRequest, message.Failed(msgBadRequest))
			return
		}

		resp := deps.Coordinator.Handle(r.Context(), req)
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func activateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev message.ActivationEvent
		body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := json.NewDecoder(body).Decode(&ev); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&ev); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		res, err := deps.Activator.Activate(r.Context(), ev)
		if err != nil {
			httputil.Fail(deps.Log, w, "activation failed", err, activationStatus(err))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func activationStatus(err error) int {
	switch {
	case errors.Is(err, activation.ErrNoActiveTab):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrNotConnected), errors.Is(err, bridge.ErrDisconnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// activationTaskHandler runs queued activations through the same path as
// POST /api/activate. Its error is reported to a waiting publisher.
func activationTaskHandler(deps app.Deps) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		ev, err := queue.DecodeActivation(task)
		if err != nil {
			return err
		}
		if err := httputil.Validator.Struct(&ev); err != nil {
			return fmt.Errorf("invalid activation event: %w", err)
		}
		res, err := deps.Activator.Activate(ctx, ev)
		if err != nil {
			return err
		}
		deps.Log.Info("queued activation handled", "task_id", task.ID, "tab_id", res.TabID, "injected", res.Injected, "ignored", res.Ignored)
		return nil
	}
}
