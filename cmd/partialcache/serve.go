package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vearutop/partialcache"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve views over HTTP",
		Long: "Serve views on /views/NAME with query parameters as bindings, " +
			"forget fragments with DELETE /fragments/NAME?vary=X, " +
			"flush memory or failover store with POST /invalidate, expose /metrics",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := prometheus.NewRegistry()
			tracker := partialcache.NewPrometheusTracker(registry)

			return withApp(cmd, tracker, func(ctx context.Context, a *app) error {
				tracker.Logger = a.log

				if cmd.Flags().Changed("listen") {
					a.settings.Listen = listen
				}

				if err := a.views.Compile(ctx); err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				go a.evictJob(ctx)

				return a.serve(ctx, newHandler(a, registry))
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address")

	return cmd
}

func (a *app) serve(ctx context.Context, h http.Handler) error {
	srv := &http.Server{
		Addr:              a.settings.Listen,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		a.log.Important(ctx, "serving views", "addr", a.settings.Listen, "views", a.settings.Views)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Important(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// evictJob checks heap usage of memory store until ctx is done.
func (a *app) evictJob(ctx context.Context) {
	if a.memory == nil || a.settings.Store.HeapInUseSoftLimit == 0 || a.settings.Store.EvictInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.settings.Store.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.memory.EvictHeapInUse(ctx)
		}
	}
}

func newHandler(a *app, registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/views/", http.StripPrefix("/views/", http.HandlerFunc(a.handleView)))
	mux.Handle("/fragments/", http.StripPrefix("/fragments/", http.HandlerFunc(a.handleForget)))
	mux.HandleFunc("/invalidate", a.handleInvalidate)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return mux
}

// handleView renders view with query parameters as bindings.
//
// Reserved parameters _bypass and _refresh control fragment cache of the request.
func (a *app) handleView(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	name := strings.Trim(r.URL.Path, "/")
	if name == "" || !a.views.Exists(name) {
		http.NotFound(rw, r)

		return
	}

	ctx := r.Context()
	data := make(map[string]interface{})

	for k, v := range r.URL.Query() {
		switch k {
		case "_bypass":
			ctx = partialcache.WithBypass(ctx)
		case "_refresh":
			ctx = partialcache.WithRefresh(ctx)
		default:
			data[k] = v[0]
		}
	}

	out, err := a.views.Render(ctx, name, data, nil)
	if err != nil {
		a.log.Error(ctx, "failed to render view", "view", name, "error", err)
		http.Error(rw, "failed to render view", http.StatusInternalServerError)

		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")

	if _, err := rw.Write([]byte(out)); err != nil {
		a.log.Error(ctx, "failed to write response", "error", err)
	}
}

func (a *app) handleForget(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	name := strings.Trim(r.URL.Path, "/")
	if name == "" {
		http.NotFound(rw, r)

		return
	}

	if err := a.directive.Forget(r.Context(), name, r.URL.Query().Get("vary")); err != nil {
		a.log.Error(r.Context(), "failed to forget fragment", "view", name, "error", err)
		http.Error(rw, "failed to forget fragment", http.StatusInternalServerError)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (a *app) handleInvalidate(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	err := a.invalidator.Invalidate(r.Context())

	switch {
	case err == nil:
		rw.WriteHeader(http.StatusNoContent)
	case errors.Is(err, partialcache.ErrNothingToInvalidate):
		http.Error(rw, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, partialcache.ErrAlreadyInvalidated):
		http.Error(rw, err.Error(), http.StatusTooManyRequests)
	default:
		a.log.Error(r.Context(), "failed to invalidate", "error", err)
		http.Error(rw, "failed to invalidate", http.StatusInternalServerError)
	}
}
