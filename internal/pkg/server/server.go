package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ha-desktop/agent/internal/pkg/agent"
	"github.com/ha-desktop/agent/internal/pkg/handler"
)

// New assembles the local control API. It is the headless stand-in for the
// desktop shell: everything the tray/settings UI would invoke is a route.
func New(a *agent.Agent) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /settings", handler.GetSettings(a))
	mux.HandleFunc("PUT /settings", handler.SaveSettings(a))
	mux.HandleFunc("POST /register", handler.RegisterDevice(a))
	mux.HandleFunc("GET /sensors", handler.SensorList(a))
	mux.HandleFunc("POST /sensors/{id}", handler.ToggleSensor(a))
	mux.HandleFunc("POST /update", handler.UpdateNow(a))
	mux.HandleFunc("GET /public-ip", handler.PublicIP())
	return LoggingMiddleware(mux)
}

// Run serves the control API until ctx is cancelled.
func Run(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Handler:      h,
		Addr:         addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func LoggingMiddleware(next http.Handler) http.Handler {
	logger := zap.L()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.Method + " " + r.RequestURI)
		next.ServeHTTP(w, r)
	})
}
