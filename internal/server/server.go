// Package server exposes renames and the live event stream over HTTP.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Run serves handler on cfg.Addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, logger *slog.Logger, cfg Config, handler http.Handler) error {
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, logger, cfg, ln, handler)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, logger *slog.Logger, cfg Config, ln net.Listener, handler http.Handler) error {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// observe gives every request an id, logs it once it is done and turns a
// panic into a 500 envelope.
func observe(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		reqLog := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
		rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if v := recover(); v != nil {
				reqLog.Error("panic serving request", "panic", v)
				if !rw.wrote {
					writeError(rw, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error",
						map[string]interface{}{"request_id": id})
				} else {
					rw.status = http.StatusInternalServerError
				}
			}
			level := slog.LevelInfo
			if rw.status >= 500 {
				level = slog.LevelError
			}
			reqLog.Log(r.Context(), level, "http request", "status", rw.status, "duration_ms", time.Since(start).Milliseconds())
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseRecorder remembers the status sent to the client.
type responseRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *responseRecorder) WriteHeader(status int) {
	w.status, w.wrote = status, true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Hijack hands the connection to the websocket upgrader on /api/events.
func (w *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("connection cannot be hijacked")
	}
	w.status, w.wrote = http.StatusSwitchingProtocols, true
	return hj.Hijack()
}
