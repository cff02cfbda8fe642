// Package server hosts LocalPaste's HTTP API: it resolves a bind address,
// binds a loopback port with auto-port fallback, drives graceful shutdown,
// and flushes the database on exit.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/internal/config"
	"github.com/pszemraj/localpaste/internal/handler"
	"github.com/pszemraj/localpaste/internal/kv"
	"github.com/pszemraj/localpaste/internal/middleware"
)

const requestTimeout = 30 * time.Second

// Server wraps the HTTP listener LocalPaste's API is served on, plus the
// database it flushes at shutdown.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	db         *kv.DB
	log        zerolog.Logger
}

// New builds the chi router for h's routes under LocalPaste's middleware
// stack (security headers, CORS, body size limit, deprecation headers,
// request id/real IP/panic recovery), resolves a bind address, and binds it —
// falling back to an OS-assigned port on the same interface if the
// configured port is already in use.
func New(cfg *config.Config, h *handler.Handler, db *kv.DB, log zerolog.Logger) (*Server, error) {
	host, port := resolveBindAddr(cfg, log)

	listener, actualPort, err := bindWithFallback(host, port, log)
	if err != nil {
		return nil, fmt.Errorf("bind %s:%d: %w", host, port, err)
	}

	router := h.Routes()
	chain := chimiddleware.RequestID(
		chimiddleware.RealIP(
			chimiddleware.Recoverer(
				middleware.SecurityHeaders()(
					middleware.CORS(cfg, actualPort)(
						middleware.BodySizeLimit(cfg.MaxPasteSize)(router),
					),
				),
			),
		),
	)

	httpServer := &http.Server{
		Handler:      chain,
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{httpServer: httpServer, listener: listener, db: db, log: log}, nil
}

// resolveBindAddr derives the host/port pair to bind: an
// explicit BIND value wins outright, otherwise PORT combines with
// 127.0.0.1. When public access is disabled and the resolved host is
// non-loopback, the host is forced to 127.0.0.1 and a warning is logged.
func resolveBindAddr(cfg *config.Config, log zerolog.Logger) (string, int) {
	host, port := "127.0.0.1", cfg.Port

	if strings.TrimSpace(cfg.Bind) != "" {
		if h, p, err := net.SplitHostPort(cfg.Bind); err == nil {
			host = h
			if parsedPort, perr := strconv.Atoi(p); perr == nil {
				port = parsedPort
			}
		} else {
			log.Warn().Str("bind", cfg.Bind).Err(err).Msg("could not parse BIND as host:port; using PORT default")
		}
	}

	if !cfg.AllowPublicAccess && !isLoopbackAddr(host) {
		log.Warn().Str("requested_host", host).
			Msg("public access disabled; forcing bind host to 127.0.0.1")
		host = "127.0.0.1"
	}

	return host, port
}

func isLoopbackAddr(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// bindWithFallback binds host:port, retrying on an OS-assigned port (":0")
// on the same interface if the configured port is already in use, and
// reports the port actually bound.
func bindWithFallback(host string, port int, log zerolog.Logger) (net.Listener, int, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	l, err := net.Listen("tcp", addr)
	if err == nil {
		return l, listenerPort(l), nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, 0, err
	}

	log.Warn().Str("addr", addr).Msg("configured port in use; falling back to an OS-assigned port")
	fallbackAddr := fmt.Sprintf("%s:0", host)
	l, ferr := net.Listen("tcp", fallbackAddr)
	if ferr != nil {
		return nil, 0, ferr
	}
	actual := listenerPort(l)
	log.Warn().Int("requested_port", port).Int("bound_port", actual).
		Msg("bound fallback port")
	return l, actual, nil
}

func listenerPort(l net.Listener) int {
	if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

// Addr returns the address actually bound, e.g. for the hosting process to
// report to a CLI or GUI that discovered a fallback port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve runs the HTTP service until ctx is canceled (a process signal or an
// in-process shutdown trigger), then stops accepting connections, lets
// in-flight handlers complete, and flushes the database before returning.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutdown signal received; draining in-flight requests")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		_ = s.httpServer.Close()
	}

	if err := s.db.Flush(); err != nil {
		s.log.Error().Err(err).Msg("failed to flush database at shutdown")
		return err
	}
	return nil
}
