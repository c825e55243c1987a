// Package web serves the status dashboard: a small authenticated page
// showing the engine's connection state, counters and the active rule
// table.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mailwarden/mailwarden/internal/rules"
)

type Server struct {
	port   string
	bind   string
	server *http.Server
	auth   *AuthManager
	status *rules.Status
	table  []rules.Rule
}

func NewServer(port, bind, username, password string, status *rules.Status, table []rules.Rule) *Server {
	return &Server{
		port:   port,
		bind:   bind,
		auth:   NewAuthManager(username, password),
		status: status,
		table:  table,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	// Protected routes
	mux.Handle("/", s.auth.RequireAuth(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("/status.json", s.auth.RequireAuth(http.HandlerFunc(s.handleStatus)))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.bind, s.port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Web server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web server failed to start", "error", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("Shutting down web server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
