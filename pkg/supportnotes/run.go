package supportnotes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(a.logRequests, a.authenticate)

	api := router.PathPrefix("/api").Subrouter()

	// Health check
	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	// Auth routes
	api.HandleFunc("/auth/signin", a.handleSignIn).Methods("POST")
	signedIn := api.PathPrefix("/auth").Subrouter()
	signedIn.Use(requireSession)
	signedIn.HandleFunc("/signout", a.handleSignOut).Methods("POST")
	signedIn.HandleFunc("/me", a.handleGetCurrentUser).Methods("GET")
	signedIn.HandleFunc("/refresh", a.handleRefreshToken).Methods("POST")

	api.HandleFunc("/collections", a.handleListCollections).Methods("GET")

	// Note and reply routes
	notes := api.PathPrefix("/collections/{collection}/notes").Subrouter()
	if a.config.AuthRequired {
		notes.Use(requireSession)
	}
	notes.HandleFunc("", a.handleListNotes).Methods("GET")
	notes.HandleFunc("", a.handleCreateNote).Methods("POST")
	notes.HandleFunc("/{id}", a.handleUpdateNote).Methods("PUT")
	notes.HandleFunc("/{id}", a.handleDeleteNote).Methods("DELETE")
	notes.HandleFunc("/{id}/replies", a.handleListReplies).Methods("GET")
	notes.HandleFunc("/{id}/replies", a.handleAddReply).Methods("POST")
	notes.HandleFunc("/{id}/replies/{replyId}", a.handleDeleteReply).Methods("DELETE")

	// Root health check
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}

// Run serves the API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info().
		Str("addr", addr).
		Str("backend", a.config.Backend).
		Bool("read_only", a.IsReadOnly()).
		Msg("Starting supportnotes server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
