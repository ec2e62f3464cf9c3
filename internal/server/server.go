package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bucketview/bucketview/internal/access"
	"github.com/bucketview/bucketview/internal/auth"
	"github.com/bucketview/bucketview/internal/config"
	"github.com/bucketview/bucketview/internal/crypto"
	"github.com/bucketview/bucketview/internal/db"
	"github.com/bucketview/bucketview/internal/metrics"
	"github.com/bucketview/bucketview/internal/middleware"
	"github.com/bucketview/bucketview/internal/object"
	"github.com/bucketview/bucketview/internal/objstore"
)

// Server is the BucketView management server.
type Server struct {
	config      *config.Config
	httpServer  *http.Server
	store       *db.Store
	authManager auth.Manager
	resolver    access.Resolver
	objects     object.Manager
	codec       *crypto.Codec
	metrics     *metrics.Registry
	limiter     *auth.LoginRateLimiter
}

// New creates a BucketView server.
func New(cfg *config.Config) (*Server, error) {
	store, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: downloads stream object bodies of unbounded size
		IdleTimeout: 60 * time.Second,
	}

	server := &Server{
		config:      cfg,
		httpServer:  httpServer,
		store:       store,
		authManager: auth.NewManager(store, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
		resolver:    access.NewResolver(store),
		objects:     object.NewManager(objstore.NewRemoteClient),
		codec:       crypto.NewCodec(cfg.Auth.EncryptionKey),
		metrics:     metrics.NewRegistry(),
		limiter: auth.NewLoginRateLimiter(cfg.Auth.LoginMaxAttempts,
			time.Duration(cfg.Auth.LoginWindowSeconds)*time.Second),
	}

	if err := server.bootstrapAdmin(); err != nil {
		store.Close()
		return nil, err
	}

	server.httpServer.Handler = server.buildHandler()

	return server, nil
}

// bootstrapAdmin seeds the configured superadmin on a fresh database.
func (s *Server) bootstrapAdmin() error {
	if s.config.Auth.AdminEmail == "" || s.config.Auth.AdminPassword == "" {
		return nil
	}

	count, err := s.store.CountUsers()
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(s.config.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	user := &db.User{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        s.config.Auth.AdminEmail,
		PasswordHash: hash,
		Status:       db.UserStatusActive,
		UserType:     db.UserTypeSuperadmin,
	}
	if err := s.store.CreateUser(user); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	logrus.WithField("email", user.Email).Info("Created bootstrap superadmin")
	return nil
}

func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()

	router.Use(middleware.Logging())
	if s.config.Metrics.Enable {
		router.Use(s.metrics.Middleware())
		router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods("GET")
	}

	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	// Login and logout run outside the auth middleware: login has no
	// token yet and logout revokes whatever token it is handed
	router.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST")
	router.HandleFunc("/api/auth/logout", s.handleLogout).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(s.authManager))

	api.HandleFunc("/auth/check", s.handleAuthCheck).Methods("GET")

	// Accounts and buckets
	api.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}/rotate", s.handleRotateCredentials).Methods("POST")
	api.HandleFunc("/accounts/{id}/buckets", s.handleListBuckets).Methods("GET")
	api.HandleFunc("/accounts/{id}/buckets", s.handleCreateBucket).Methods("POST")
	api.HandleFunc("/buckets/{id}", s.handleDeleteBucket).Methods("DELETE")

	// Roles and grants
	api.HandleFunc("/roles", s.handleCreateRole).Methods("POST")
	api.HandleFunc("/roles", s.handleListRoles).Methods("GET")
	api.HandleFunc("/roles/{roleId}/buckets/{bucketId}", s.handleAssignBucket).Methods("POST")
	api.HandleFunc("/users/{userId}/roles/{roleId}", s.handleAssignRole).Methods("POST")
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")

	// Virtual filesystem over a resolved bucket
	api.HandleFunc("/bucket/{id}/listByFolder", s.handleListByFolder).Methods("GET")
	api.HandleFunc("/bucket/{id}/search-files", s.handleSearchFiles).Methods("GET")
	api.HandleFunc("/bucket/{id}/rename", s.handleRename).Methods("PATCH")
	api.HandleFunc("/bucket/{id}/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/bucket/{id}/download", s.handleDownload).Methods("GET")
	api.HandleFunc("/bucket/{id}", s.handleDeleteFiles).Methods("DELETE")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	return handlers.RecoveryHandler()(cors(router))
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address":  s.config.Listen,
		"data_dir": s.config.DataDir,
	}).Info("Starting BucketView server")

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpServer.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown HTTP server")
	}

	if err := s.store.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close store")
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
