// Command authcored runs a reference HTTP server around the auth engine:
// credential endpoints, guarded resource routes, an authenticated websocket
// echo endpoint, and Prometheus metrics.
//
// Configuration comes from the environment (see ConfigFromEnv). When
// REDIS_ADDR is unset an embedded in-process store is started instead, so
// the server can run standalone during development.
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
	"sync"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	authcore "github.com/docuflow/authcore"
	"github.com/docuflow/authcore/metrics"
	"github.com/docuflow/authcore/middleware"
	"github.com/docuflow/authcore/realtime"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := authcore.ConfigFromEnv()
	if err != nil {
		return err
	}

	addr := cfg.Redis.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return err
		}
		defer mr.Close()
		addr = mr.Addr()
		log.Warn("REDIS_ADDR not set, using embedded in-process store", "addr", addr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(newMemoryUsers()).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout)).
		WithLogger(log).
		WithMetrics(metrics.New(registry)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           routes(engine, log, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func listenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func routes(engine *authcore.Engine, log *slog.Logger, registry *prometheus.Registry) http.Handler {
	limiter := engine.RateLimiter()
	classes := engine.RateClasses()
	authLimited := middleware.RateLimit(limiter, classes.Auth, log, engine.NoteRateLimited)
	apiLimited := middleware.RateLimit(limiter, classes.API, log, engine.NoteRateLimited)
	guarded := middleware.Guard(engine)

	api := &apiHandler{engine: engine, log: log}
	socket := realtime.NewAuthenticator(engine, log)

	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", authLimited(http.HandlerFunc(api.register)))
	mux.Handle("POST /auth/login", authLimited(http.HandlerFunc(api.login)))
	mux.Handle("POST /auth/refresh", apiLimited(http.HandlerFunc(api.refresh)))
	mux.Handle("POST /auth/logout", apiLimited(http.HandlerFunc(api.logout)))
	mux.Handle("POST /auth/logout-all", apiLimited(http.HandlerFunc(api.logoutAll)))
	mux.Handle("GET /auth/sessions", apiLimited(guarded(http.HandlerFunc(api.sessions))))
	mux.Handle("GET /me", apiLimited(guarded(http.HandlerFunc(api.me))))
	mux.Handle("GET /ws", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echoSocket(socket, w, r)
	}))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

type apiHandler struct {
	engine *authcore.Engine
	log    *slog.Logger
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	WorkspaceID string `json:"workspace_id"`
}

type tokenRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (h *apiHandler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.engine.Register(r.Context(), req.Email, req.Password, req.WorkspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id": user.UserID,
		"email":   user.Email,
	})
}

func (h *apiHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.engine.Login(r.Context(), req.Email, req.Password, authcore.DeviceInfoFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.Logout(r.Context(), req.AccessToken, req.RefreshToken); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) logoutAll(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.LogoutAll(r.Context(), req.RefreshToken); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, authcore.ErrUnauthorized)
		return
	}

	records, err := h.engine.Sessions(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *apiHandler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, authcore.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":      id.UserID,
		"email":        id.Email,
		"workspace_id": id.WorkspaceID,
	})
}

func (h *apiHandler) writeError(w http.ResponseWriter, err error) {
	var policyErr *authcore.PolicyError

	switch {
	case errors.As(err, &policyErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "password policy violation",
			"reasons": policyErr.Reasons,
		})
	case errors.Is(err, authcore.ErrAccountExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "account already exists"})
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, authcore.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	default:
		h.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// echoSocket authenticates the handshake and echoes messages back until the
// client disconnects.
func echoSocket(auth *realtime.Authenticator, w http.ResponseWriter, r *http.Request) {
	conn, _, err := auth.Upgrade(w, r)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// memoryUsers is the built-in account store for the reference server.
// Production deployments implement authcore.UserProvider over their own
// database instead.
type memoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]authcore.UserRecord
	nextID  int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byEmail: map[string]authcore.UserRecord{}}
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (authcore.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.byEmail[email]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUsers) CreateUser(_ context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[input.Email]; ok {
		return authcore.UserRecord{}, authcore.ErrAccountExists
	}
	m.nextID++
	user := authcore.UserRecord{
		UserID:       fmt.Sprintf("u-%d", m.nextID),
		Email:        input.Email,
		WorkspaceID:  input.WorkspaceID,
		PasswordHash: input.PasswordHash,
	}
	m.byEmail[input.Email] = user
	return user, nil
}
