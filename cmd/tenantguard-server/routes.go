package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/tenantguard"
	"github.com/MrEthical07/tenantguard/middleware"
	"github.com/MrEthical07/tenantguard/permission"
)

// Operation names guarded by the engine's operation table.
const (
	opRegister  = "auth.register"
	opLogin     = "auth.login"
	opRefresh   = "auth.refresh"
	opLogout    = "auth.logout"
	opMFASetup  = "auth.mfa.setup"
	opMFAVerify = "auth.mfa.verify"
	opProfile   = "profile.read"
)

var errBadRequest = errors.New("invalid request body")

func operations() *permission.Table {
	table := permission.NewTable()
	for op, rule := range map[string]permission.Rule{
		opRegister:  {Public: true},
		opLogin:     {Public: true},
		opRefresh:   {Public: true},
		opLogout:    {},
		opMFASetup:  {},
		opMFAVerify: {},
		opProfile:   {},
	} {
		if err := table.Register(op, rule); err != nil {
			log.Fatalf("register operation %s: %v", op, err)
		}
	}
	return table
}

func newRouter(engine *tenantguard.Engine, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientInfo)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	h := &handlers{engine: engine}
	r.Group(func(r chi.Router) {
		r.Use(middleware.TenantResolver(engine))
		h.mount(r)
	})
	r.Route("/t/{tenantSlug}", func(r chi.Router) {
		r.Use(middleware.TenantResolver(engine))
		h.mount(r)
	})
	return r
}

type handlers struct {
	engine *tenantguard.Engine
}

func (h *handlers) mount(r chi.Router) {
	r.With(middleware.RequireOperation(h.engine, opRegister)).Post("/auth/register", h.register)
	r.With(middleware.RequireOperation(h.engine, opLogin)).Post("/auth/login", h.login)
	r.With(middleware.RequireOperation(h.engine, opRefresh)).Post("/auth/refresh", h.refresh)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(h.engine))
		r.With(middleware.RequireOperation(h.engine, opLogout)).Post("/auth/logout", h.logout)
		r.With(middleware.RequireOperation(h.engine, opMFASetup)).Post("/auth/mfa/setup", h.mfaSetup)
		r.With(middleware.RequireOperation(h.engine, opMFAVerify)).Post("/auth/mfa/verify", h.mfaVerify)
		r.With(middleware.RequireOperation(h.engine, opProfile)).Get("/me", h.me)
	})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req tenantguard.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TenantSlug == "" {
		req.TenantSlug = resolvedSlug(r)
	}
	res, err := h.engine.Register(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req tenantguard.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TenantSlug == "" {
		req.TenantSlug = resolvedSlug(r)
	}
	res, err := h.engine.Login(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	if err := h.engine.Logout(r.Context(), user.ID, req.RefreshToken); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *handlers) mfaSetup(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	res, err := h.engine.SetupMFA(r.Context(), user.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type mfaVerifyRequest struct {
	Token string `json:"token"`
}

func (h *handlers) mfaVerify(w http.ResponseWriter, r *http.Request) {
	var req mfaVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	if err := h.engine.VerifyMFA(r.Context(), user.ID, req.Token); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "MFA enabled successfully"})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, tenantguard.NewPublicUser(user))
}

func resolvedSlug(r *http.Request) string {
	if t, ok := middleware.TenantFromContext(r.Context()); ok {
		return t.Slug
	}
	return ""
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errBadRequest.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
