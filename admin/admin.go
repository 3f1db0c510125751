// Package admin implements the thin JSON admin API (§3 DOMAIN additions,
// §6): POST /config/reload, GET /config/status, GET /health. It is a narrow
// external collaborator -- it only ever reaches the data plane through
// configmgr.Manager and the proxy supervisor's control-message channel,
// mirroring the teacher's own admin.go in spirit (a small dedicated HTTP
// surface next to the data plane) while using chi for route registration.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jerryr7/quantum-safe-proxy/config"
	"github.com/jerryr7/quantum-safe-proxy/configmgr"
	"go.uber.org/zap"
)

// Config mirrors caddy.AdminConfig: where the admin server listens and
// which origins it trusts. It is consumed only by this package.
type Config struct {
	ListenAddr     string
	EnforceOrigin  bool
	AllowedOrigins []string
}

// Server is the admin HTTP server. It never mutates the data plane
// directly: every write goes through Manager.Reload.
type Server struct {
	cfg     Config
	manager *configmgr.Manager
	log     *zap.Logger
	http    *http.Server
}

// New builds a Server wired to manager. Reload requests re-read the
// manager's last-known config file path unless the request body names a
// different one.
func New(cfg Config, manager *configmgr.Manager, log *zap.Logger) *Server {
	s := &Server{cfg: cfg, manager: manager, log: log}

	r := chi.NewRouter()
	if cfg.EnforceOrigin {
		r.Use(s.originCheck)
	}
	r.Post("/config/reload", s.handleReload)
	r.Get("/config/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts the admin HTTP server; it blocks until the server
// is shut down or fails to bind.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Close shuts the admin server down immediately.
func (s *Server) Close() error {
	return s.http.Close()
}

type reloadRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var body reloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	path := body.Path
	if path == "" {
		if cf := s.manager.Get().ConfigFile; cf != nil {
			path = *cf
		}
	}
	if path == "" {
		writeJSONError(w, http.StatusBadRequest, "no config file path given and none on record")
		return
	}

	if err := s.manager.Reload(path); err != nil {
		if s.log != nil {
			s.log.Warn("admin reload rejected", zap.Error(err))
		}
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

type statusField struct {
	Value  string `json:"value"`
	Origin string `json:"origin"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pc := s.manager.Get()
	fields := make(map[string]statusField, len(config.AllFields))
	for _, f := range config.AllFields {
		origin, ok := pc.Origins[f]
		originStr := string(origin)
		if !ok {
			originStr = string(config.OriginDefault)
		}
		fields[f] = statusField{Value: fieldValue(pc, f), Origin: originStr}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

func fieldValue(pc *config.ProxyConfig, field string) string {
	switch field {
	case config.FieldListenAddr:
		return pc.ListenAddr()
	case config.FieldTargetAddr:
		return pc.TargetAddr()
	case config.FieldLogLevel:
		return pc.LogLevel()
	case config.FieldClientCertMode:
		return string(pc.ClientCertMode())
	case config.FieldCert:
		return pc.Cert()
	case config.FieldKey:
		return pc.Key()
	case config.FieldFallbackCert:
		return pc.FallbackCert()
	case config.FieldFallbackKey:
		return pc.FallbackKey()
	case config.FieldClientCACert:
		return pc.ClientCACert()
	case config.FieldOpenSSLDir:
		return pc.OpenSSLDir()
	default:
		return ""
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// originCheck rejects requests whose Origin header is not in AllowedOrigins,
// when EnforceOrigin is set. RBAC/authentication is explicitly out of
// scope (§1 Non-goals); this is the one access control the admin API
// performs itself.
func (s *Server) originCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		for _, allowed := range s.cfg.AllowedOrigins {
			if origin == allowed {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeJSONError(w, http.StatusForbidden, "origin not allowed")
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
