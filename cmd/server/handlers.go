package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"shopee-deal-bot/internal/ai"
	"shopee-deal-bot/internal/automation"
	"shopee-deal-bot/internal/gateway"
	"shopee-deal-bot/internal/logring"
	"shopee-deal-bot/internal/models"
	"shopee-deal-bot/internal/store"
	"shopee-deal-bot/internal/validator"
)

// Server wires the core components behind the dashboard's JSON API. It also
// serves as the automation engine's Sender and ConfigSource, so config edits
// and gateway rebuilds take effect on the next automated step.
type Server struct {
	ai       *ai.Client
	store    store.Store
	engine   *automation.Engine
	validate *validator.Validator
	logs     *logring.Handler
	logger   *slog.Logger

	defaultInterval int

	mu     sync.RWMutex
	affCfg *models.AffiliateConfig
	gw     *gateway.Client
}

func NewServer(aiClient *ai.Client, st store.Store, v *validator.Validator, logs *logring.Handler, logger *slog.Logger, defaultInterval int) *Server {
	return &Server{
		ai:              aiClient,
		store:           st,
		validate:        v,
		logs:            logs,
		logger:          logger,
		defaultInterval: defaultInterval,
	}
}

// SetAffiliateConfig installs the active config and rebuilds the gateway
// client speaking its dialect.
func (s *Server) SetAffiliateConfig(cfg *models.AffiliateConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affCfg = cfg
	if cfg != nil {
		s.gw = gateway.New(*cfg)
	} else {
		s.gw = nil
	}
}

// Config implements automation.ConfigSource.
func (s *Server) Config() *models.AffiliateConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.affCfg
}

// Send implements automation.Sender against the current gateway client.
func (s *Server) Send(ctx context.Context, product *models.Product, deal *models.DealContent, destination string) (gateway.SendResult, error) {
	gw := s.currentGateway()
	if gw == nil {
		return gateway.SendResult{}, fmt.Errorf("%w: no gateway configured", models.ErrValidation)
	}
	return gw.Send(ctx, product, deal, destination)
}

func (s *Server) currentGateway() *gateway.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gw
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/discover", s.handleDiscover)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/copy", s.handleCopy)
	mux.HandleFunc("POST /api/share", s.handleShare)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("POST /api/resolve-invite", s.handleResolveInvite)
	mux.HandleFunc("GET /api/automation", s.handleGetAutomation)
	mux.HandleFunc("POST /api/automation", s.handleSetAutomation)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	category := s.engine.CurrentCategory()
	s.logger.Info("discovery requested", "category", category)

	products, err := s.ai.DiscoverTrending(r.Context(), category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// The rotation moves only once the run succeeds.
	s.engine.AdvanceCategory()
	s.engine.SetBatch(products)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"products": products,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url" validate:"required,url"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.validate.ValidateStruct(req); err != nil {
		s.writeError(w, err)
		return
	}

	product, err := s.ai.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deal, err := s.ai.GenerateCopy(r.Context(), product)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"product": product,
		"deal":    deal,
	})
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product models.Product `json:"product"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.validate.ValidateStruct(req.Product); err != nil {
		s.writeError(w, err)
		return
	}

	deal, err := s.ai.GenerateCopy(r.Context(), &req.Product)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deal)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product models.Product     `json:"product"`
		Deal    models.DealContent `json:"deal"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	cfg := s.Config()
	if !cfg.Ready() {
		// No gateway: hand back a wa.me deep link and write no history.
		s.writeJSON(w, http.StatusOK, map[string]any{
			"posted":   false,
			"deepLink": gateway.DeepLink(&req.Product, &req.Deal),
		})
		return
	}

	res, err := s.Send(r.Context(), &req.Product, &req.Deal, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res.OK {
		if err := s.store.AppendPosted(r.Context(), req.Product.ID); err != nil && !errors.Is(err, models.ErrAlreadyPosted) {
			s.logger.Error("failed to record posted product", "id", req.Product.ID, "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"posted":     res.OK,
		"statusCode": res.StatusCode,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	if cfg == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"config": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.AffiliateConfig
	if !s.decode(w, r, &cfg) {
		return
	}
	if err := s.validate.ValidateStruct(cfg); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.SaveConfig(r.Context(), &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.SetAffiliateConfig(&cfg)
	s.logger.Info("affiliate config saved", "provider", cfg.Provider, "active", cfg.Active)

	s.writeJSON(w, http.StatusOK, map[string]any{"config": &cfg})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	gw := s.currentGateway()
	if gw == nil {
		s.writeError(w, fmt.Errorf("%w: no gateway configured", models.ErrValidation))
		return
	}
	groups, err := gw.ListGroups(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if groups == nil {
		groups = []gateway.GroupInfo{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleResolveInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Link string `json:"link" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.validate.ValidateStruct(req); err != nil {
		s.writeError(w, err)
		return
	}

	gw := s.currentGateway()
	if gw == nil {
		s.writeError(w, fmt.Errorf("%w: no gateway configured", models.ErrValidation))
		return
	}
	groupID, err := gw.ResolveInvite(r.Context(), req.Link)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID})
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleSetAutomation(w http.ResponseWriter, r *http.Request) {
	var req models.AutomationSettings
	if !s.decode(w, r, &req) {
		return
	}

	if !req.Enabled {
		s.engine.Disable()
		s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
		return
	}

	interval := req.MinInterval
	if interval < 1 {
		interval = s.defaultInterval
	}
	s.engine.Enable(interval)
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": s.logs.Entries()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	gw := s.currentGateway()
	if gw == nil {
		s.writeError(w, fmt.Errorf("%w: no gateway configured", models.ErrValidation))
		return
	}
	if err := gw.Status(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"connected": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps the sentinel taxonomy to HTTP statuses. No error class is
// fatal; every failure becomes a logged, user-visible response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrResolution):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrParse), errors.Is(err, models.ErrUpstream):
		status = http.StatusBadGateway
	}
	s.logger.Error("request failed", "status", status, "error", err)
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}
