package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"shopee-deal-bot/internal/automation"
	"shopee-deal-bot/internal/logring"
	"shopee-deal-bot/internal/models"
	"shopee-deal-bot/internal/store"
	"shopee-deal-bot/internal/validator"
)

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "bot.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	logs := logring.New(slog.NewTextHandler(io.Discard, nil), 50)
	logger := slog.New(logs)

	srv := NewServer(nil, st, validator.New(), logs, logger, 30)
	srv.engine = automation.NewEngine(nil, srv, st, srv, logger)

	mux := http.NewServeMux()
	srv.routes(mux)
	return srv, mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestShare_UnconfiguredFallsBackToDeepLink(t *testing.T) {
	srv, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/share", map[string]any{
		"product": models.Product{ID: "SHP1", Title: "Fone", ProductURL: "https://shopee.com.br/p1"},
		"deal":    models.DealContent{Caption: "Oferta!", Hashtags: []string{"promo"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Posted   bool   `json:"posted"`
		DeepLink string `json:"deepLink"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Posted {
		t.Error("Unconfigured share must not claim a post")
	}
	if !strings.HasPrefix(resp.DeepLink, "https://wa.me/?text=") {
		t.Errorf("Expected wa.me deep link, got %q", resp.DeepLink)
	}

	history, _ := srv.store.History(context.Background())
	if len(history) != 0 {
		t.Errorf("Deep-link share must not write history, got %v", history)
	}
}

func TestShare_ConfiguredPostsAndRecordsOnce(t *testing.T) {
	gatewaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer gatewaySrv.Close()

	srv, mux := newTestServer(t)
	srv.SetAffiliateConfig(&models.AffiliateConfig{
		Provider:    models.ProviderZAPI,
		EndpointURL: gatewaySrv.URL + "/i/t/send-text",
		GroupID:     "120363@g.us",
		Active:      true,
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/share", map[string]any{
		"product": models.Product{ID: "SHP1", Title: "Fone", ProductURL: "https://shopee.com.br/p1"},
		"deal":    models.DealContent{Caption: "Oferta!"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Posted bool `json:"posted"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Posted {
		t.Fatalf("Expected posted=true, body %s", rec.Body.String())
	}

	history, _ := srv.store.History(context.Background())
	if len(history) != 1 || history[0] != "SHP1" {
		t.Errorf("Expected exactly one history entry, got %v", history)
	}
}

func TestPutConfig_RejectsUnknownProvider(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPut, "/api/config", map[string]any{
		"apiProvider": "telegram",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestPutConfig_PersistsAndActivatesGateway(t *testing.T) {
	srv, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPut, "/api/config", models.AffiliateConfig{
		AffiliateID: "aff-1",
		Provider:    models.ProviderEvolution,
		EndpointURL: "https://evo.example.com/message/sendText/inst",
		GroupID:     "120363@g.us",
		Active:      true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	saved, err := srv.store.LoadConfig(context.Background())
	if err != nil || saved == nil {
		t.Fatalf("Config not persisted: %v, %v", saved, err)
	}
	if saved.Provider != models.ProviderEvolution {
		t.Errorf("Persisted provider = %s", saved.Provider)
	}
	if srv.currentGateway() == nil {
		t.Error("Gateway client must be rebuilt after config save")
	}

	get := doJSON(t, mux, http.MethodGet, "/api/config", nil)
	if !strings.Contains(get.Body.String(), "evolution") {
		t.Errorf("GET /api/config missing saved provider: %s", get.Body.String())
	}
}

func TestAutomation_Toggle(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/automation", models.AutomationSettings{
		Enabled:     true,
		MinInterval: 5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var snap automation.Snapshot
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if !snap.Enabled || snap.MinInterval != 5 {
		t.Errorf("Snapshot after enable = %+v", snap)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/automation", models.AutomationSettings{Enabled: false})
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.Enabled || snap.State != automation.StateIdle {
		t.Errorf("Snapshot after disable = %+v", snap)
	}
}

func TestAutomation_DefaultIntervalApplied(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/automation", models.AutomationSettings{Enabled: true})
	var snap automation.Snapshot
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.MinInterval != 30 {
		t.Errorf("Expected default interval 30, got %d", snap.MinInterval)
	}
}

func TestResolveInvite_RejectsBadLink(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.SetAffiliateConfig(&models.AffiliateConfig{
		Provider:    models.ProviderZAPI,
		EndpointURL: "https://api.z-api.io/i/t/send-text",
		GroupID:     "g@g.us",
		Active:      true,
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/resolve-invite", map[string]string{
		"link": "https://example.com/nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestGroups_NoGatewayConfigured(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/groups", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestLogs_ExposesRetainedEntries(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.logger.Info("discovery started", "category", "tecnologia eletronicos")

	rec := doJSON(t, mux, http.MethodGet, "/api/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "discovery started") {
		t.Errorf("Log feed missing entry: %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("Unexpected health body: %s", rec.Body.String())
	}
}
