package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
)

// NewRouter wires every route. Everything under /api/v1 requires a JWT.
func NewRouter(cfg *config.Config, h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Apply CORS middleware globally
	r.Use(middleware.CORSMiddleware(cfg.FrontendURL))

	// Public routes (no auth required)
	r.HandleFunc("/health", h.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))

	// Website routes
	api.HandleFunc("/websites", h.ListWebsites).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites", h.CreateWebsite).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}", h.GetWebsite).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}", h.UpdateWebsite).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}", h.DeleteWebsite).Methods("DELETE", "OPTIONS")

	// Project document routes
	api.HandleFunc("/websites/{websiteId}/project", h.GetProject).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/project", h.SaveProject).Methods("PUT", "OPTIONS")

	// Editor session routes
	api.HandleFunc("/websites/{websiteId}/editor", h.OpenEditor).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/editor", h.EditorState).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/editor", h.CloseEditor).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/editor/commands", h.ApplyCommand).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/editor/undo", h.Undo).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/editor/redo", h.Redo).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/editor/save", h.SaveEditor).Methods("POST", "OPTIONS")

	// Deployment routes
	api.HandleFunc("/websites/{websiteId}/deployments", h.ListDeployments).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/deployments", h.Publish).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/deployments/{deploymentId}", h.GetDeployment).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/deployments/{deploymentId}", h.DeleteDeployment).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/deployments/{deploymentId}/cancel", h.CancelDeployment).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/deployments/{deploymentId}/retry", h.RetryDeployment).Methods("POST", "OPTIONS")

	// Domain routes
	api.HandleFunc("/websites/{websiteId}/domains", h.ListDomains).Methods("GET", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/domains", h.AddDomain).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/domains/{domainId}", h.DeleteDomain).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/domains/{domainId}/verify", h.VerifyDomain).Methods("POST", "OPTIONS")
	api.HandleFunc("/websites/{websiteId}/domains/{domainId}/primary", h.SetPrimaryDomain).Methods("POST", "OPTIONS")

	// SSE route for build progress
	api.HandleFunc("/deployments/{deploymentId}/progress", h.ProgressStream).Methods("GET", "OPTIONS")

	return r
}

// Health handles GET /health. It answers 503 when Ping fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			log.Printf("[API] Health check failed: %v", err)
			middleware.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"healthy"}`)
}
