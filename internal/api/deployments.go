package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/services"
)

// Publish handles POST /websites/{websiteId}/deployments
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.PublishRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	deployment, err := h.DeploymentService.Publish(r.Context(), mux.Vars(r)["websiteId"], user.Sub, req.CommitMessage)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusAccepted, deployment)
}

// ListDeployments handles GET /websites/{websiteId}/deployments?page=&limit=
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	websiteID := mux.Vars(r)["websiteId"]
	if _, err := h.WebsiteService.GetWebsite(r.Context(), websiteID, user.Sub); err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	page, err := h.DeploymentService.ListDeployments(r.Context(), websiteID,
		queryInt(r, "page", 1), queryInt(r, "limit", services.DefaultPageLimit))
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusOK, page)
}

// deployment loads the deployment named in the URL if the caller owns it.
func (h *Handler) deployment(w http.ResponseWriter, r *http.Request) (*models.Deployment, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	vars := mux.Vars(r)
	d, err := h.DeploymentService.GetWebsiteDeployment(r.Context(), vars["websiteId"], vars["deploymentId"], user.Sub)
	if err != nil {
		respondServiceError(w, err, "Deployment not found")
		return nil, false
	}
	return d, true
}

// GetDeployment handles GET /websites/{websiteId}/deployments/{deploymentId}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.deployment(w, r); ok {
		middleware.RespondJSON(w, http.StatusOK, d)
	}
}

// CancelDeployment handles POST /websites/{websiteId}/deployments/{deploymentId}/cancel
func (h *Handler) CancelDeployment(w http.ResponseWriter, r *http.Request) {
	d, ok := h.deployment(w, r)
	if !ok {
		return
	}

	canceled, err := h.DeploymentService.Cancel(r.Context(), d.ID)
	if err != nil {
		respondServiceError(w, err, "Deployment not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, canceled)
}

// RetryDeployment handles POST /websites/{websiteId}/deployments/{deploymentId}/retry
func (h *Handler) RetryDeployment(w http.ResponseWriter, r *http.Request) {
	d, ok := h.deployment(w, r)
	if !ok {
		return
	}

	retry, err := h.DeploymentService.Retry(r.Context(), d.ID)
	if err != nil {
		respondServiceError(w, err, "Deployment not found")
		return
	}
	middleware.RespondJSON(w, http.StatusAccepted, retry)
}

// DeleteDeployment handles DELETE /websites/{websiteId}/deployments/{deploymentId}
func (h *Handler) DeleteDeployment(w http.ResponseWriter, r *http.Request) {
	d, ok := h.deployment(w, r)
	if !ok {
		return
	}

	if err := h.DeploymentService.DeleteDeployment(r.Context(), d.ID); err != nil {
		respondServiceError(w, err, "Deployment not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, map[string]string{"message": "Deployment deleted"})
}
