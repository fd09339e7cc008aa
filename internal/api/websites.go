package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
	"github.com/sitesmithapp/sitesmith/internal/models"
)

// CreateWebsite handles POST /websites
func (h *Handler) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateWebsiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	website, err := h.WebsiteService.CreateWebsite(r.Context(), user.Sub, user.Email, req)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusCreated, website)
}

// ListWebsites handles GET /websites
func (h *Handler) ListWebsites(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	websites, err := h.WebsiteService.ListWebsites(r.Context(), user.Sub)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusOK, websites)
}

// GetWebsite handles GET /websites/{websiteId}
func (h *Handler) GetWebsite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	website, err := h.WebsiteService.GetWebsite(r.Context(), mux.Vars(r)["websiteId"], user.Sub)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusOK, website)
}

// UpdateWebsite handles PATCH /websites/{websiteId}
func (h *Handler) UpdateWebsite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateWebsiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	website, err := h.WebsiteService.RenameWebsite(r.Context(), mux.Vars(r)["websiteId"], user.Sub, req.Name)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusOK, website)
}

// DeleteWebsite handles DELETE /websites/{websiteId}
func (h *Handler) DeleteWebsite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	websiteID := mux.Vars(r)["websiteId"]
	if err := h.WebsiteService.DeleteWebsite(r.Context(), websiteID, user.Sub); err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}
	h.Sessions.CloseProject(websiteID)

	middleware.RespondJSON(w, http.StatusOK, map[string]string{"message": "Website deleted"})
}

// GetProject handles GET /websites/{websiteId}/project
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	project, err := h.WebsiteService.GetProject(r.Context(), mux.Vars(r)["websiteId"], user.Sub)
	if err != nil {
		respondServiceError(w, err, "Project not found")
		return
	}

	middleware.RespondJSON(w, http.StatusOK, project)
}

// SaveProject handles PUT /websites/{websiteId}/project. Open editor
// sessions are dropped so they reload the new document.
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var project editor.Project
	if !decodeJSON(w, r, &project) {
		return
	}

	websiteID := mux.Vars(r)["websiteId"]
	if err := h.WebsiteService.SaveProject(r.Context(), websiteID, user.Sub, &project); err != nil {
		respondServiceError(w, err, "Project not found")
		return
	}
	h.Sessions.CloseProject(websiteID)

	middleware.RespondJSON(w, http.StatusOK, &project)
}
