package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
	"github.com/sitesmithapp/sitesmith/internal/models"
)

// AddDomain handles POST /websites/{websiteId}/domains
func (h *Handler) AddDomain(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.AddDomainRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	domain, err := h.DomainService.AddDomain(r.Context(), mux.Vars(r)["websiteId"], user.Sub, req.Name)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	middleware.RespondJSON(w, http.StatusCreated, domain)
}

// ListDomains handles GET /websites/{websiteId}/domains
func (h *Handler) ListDomains(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	websiteID := mux.Vars(r)["websiteId"]
	if _, err := h.WebsiteService.GetWebsite(r.Context(), websiteID, user.Sub); err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}

	domains, err := h.DomainService.ListDomains(r.Context(), websiteID)
	if err != nil {
		respondServiceError(w, err, "Website not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, domains)
}

func (h *Handler) domain(w http.ResponseWriter, r *http.Request) (*models.Domain, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	vars := mux.Vars(r)
	d, err := h.DomainService.GetWebsiteDomain(r.Context(), vars["websiteId"], vars["domainId"], user.Sub)
	if err != nil {
		respondServiceError(w, err, "Domain not found")
		return nil, false
	}
	return d, true
}

// VerifyDomain handles POST /websites/{websiteId}/domains/{domainId}/verify.
// The response always carries the DNS records to configure.
func (h *Handler) VerifyDomain(w http.ResponseWriter, r *http.Request) {
	d, ok := h.domain(w, r)
	if !ok {
		return
	}

	verified, err := h.DomainService.VerifyDomain(r.Context(), d.ID)
	if err != nil {
		respondServiceError(w, err, "Domain not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, verified)
}

// SetPrimaryDomain handles POST /websites/{websiteId}/domains/{domainId}/primary
func (h *Handler) SetPrimaryDomain(w http.ResponseWriter, r *http.Request) {
	d, ok := h.domain(w, r)
	if !ok {
		return
	}

	primary, err := h.DomainService.SetPrimaryDomain(r.Context(), d.ID)
	if err != nil {
		respondServiceError(w, err, "Domain not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, primary)
}

// DeleteDomain handles DELETE /websites/{websiteId}/domains/{domainId}
func (h *Handler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	d, ok := h.domain(w, r)
	if !ok {
		return
	}

	if err := h.DomainService.DeleteDomain(r.Context(), d.ID); err != nil {
		respondServiceError(w, err, "Domain not found")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, map[string]string{"message": "Domain deleted"})
}
