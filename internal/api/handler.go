package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
	"github.com/sitesmithapp/sitesmith/internal/queue"
	"github.com/sitesmithapp/sitesmith/internal/services"
)

type Handler struct {
	WebsiteService    *services.WebsiteService
	DeploymentService *services.DeploymentService
	DomainService     *services.DomainService
	Sessions          *editor.Sessions
	Progress          queue.Progress

	// Ping, when set, is checked by the health endpoint.
	Ping func(ctx context.Context) error
}

func NewHandler(
	websiteService *services.WebsiteService,
	deploymentService *services.DeploymentService,
	domainService *services.DomainService,
	sessions *editor.Sessions,
	progress queue.Progress,
) *Handler {
	return &Handler{
		WebsiteService:    websiteService,
		DeploymentService: deploymentService,
		DomainService:     domainService,
		Sessions:          sessions,
		Progress:          progress,
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (*middleware.UserClaims, bool) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		middleware.RespondError(w, http.StatusUnauthorized, "User not found in context")
	}
	return user, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return defaultValue
	}
	return n
}

// respondServiceError maps a service error onto a status code. notFound is
// the message used for missing or foreign resources.
func respondServiceError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case services.IsNotFound(err):
		middleware.RespondError(w, http.StatusNotFound, notFound)
	case services.IsConflict(err):
		middleware.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrRejected), errors.Is(err, lifecycle.ErrInvalidDomainName):
		middleware.RespondError(w, http.StatusBadRequest, err.Error())
	case services.IsRejected(err):
		middleware.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case services.IsExternal(err):
		middleware.RespondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("[API] Internal error: %v", err)
		middleware.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
