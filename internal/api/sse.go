package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/middleware"
	"github.com/sitesmithapp/sitesmith/internal/models"
)

// ProgressStream handles GET /deployments/{deploymentId}/progress as
// Server-Sent Events. The stream ends once the deployment reaches a
// terminal status.
func (h *Handler) ProgressStream(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	deploymentID := mux.Vars(r)["deploymentId"]

	// Verify user owns the website
	deployment, err := h.DeploymentService.GetDeployment(r.Context(), deploymentID)
	if err != nil {
		respondServiceError(w, err, "Deployment not found")
		return
	}
	if _, err := h.WebsiteService.GetWebsite(r.Context(), deployment.WebsiteID, user.Sub); err != nil {
		middleware.RespondError(w, http.StatusNotFound, "Deployment not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// Subscribe before re-reading the status so no terminal event is missed.
	events, stop, err := h.Progress.SubscribeProgress(r.Context(), deploymentID)
	if err != nil {
		respondServiceError(w, err, "Deployment not found")
		return
	}
	defer stop()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "data: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	if current, err := h.DeploymentService.GetDeployment(r.Context(), deploymentID); err == nil && lifecycle.IsTerminal(current.Status) {
		writeEvent(w, flusher, models.BuildProgress{
			DeploymentID: deploymentID,
			Status:       current.Status,
			Message:      "Deployment already finished",
			Timestamp:    current.UpdatedAt,
		})
		return
	}

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case progress, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, flusher, progress)

			// Close connection when the deployment is finished
			if lifecycle.IsTerminal(progress.Status) {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, progress models.BuildProgress) {
	data, _ := json.Marshal(progress)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
