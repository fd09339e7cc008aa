// Package lifecycle holds the status machines for deployments and domains.
// Services call these functions instead of assigning status fields
// directly, so every transition goes through one table.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/models"
)

// ErrRejected marks a refused transition. Nothing was modified.
var ErrRejected = errors.New("nothing changed")

var ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrRejected)

var deploymentTransitions = map[models.DeploymentStatus][]models.DeploymentStatus{
	models.DeploymentQueued:     {models.DeploymentInProgress, models.DeploymentCanceled},
	models.DeploymentInProgress: {models.DeploymentSuccess, models.DeploymentFailed, models.DeploymentCanceled},
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s models.DeploymentStatus) bool {
	switch s {
	case models.DeploymentSuccess, models.DeploymentFailed, models.DeploymentCanceled:
		return true
	}
	return false
}

func CanTransition(from, to models.DeploymentStatus) bool {
	for _, next := range deploymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionDeployment moves d to status to. Entering a terminal status
// stamps CompletedAt; d is left untouched when the move is not allowed.
func TransitionDeployment(d *models.Deployment, to models.DeploymentStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	d.UpdatedAt = now
	if IsTerminal(to) && d.CompletedAt == nil {
		completed := now
		d.CompletedAt = &completed
	}
	return nil
}

// CanRetry reports whether a deployment may be retried. Retrying never
// touches the original row; it only creates a new queued one.
func CanRetry(s models.DeploymentStatus) bool {
	return s == models.DeploymentFailed || s == models.DeploymentCanceled
}
