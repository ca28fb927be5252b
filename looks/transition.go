package looks

import "github.com/nimastyle/nima-backend/models"

// allowedPrev maps a target generation status to the statuses a job may hold
// before entering it. Completed and failed are terminal; the only way out of
// failed is an explicit owner retry, which is a separate operation.
var allowedPrev = map[string][]string{
	models.StatusProcessing: {models.StatusPending},
	models.StatusCompleted:  {models.StatusProcessing},
	models.StatusFailed:     {models.StatusPending, models.StatusProcessing},
}

// TransitionAllowed reports whether a generation job may move from one
// status to another.
func TransitionAllowed(from, to string) bool {
	for _, prev := range allowedPrev[to] {
		if prev == from {
			return true
		}
	}
	return false
}
