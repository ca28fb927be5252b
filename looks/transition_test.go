package looks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimastyle/nima-backend/models"
)

func TestTransitionAllowed(t *testing.T) {
	allowed := [][2]string{
		{models.StatusPending, models.StatusProcessing},
		{models.StatusProcessing, models.StatusCompleted},
		{models.StatusPending, models.StatusFailed},
		{models.StatusProcessing, models.StatusFailed},
	}
	for _, pair := range allowed {
		assert.True(t, TransitionAllowed(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]string{
		{models.StatusPending, models.StatusCompleted},
		{models.StatusCompleted, models.StatusProcessing},
		{models.StatusCompleted, models.StatusFailed},
		{models.StatusFailed, models.StatusProcessing},
		{models.StatusFailed, models.StatusCompleted},
		{models.StatusCompleted, models.StatusPending},
	}
	for _, pair := range denied {
		assert.False(t, TransitionAllowed(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}
