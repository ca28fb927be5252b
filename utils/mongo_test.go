package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimastyle/nima-backend/models"
)

// Two concurrent taps on the same item must collide on insert rather than
// both spawning a paid try-on, so the (user_id, item_id) index has to be
// unique over exactly the live records.
func TestTryOnIndexIsUniquePerLiveRecord(t *testing.T) {
	defs, ok := indexModels()[ColTryOns]
	require.True(t, ok)
	require.Len(t, defs, 1)

	opts := defs[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.Unique)
	assert.True(t, *opts.Unique)

	filter, ok := opts.PartialFilterExpression.(bson.M)
	require.True(t, ok)
	assert.Equal(t, false, filter["is_deleted"])
	assert.Equal(t, bson.M{"$in": []string{models.StatusPending, models.StatusProcessing, models.StatusCompleted}},
		filter["status"], "failed records must drop out so a retry can insert")

	assert.Equal(t, bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}}, defs[0].Keys)
}

// Email lookups drive login and signup; the unique index is what makes
// duplicate registration a clean conflict.
func TestUserEmailIndexIsUnique(t *testing.T) {
	defs, ok := indexModels()[ColUsers]
	require.True(t, ok)
	require.Len(t, defs, 1)
	require.NotNil(t, defs[0].Options)
	require.NotNil(t, defs[0].Options.Unique)
	assert.True(t, *defs[0].Options.Unique)
}
