package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/service/status"
)

func TestStore(t *testing.T) {
	store := New()
	ctx := context.Background()
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, status.ErrNotFound)
	assert.ErrorIs(t, store.Save(ctx, nil), status.ErrNilSnapshot)

	snapshot := &status.Snapshot{Pending: []*build.Record{{Type: build.KindNightly, For: "2012-01-01"}}}
	assert.NoError(t, store.Save(ctx, snapshot))
	snapshot.Pending[0].For = "changed"

	actual, err := store.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "2012-01-01", actual.Pending[0].For)
	assert.Equal(t, 1, store.Saves())
}
