package snapshot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loankyc/internal/kyc/store/snapshot"
)

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, snapshot.NewInMemoryStore())
}

func TestInMemoryStore_LoadReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemoryStore()
	snap := makeSnapshot(t)
	require.NoError(t, store.Save(ctx, snap))

	first, err := store.Load(ctx, snap.ApplicationID)
	require.NoError(t, err)
	first.Applicants[0].DisplayName = "changed"
	first.Applicants[0].Lifecycle.Result.MethodFields["pan_status"] = "Inactive"

	second, err := store.Load(ctx, snap.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, "Rajesh Kumar", second.Applicants[0].DisplayName)
	assert.Equal(t, "Active", second.Applicants[0].Lifecycle.Result.MethodFields["pan_status"])
}
