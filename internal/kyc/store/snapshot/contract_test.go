package snapshot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
	"loankyc/pkg/platform/sentinel"
)

type snapshotStore interface {
	Save(ctx context.Context, s *models.Snapshot) error
	Load(ctx context.Context, applicationID id.ApplicationID) (*models.Snapshot, error)
}

func makeSnapshot(t *testing.T) *models.Snapshot {
	t.Helper()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	primary, err := models.NewApplicant(id.NewApplicantID(), "Rajesh Kumar", true, now)
	require.NoError(t, err)
	co, err := models.NewApplicant(id.NewApplicantID(), "Priya Singh", false, now)
	require.NoError(t, err)
	require.NoError(t, primary.Lifecycle.Begin(id.MethodTaxID, id.NewAttemptID(), now))
	require.NoError(t, primary.Lifecycle.Succeed(primary.Lifecycle.AttemptID, &models.VerificationResult{
		VerificationID: "NSDL-0000AAAA",
		Timestamp:      now,
		SubjectName:    "Rajesh Kumar",
		MethodFields:   map[string]any{"pan_status": "Active"},
	}, now))

	return &models.Snapshot{
		ApplicationID:       id.NewApplicationID(),
		Version:             3,
		SelectedApplicantID: co.ID,
		Applicants:          []models.Applicant{*primary, *co},
		SeenVerificationIDs: []string{"NSDL-0000AAAA"},
		UpdatedAt:           now,
	}
}

// exerciseStore checks the behaviour every snapshot backend shares.
func exerciseStore(t *testing.T, store snapshotStore) {
	ctx := context.Background()

	t.Run("load of an unknown application is not found", func(t *testing.T) {
		_, err := store.Load(ctx, id.NewApplicationID())
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("saved snapshot loads back equal", func(t *testing.T) {
		snap := makeSnapshot(t)
		require.NoError(t, store.Save(ctx, snap))

		got, err := store.Load(ctx, snap.ApplicationID)
		require.NoError(t, err)
		assert.Equal(t, snap.ApplicationID, got.ApplicationID)
		assert.Equal(t, snap.Version, got.Version)
		assert.Equal(t, snap.SelectedApplicantID, got.SelectedApplicantID)
		assert.Equal(t, snap.SeenVerificationIDs, got.SeenVerificationIDs)
		require.Len(t, got.Applicants, 2)
		assert.Equal(t, models.StateVerified, got.Applicants[0].State())
		assert.Equal(t, "NSDL-0000AAAA", got.Applicants[0].Lifecycle.Result.VerificationID)
		assert.Equal(t, "Active", got.Applicants[0].Lifecycle.Result.MethodFields["pan_status"])
		assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))
		assert.NoError(t, got.Validate())
	})

	t.Run("newer versions replace older ones", func(t *testing.T) {
		snap := makeSnapshot(t)
		require.NoError(t, store.Save(ctx, snap))

		snap.Version++
		snap.SelectedApplicantID = snap.Applicants[0].ID
		require.NoError(t, store.Save(ctx, snap))

		got, err := store.Load(ctx, snap.ApplicationID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), got.Version)
		assert.Equal(t, snap.Applicants[0].ID, got.SelectedApplicantID)
	})

	t.Run("stale versions conflict", func(t *testing.T) {
		snap := makeSnapshot(t)
		require.NoError(t, store.Save(ctx, snap))

		err := store.Save(ctx, snap)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))

		snap.Version--
		err = store.Save(ctx, snap)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))
	})
}
