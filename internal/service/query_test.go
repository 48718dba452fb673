package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runstream/internal/analysis"
	"runstream/internal/store"
)

func TestQueryService_GetAnalysis(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestActivity(t, db, 1, false)
	createTestActivity(t, db, 2, true)
	q := NewQueryService(db)

	// No record yet reads as pending
	view, err := q.GetAnalysis(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusPending, view.Status)
	assert.True(t, view.InProgress)
	assert.Nil(t, view.Result)

	// Fetching is reported the same way
	require.NoError(t, db.SetAnalysisStatus(ctx, 1, analysis.Version, string(analysis.StatusFetching)))
	view, err = q.GetAnalysis(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusFetching, view.Status)
	assert.True(t, view.InProgress)

	storeStreams(t, db, 1, steadyPoints(1, 600))
	svc := newTestAnalysisService(db)
	_, err = svc.ProcessPending(ctx)
	require.NoError(t, err)

	view, err = q.GetAnalysis(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusSuccess, view.Status)
	assert.False(t, view.InProgress)
	require.NotNil(t, view.Result)
	assert.NotNil(t, view.ComputedAt)

	view, err = q.GetAnalysis(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusUnavailable, view.Status)
	assert.Equal(t, analysis.ReasonManual, view.Reason)
	assert.Nil(t, view.Result)

	_, err = q.GetAnalysis(ctx, 99)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestQueryService_ListAndCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestActivity(t, db, 1, false)
	createTestActivity(t, db, 2, false)
	createTestActivity(t, db, 3, true)
	storeStreams(t, db, 1, steadyPoints(1, 600))

	_, err := newTestAnalysisService(db).Process(ctx, 1)
	require.NoError(t, err)
	_, err = newTestAnalysisService(db).Process(ctx, 3)
	require.NoError(t, err)

	q := NewQueryService(db)
	list, err := q.GetActivitiesList(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	byID := map[int64]ActivitySummary{}
	for _, s := range list {
		byID[s.Activity.ID] = s
	}
	assert.Equal(t, analysis.StatusSuccess, byID[1].Status)
	assert.Equal(t, analysis.Tier1, byID[1].Tier)
	require.NotNil(t, byID[1].Confidence)
	assert.Equal(t, analysis.StatusPending, byID[2].Status)
	assert.Equal(t, analysis.StatusUnavailable, byID[3].Status)
	assert.Empty(t, byID[3].Tier)

	counts, err := q.GetStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[analysis.Status]int{
		analysis.StatusSuccess:     1,
		analysis.StatusPending:     1,
		analysis.StatusUnavailable: 1,
	}, counts)

	total, err := q.GetTotalActivityCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	detail, err := q.GetActivityDetail(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, detail.Plan)
	assert.True(t, detail.HasStream)
	assert.Equal(t, analysis.StatusSuccess, detail.Analysis.Status)
}
