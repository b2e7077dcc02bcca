package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
)

type mockDashboardRepo struct {
	summary *models.DashboardSummary
	err     error
	calls   int
}

func (m *mockDashboardRepo) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func TestDashboardSummaryCaches(t *testing.T) {
	repo := &mockDashboardRepo{summary: &models.DashboardSummary{ActiveStudents: 42, ActiveFamilies: 17}}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, nil, true)
	svc := NewDashboardService(repo, cacheSvc, time.Minute, nil)

	summary, fromCache, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 42, summary.ActiveStudents)
	assert.False(t, summary.GeneratedAt.IsZero())

	summary, fromCache, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 42, summary.ActiveStudents)
	assert.Equal(t, 1, repo.calls)

	svc.Invalidate(context.Background())
	_, fromCache, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardSummaryWithoutCache(t *testing.T) {
	repo := &mockDashboardRepo{summary: &models.DashboardSummary{ActiveStudents: 5}}
	cacheSvc := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewDashboardService(repo, cacheSvc, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, fromCache, err := svc.Summary(context.Background())
		require.NoError(t, err)
		assert.False(t, fromCache)
	}
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardSummaryRepositoryError(t *testing.T) {
	repo := &mockDashboardRepo{err: errors.New("db offline")}
	cacheSvc := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewDashboardService(repo, cacheSvc, time.Minute, nil)

	_, _, err := svc.Summary(context.Background())
	assert.Error(t, err)
}
