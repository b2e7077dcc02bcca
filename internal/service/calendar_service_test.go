package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
)

func pianoOffering() *models.Offering {
	location := "Studio B"
	return &models.Offering{
		ID:         "off-1",
		ProgramID:  "prog-1",
		TeacherID:  "t-1",
		Name:       "Piano Basics",
		DaysOfWeek: pq.Int64Array{1, 3}, // Mon, Wed
		StartTime:  "15:00",
		EndTime:    "16:30",
		// Thu Jan 1 2026 through Sat Jan 31 2026.
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StopDate:       time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		DeliveryMethod: models.DeliveryOnSite,
		Location:       &location,
	}
}

func TestGenerateCalendarEventsWeeklyExpansion(t *testing.T) {
	events := GenerateCalendarEvents(pianoOffering())

	// January 2026: Mondays 5,12,19,26 and Wednesdays 7,14,21,28.
	require.Len(t, events, 8)

	first := events[0]
	assert.Equal(t, "off-1-2026-01-05", first.ID)
	assert.Equal(t, "Piano Basics", first.Title)
	assert.Equal(t, time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2026, 1, 5, 16, 30, 0, 0, time.UTC), first.End)
	assert.Equal(t, "Studio B", first.ExtendedProps.Location)
	assert.False(t, first.ExtendedProps.Virtual)

	// Sorted ascending across both weekdays.
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i-1].Start.Before(events[i].Start))
	}
	assert.Equal(t, "off-1-2026-01-28", events[len(events)-1].ID)
}

func TestGenerateCalendarEventsStopDateInclusive(t *testing.T) {
	offering := pianoOffering()
	offering.DaysOfWeek = pq.Int64Array{6} // Saturday
	offering.StopDate = time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	events := GenerateCalendarEvents(offering)
	require.Len(t, events, 1)
	assert.Equal(t, "off-1-2026-01-03", events[0].ID)
}

func TestGenerateCalendarEventsEdgeCases(t *testing.T) {
	offering := pianoOffering()
	offering.DaysOfWeek = pq.Int64Array{}
	assert.Empty(t, GenerateCalendarEvents(offering))

	offering = pianoOffering()
	offering.DaysOfWeek = pq.Int64Array{-1, 7, 99}
	assert.Empty(t, GenerateCalendarEvents(offering))

	offering = pianoOffering()
	offering.StopDate = offering.StartDate.AddDate(0, 0, -1)
	assert.Empty(t, GenerateCalendarEvents(offering))

	assert.Empty(t, GenerateCalendarEvents(nil))
}

func TestGenerateCalendarEventsLocationFallbacks(t *testing.T) {
	offering := pianoOffering()
	offering.DeliveryMethod = models.DeliveryVirtual
	events := GenerateCalendarEvents(offering)
	require.NotEmpty(t, events)
	assert.Equal(t, models.VirtualLocation, events[0].ExtendedProps.Location)
	assert.True(t, events[0].ExtendedProps.Virtual)

	offering = pianoOffering()
	offering.Location = nil
	events = GenerateCalendarEvents(offering)
	require.NotEmpty(t, events)
	assert.Equal(t, models.FallbackLocation, events[0].ExtendedProps.Location)
}

func TestOfferingClassDatesMatchesEvents(t *testing.T) {
	offering := pianoOffering()
	dates := OfferingClassDates(offering)
	events := GenerateCalendarEvents(offering)

	require.Len(t, dates, len(events))
	assert.Equal(t, "2026-01-05", dates[0])
	assert.Equal(t, "2026-01-28", dates[len(dates)-1])
	assert.Equal(t, len(events), CalculateTotalSessions(offering))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "Mon/Wed", FormatDaysOfWeek([]int64{1, 3}))
	assert.Equal(t, "Sun/Sat", FormatDaysOfWeek([]int64{0, 6, 9}))
	assert.Equal(t, "", FormatDaysOfWeek(nil))

	assert.Equal(t, "3:05 PM", FormatTimeOfDay("15:05"))
	assert.Equal(t, "12:00 AM", FormatTimeOfDay("00:00"))
	assert.Equal(t, "garbage", FormatTimeOfDay("garbage"))
}

type mockCalendarOfferingRepo struct {
	offerings []models.OfferingDetail
	detail    *models.OfferingDetail
	findErr   error
	listCalls int
}

func (m *mockCalendarOfferingRepo) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	m.listCalls++
	return m.offerings, len(m.offerings), nil
}

func (m *mockCalendarOfferingRepo) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.detail, nil
}

func TestEventsForRangeFiltersAndCaches(t *testing.T) {
	repo := &mockCalendarOfferingRepo{offerings: []models.OfferingDetail{{Offering: *pianoOffering()}}}
	cache := &stubCacheRepo{}
	svc := NewCalendarService(repo, cache, time.Minute, 366, nil)

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	events, err := svc.EventsForRange(context.Background(), from, to)
	require.NoError(t, err)
	// Mondays 12, 19 and Wednesdays 14 fall inside the window.
	require.Len(t, events, 3)
	assert.Equal(t, "off-1-2026-01-12", events[0].ID)

	// Second call is served from cache.
	again, err := svc.EventsForRange(context.Background(), from, to)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Equal(t, 1, repo.listCalls)
}

func TestEventsForRangeExcludesMidnightAfterWindow(t *testing.T) {
	offering := pianoOffering()
	offering.DaysOfWeek = pq.Int64Array{3} // Wednesdays
	offering.StartTime = "00:00"
	repo := &mockCalendarOfferingRepo{offerings: []models.OfferingDetail{{Offering: *offering}}}
	svc := NewCalendarService(repo, nil, time.Minute, 366, nil)

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	events, err := svc.EventsForRange(context.Background(), from, to)
	require.NoError(t, err)
	// Wed Jan 14 starts at midnight inside the window; Wed Jan 21 starts
	// at midnight one day past the end and must not leak in.
	require.Len(t, events, 1)
	assert.Equal(t, "off-1-2026-01-14", events[0].ID)
}

func TestEventsForRangeRejectsBadWindows(t *testing.T) {
	svc := NewCalendarService(&mockCalendarOfferingRepo{}, nil, time.Minute, 30, nil)

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.EventsForRange(context.Background(), from, from.AddDate(0, 0, -1))
	assert.Error(t, err)

	_, err = svc.EventsForRange(context.Background(), from, from.AddDate(0, 0, 45))
	assert.Error(t, err)
}

func TestEventsForOfferingNotFound(t *testing.T) {
	svc := NewCalendarService(&mockCalendarOfferingRepo{findErr: sql.ErrNoRows}, nil, time.Minute, 366, nil)

	_, err := svc.EventsForOffering(context.Background(), "missing")
	assert.Error(t, err)

	_, err = svc.ClassDates(context.Background(), "missing")
	assert.Error(t, err)
}

func TestClassDatesThroughService(t *testing.T) {
	repo := &mockCalendarOfferingRepo{detail: &models.OfferingDetail{Offering: *pianoOffering()}}
	svc := NewCalendarService(repo, nil, time.Minute, 366, nil)

	dates, err := svc.ClassDates(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Len(t, dates, 8)
}
