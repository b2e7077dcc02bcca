package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
	"github.com/melodia-school/melodia-api/internal/service"
)

type fakeOfferingStore struct {
	offerings []models.OfferingDetail
}

func (f *fakeOfferingStore) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	return f.offerings, len(f.offerings), nil
}

func (f *fakeOfferingStore) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	return &f.offerings[0], nil
}

func weeklyOffering() models.OfferingDetail {
	return models.OfferingDetail{Offering: models.Offering{
		ID:             "off-1",
		Name:           "Guitar Ensemble",
		DaysOfWeek:     pq.Int64Array{2}, // Tuesdays
		StartTime:      "17:00",
		EndTime:        "18:00",
		StartDate:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		StopDate:       time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		DeliveryMethod: models.DeliveryOnSite,
		Active:         true,
	}}
}

func newCalendarFixture() *CalendarHandler {
	store := &fakeOfferingStore{offerings: []models.OfferingDetail{weeklyOffering()}}
	return NewCalendarHandler(service.NewCalendarService(store, nil, time.Minute, 366, nil))
}

func TestCalendarEventsRejectsMalformedDates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/calendar/events?from=02-01-2026&to=2026-02-28", nil)

	handler.Events(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarEventsExpandsWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCalendarFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/calendar/events?from=2026-02-01&to=2026-02-28", nil)

	handler.Events(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var events []models.CalendarEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &events))
	// February 2026 has four Tuesdays: the 3rd, 10th, 17th, and 24th.
	require.Len(t, events, 4)
	assert.Equal(t, "off-1-2026-02-03", events[0].ID)
}
