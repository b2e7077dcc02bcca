package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type calendarOfferingRepository interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type calendarCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// CalendarService expands recurring offerings into concrete calendar events.
// Events are derived on every request and never persisted; a short cache in
// front of the range query absorbs repeated loads of the same window.
type CalendarService struct {
	offerings    calendarOfferingRepository
	cache        calendarCache
	cacheTTL     time.Duration
	maxRangeDays int
	logger       *zap.Logger
}

// NewCalendarService constructs the calendar service. cache may be nil to
// disable range-query caching.
func NewCalendarService(offerings calendarOfferingRepository, cache calendarCache, cacheTTL time.Duration, maxRangeDays int, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		offerings:    offerings,
		cache:        cache,
		cacheTTL:     cacheTTL,
		maxRangeDays: maxRangeDays,
		logger:       logger,
	}
}

// GenerateCalendarEvents expands one offering's weekly recurrence over its
// full date range. For each scheduled weekday the first occurrence on or after
// the start date is found, then occurrences step forward seven days at a time
// through the stop date inclusive. Events are returned sorted by start time.
func GenerateCalendarEvents(offering *models.Offering) []models.CalendarEvent {
	events := []models.CalendarEvent{}
	if offering == nil || offering.StopDate.Before(offering.StartDate) {
		return events
	}

	location := eventLocation(offering)
	startDay := int(offering.StartDate.Weekday())

	for _, day := range offering.DaysOfWeek {
		d := int(day)
		if d < 0 || d > 6 {
			continue
		}
		offset := (d - startDay + 7) % 7
		for date := offering.StartDate.AddDate(0, 0, offset); !date.After(offering.StopDate); date = date.AddDate(0, 0, 7) {
			events = append(events, models.CalendarEvent{
				ID:    fmt.Sprintf("%s-%s", offering.ID, date.Format("2006-01-02")),
				Title: offering.Name,
				Start: combineDateTime(date, offering.StartTime),
				End:   combineDateTime(date, offering.EndTime),
				ExtendedProps: models.CalendarEventProps{
					OfferingID: offering.ID,
					ProgramID:  offering.ProgramID,
					TeacherID:  offering.TeacherID,
					Location:   location,
					Virtual:    offering.DeliveryMethod == models.DeliveryVirtual,
				},
			})
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events
}

// OfferingClassDates returns every session date of an offering as YYYY-MM-DD
// strings, merged across weekdays and sorted ascending.
func OfferingClassDates(offering *models.Offering) []string {
	events := GenerateCalendarEvents(offering)
	dates := make([]string, 0, len(events))
	for _, event := range events {
		dates = append(dates, event.Start.Format("2006-01-02"))
	}
	return dates
}

// CalculateTotalSessions counts how many sessions an offering holds over its
// full date range.
func CalculateTotalSessions(offering *models.Offering) int {
	return len(GenerateCalendarEvents(offering))
}

// FormatDaysOfWeek renders weekday indices as a short display string such as
// "Mon/Wed". Out-of-range indices are skipped.
func FormatDaysOfWeek(days []int64) string {
	names := make([]string, 0, len(days))
	for _, day := range days {
		if day < 0 || day > 6 {
			continue
		}
		names = append(names, weekdayNames[day])
	}
	return strings.Join(names, "/")
}

// FormatTimeOfDay renders an HH:MM time for display as h:MM AM/PM.
func FormatTimeOfDay(value string) string {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return value
	}
	return t.Format("3:04 PM")
}

// EventsForRange expands every active offering overlapping [from, to] and
// returns the events falling inside the window, sorted by start time.
func (s *CalendarService) EventsForRange(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "calendar range end precedes start")
	}
	if s.maxRangeDays > 0 {
		if int(to.Sub(from).Hours()/24) > s.maxRangeDays {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("calendar range exceeds %d days", s.maxRangeDays))
		}
	}

	cacheKey := fmt.Sprintf("calendar:range:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if s.cache != nil {
		var cached []models.CalendarEvent
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	active := true
	filter := models.OfferingFilter{Active: &active, From: &from, To: &to, PageSize: 100}
	events := []models.CalendarEvent{}
	for page := 1; ; page++ {
		filter.Page = page
		offerings, total, err := s.offerings.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offerings for calendar")
		}
		windowEnd := to.AddDate(0, 0, 1)
		for i := range offerings {
			for _, event := range GenerateCalendarEvents(&offerings[i].Offering) {
				if event.Start.Before(from) || !event.Start.Before(windowEnd) {
					continue
				}
				events = append(events, event)
			}
		}
		if page*filter.PageSize >= total || len(offerings) == 0 {
			break
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, events, s.cacheTTL); err != nil {
			s.logger.Warn("calendar cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return events, nil
}

// EventsForOffering expands a single offering over its full date range.
func (s *CalendarService) EventsForOffering(ctx context.Context, offeringID string) ([]models.CalendarEvent, error) {
	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return GenerateCalendarEvents(&offering.Offering), nil
}

// ClassDates returns the session dates of a single offering.
func (s *CalendarService) ClassDates(ctx context.Context, offeringID string) ([]string, error) {
	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return OfferingClassDates(&offering.Offering), nil
}

// eventLocation resolves the display location for an offering's sessions.
func eventLocation(offering *models.Offering) string {
	if offering.DeliveryMethod == models.DeliveryVirtual {
		return models.VirtualLocation
	}
	if offering.Location != nil && *offering.Location != "" {
		return *offering.Location
	}
	return models.FallbackLocation
}

// combineDateTime merges a calendar date with an HH:MM local time of day.
// Seconds are always zero; an unparseable time falls back to midnight.
func combineDateTime(date time.Time, hhmm string) time.Time {
	parts := strings.SplitN(hhmm, ":", 2)
	hour, minute := 0, 0
	if len(parts) == 2 {
		if h, err := strconv.Atoi(parts[0]); err == nil {
			hour = h
		}
		if m, err := strconv.Atoi(parts[1]); err == nil {
			minute = m
		}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}
