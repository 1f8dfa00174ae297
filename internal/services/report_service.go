package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finzzzi/event-management-api/internal/models"
)

// ReportService aggregates completed-transaction statistics for an organizer.
type ReportService struct {
	db *gorm.DB
}

// NewReportService constructs a ReportService.
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// CountItem is one bucket of a time-series report.
type CountItem struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// EventCountItem is a per-event share of completed transactions.
type EventCountItem struct {
	EventName string `json:"event_name"`
	Count     int64  `json:"count"`
}

// TopEventItem ranks events by attendees (sum of ticket quantities).
type TopEventItem struct {
	EventName string `json:"event_name"`
	Attendees int64  `json:"attendees"`
}

// Statistics is the full organizer report.
type Statistics struct {
	Daily             []CountItem      `json:"daily"`
	Monthly           []CountItem      `json:"monthly"`
	Yearly            []CountItem      `json:"yearly"`
	EventDistribution []EventCountItem `json:"event_distribution"`
	TopEvents         []TopEventItem   `json:"top_events"`
}

// Statistics builds the report over the organizer's Done transactions.
func (s *ReportService) Statistics(organizerID uuid.UUID) (*Statistics, error) {
	report := &Statistics{}

	base := func() *gorm.DB {
		return s.db.Model(&models.Transaction{}).
			Joins("JOIN events ON events.id = transactions.event_id").
			Where("events.organizer_id = ? AND transactions.status = ?",
				organizerID, models.StatusDone)
	}

	for _, series := range []struct {
		format string
		dest   *[]CountItem
	}{
		{"YYYY-MM-DD", &report.Daily},
		{"YYYY-MM", &report.Monthly},
		{"YYYY", &report.Yearly},
	} {
		if err := base().
			Select("to_char(transactions.created_at, ?) AS period, count(*) AS count", series.format).
			Group("period").Order("period").
			Scan(series.dest).Error; err != nil {
			return nil, err
		}
	}

	if err := base().
		Select("events.name AS event_name, count(*) AS count").
		Group("events.name").Order("count DESC").
		Scan(&report.EventDistribution).Error; err != nil {
		return nil, err
	}

	if err := base().
		Select("events.name AS event_name, sum(transactions.quantity) AS attendees").
		Group("events.name").Order("attendees DESC").Limit(5).
		Scan(&report.TopEvents).Error; err != nil {
		return nil, err
	}

	return report, nil
}
