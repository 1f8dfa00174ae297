package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finzzzi/event-management-api/internal/middleware"
	"github.com/finzzzi/event-management-api/internal/models"
	"github.com/finzzzi/event-management-api/internal/utils"
)

// EventHandler manages event endpoints.
type EventHandler struct {
	db *gorm.DB
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(db *gorm.DB) *EventHandler {
	return &EventHandler{db: db}
}

// ListEvents returns published events with optional search, category and
// location filters.
func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Event{})

	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if location := c.Query("location"); location != "" {
		query = query.Where("location ILIKE ?", "%"+location+"%")
	}
	if c.Query("upcoming") == "true" {
		query = query.Where("start_date > ?", time.Now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var events []models.Event
	if err := query.Order("start_date asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&events).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetEvent returns a single event with its organizer and currently usable
// vouchers.
func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var event models.Event
	if err := h.db.Preload("Organizer").Preload("Vouchers").
		First(&event, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		return err
	}

	now := time.Now()
	usable := event.Vouchers[:0]
	for _, voucher := range event.Vouchers {
		if voucher.Usable(now) {
			usable = append(usable, voucher)
		}
	}
	event.Vouchers = usable

	return c.JSON(fiber.Map{"success": true, "data": event})
}

type eventRequest struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       int64     `json:"price"`
	Quota       int       `json:"quota"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

func (r *eventRequest) validate() error {
	if r.Name == "" || r.Location == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if r.Price < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "price must not be negative")
	}
	if r.Quota <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quota must be positive")
	}
	if !r.EndDate.After(r.StartDate) {
		return fiber.NewError(fiber.StatusBadRequest, "end date must be after start date")
	}
	return nil
}

// CreateEvent publishes a new event for the authenticated organizer.
func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	event := models.Event{
		OrganizerID: organizerID,
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quota:       req.Quota,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Location:    req.Location,
		Description: req.Description,
	}

	if err := h.db.Create(&event).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": event})
}

// UpdateEvent modifies an event owned by the authenticated organizer.
func (h *EventHandler) UpdateEvent(c *fiber.Ctx) error {
	event, err := h.ownedEvent(c)
	if err != nil {
		return err
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	event.Name = req.Name
	event.Category = req.Category
	event.Price = req.Price
	event.Quota = req.Quota
	event.StartDate = req.StartDate
	event.EndDate = req.EndDate
	event.Location = req.Location
	event.Description = req.Description

	if err := h.db.Save(event).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": event})
}

// DeleteEvent removes an event owned by the authenticated organizer. Events
// with sold tickets cannot be deleted.
func (h *EventHandler) DeleteEvent(c *fiber.Ctx) error {
	event, err := h.ownedEvent(c)
	if err != nil {
		return err
	}

	var sold int64
	if err := h.db.Model(&models.Transaction{}).
		Where("event_id = ? AND status NOT IN ?", event.ID,
			[]models.TransactionStatus{models.StatusExpired, models.StatusCanceled, models.StatusRejected}).
		Count(&sold).Error; err != nil {
		return err
	}
	if sold > 0 {
		return fiber.NewError(fiber.StatusConflict, "event has sold tickets")
	}

	if err := h.db.Delete(event).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListAttendees returns confirmed attendees of an event owned by the
// authenticated organizer.
func (h *EventHandler) ListAttendees(c *fiber.Ctx) error {
	event, err := h.ownedEvent(c)
	if err != nil {
		return err
	}

	var txns []models.Transaction
	if err := h.db.Preload("User").
		Where("event_id = ? AND status = ?", event.ID, models.StatusDone).
		Order("created_at asc").
		Find(&txns).Error; err != nil {
		return err
	}

	attendees := make([]fiber.Map, 0, len(txns))
	for _, txn := range txns {
		entry := fiber.Map{
			"id":               txn.ID,
			"quantity":         txn.Quantity,
			"transaction_date": txn.CreatedAt,
		}
		if txn.User != nil {
			entry["user"] = fiber.Map{
				"id":    txn.User.ID,
				"name":  txn.User.Name,
				"email": txn.User.Email,
			}
		}
		attendees = append(attendees, entry)
	}

	return c.JSON(fiber.Map{"success": true, "data": attendees})
}

// ownedEvent loads the event in :id and verifies the caller organizes it.
func (h *EventHandler) ownedEvent(c *fiber.Ctx) (*models.Event, error) {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var event models.Event
	if err := h.db.First(&event, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		return nil, err
	}

	if event.OrganizerID != organizerID {
		return nil, fiber.NewError(fiber.StatusForbidden, "not your event")
	}

	return &event, nil
}
