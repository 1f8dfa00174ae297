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

// VoucherHandler manages organizer voucher endpoints.
type VoucherHandler struct {
	db *gorm.DB
}

// NewVoucherHandler constructs a VoucherHandler.
func NewVoucherHandler(db *gorm.DB) *VoucherHandler {
	return &VoucherHandler{db: db}
}

type voucherRequest struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Nominal   int64     `json:"nominal"`
	Quota     int       `json:"quota"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// CreateVoucher adds a discount voucher to one of the organizer's events.
func (h *VoucherHandler) CreateVoucher(c *fiber.Ctx) error {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req voucherRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid event_id")
	}
	if req.Name == "" || req.Nominal <= 0 || req.Quota <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if !req.EndDate.After(req.StartDate) {
		return fiber.NewError(fiber.StatusBadRequest, "end date must be after start date")
	}

	var event models.Event
	if err := h.db.First(&event, "id = ?", eventID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		return err
	}
	if event.OrganizerID != organizerID {
		return fiber.NewError(fiber.StatusForbidden, "not your event")
	}

	voucher := models.Voucher{
		EventID:   eventID,
		Name:      req.Name,
		Nominal:   req.Nominal,
		Quota:     req.Quota,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	if err := h.db.Create(&voucher).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": voucher})
}

// ListVouchers returns vouchers across the organizer's events.
func (h *VoucherHandler) ListVouchers(c *fiber.Ctx) error {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Voucher{}).
		Joins("JOIN events ON events.id = vouchers.event_id").
		Where("events.organizer_id = ?", organizerID)

	if eventID := c.Query("event_id"); eventID != "" {
		parsed, err := uuid.Parse(eventID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid event_id")
		}
		query = query.Where("vouchers.event_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var vouchers []models.Voucher
	if err := query.Order("vouchers.created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&vouchers).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    vouchers,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// DeleteVoucher soft-deletes one of the organizer's vouchers.
func (h *VoucherHandler) DeleteVoucher(c *fiber.Ctx) error {
	voucher, err := h.ownedVoucher(c)
	if err != nil {
		return err
	}

	if err := h.db.Delete(voucher).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// UpdateVoucher modifies one of the organizer's vouchers.
func (h *VoucherHandler) UpdateVoucher(c *fiber.Ctx) error {
	voucher, err := h.ownedVoucher(c)
	if err != nil {
		return err
	}

	var req voucherRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Nominal <= 0 || req.Quota < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if !req.EndDate.After(req.StartDate) {
		return fiber.NewError(fiber.StatusBadRequest, "end date must be after start date")
	}

	voucher.Name = req.Name
	voucher.Nominal = req.Nominal
	voucher.Quota = req.Quota
	voucher.StartDate = req.StartDate
	voucher.EndDate = req.EndDate

	if err := h.db.Save(voucher).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": voucher})
}

// ownedVoucher loads the voucher in :id and verifies the caller organizes its
// event.
func (h *VoucherHandler) ownedVoucher(c *fiber.Ctx) (*models.Voucher, error) {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var voucher models.Voucher
	if err := h.db.First(&voucher, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "voucher not found")
		}
		return nil, err
	}

	var event models.Event
	if err := h.db.First(&event, "id = ?", voucher.EventID).Error; err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, fiber.NewError(fiber.StatusForbidden, "not your voucher")
	}

	return &voucher, nil
}
