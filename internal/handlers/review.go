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

// ReviewHandler manages event reviews and organizer profiles.
type ReviewHandler struct {
	db *gorm.DB
}

// NewReviewHandler constructs a ReviewHandler.
func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{db: db}
}

type reviewRequest struct {
	TransactionID string `json:"transaction_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// CreateReview lets a customer review an event they attended. The purchase
// must be completed, the event over, and each transaction reviewed at most
// once.
func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	txnID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction_id")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return fiber.NewError(fiber.StatusBadRequest, "rating must be between 1 and 5")
	}

	var txn models.Transaction
	if err := h.db.Preload("Event").
		First(&txn, "id = ? AND user_id = ?", txnID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}

	if txn.Status != models.StatusDone {
		return fiber.NewError(fiber.StatusConflict, "transaction is not completed")
	}
	if txn.Event != nil && time.Now().Before(txn.Event.EndDate) {
		return fiber.NewError(fiber.StatusConflict, "event has not ended yet")
	}

	var existing models.Review
	if err := h.db.Where("transaction_id = ?", txnID).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "transaction already reviewed")
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	review := models.Review{
		UserID:        userID,
		EventID:       txn.EventID,
		TransactionID: txnID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	}

	if err := h.db.Create(&review).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": review})
}

// GetReviewByTransaction returns the caller's review of a transaction, if any.
func (h *ReviewHandler) GetReviewByTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	txnID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var review models.Review
	if err := h.db.Where("transaction_id = ? AND user_id = ?", txnID, userID).
		First(&review).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "review not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": review})
}

// OrganizerProfile returns an organizer's public profile: their events, the
// average rating across all reviews of those events, and the reviews
// themselves.
func (h *ReviewHandler) OrganizerProfile(c *fiber.Ctx) error {
	organizerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var organizer models.User
	if err := h.db.First(&organizer, "id = ? AND role = ?", organizerID, models.RoleOrganizer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "organizer not found")
		}
		return err
	}

	reviewQuery := h.db.Model(&models.Review{}).
		Joins("JOIN events ON events.id = reviews.event_id").
		Where("events.organizer_id = ?", organizerID)

	var rating struct {
		Average float64
		Total   int64
	}
	if err := reviewQuery.
		Select("COALESCE(avg(reviews.rating), 0) AS average, count(*) AS total").
		Scan(&rating).Error; err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	var reviews []models.Review
	if err := h.db.Preload("User").Preload("Event").
		Joins("JOIN events ON events.id = reviews.event_id").
		Where("events.organizer_id = ?", organizerID).
		Order("reviews.created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&reviews).Error; err != nil {
		return err
	}

	reviewList := make([]fiber.Map, 0, len(reviews))
	for _, review := range reviews {
		entry := fiber.Map{
			"id":         review.ID,
			"rating":     review.Rating,
			"comment":    review.Comment,
			"created_at": review.CreatedAt,
		}
		if review.User != nil {
			entry["user"] = fiber.Map{"name": review.User.Name}
		}
		if review.Event != nil {
			entry["event"] = fiber.Map{"name": review.Event.Name}
		}
		reviewList = append(reviewList, entry)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":             organizer.ID,
			"name":           organizer.Name,
			"average_rating": rating.Average,
			"total_reviews":  rating.Total,
			"reviews":        reviewList,
		},
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    rating.Total,
		},
	})
}
