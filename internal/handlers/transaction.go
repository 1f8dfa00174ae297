package handlers

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finzzzi/event-management-api/internal/countdown"
	"github.com/finzzzi/event-management-api/internal/middleware"
	"github.com/finzzzi/event-management-api/internal/models"
	"github.com/finzzzi/event-management-api/internal/pricing"
	"github.com/finzzzi/event-management-api/internal/selection"
	"github.com/finzzzi/event-management-api/internal/services"
	"github.com/finzzzi/event-management-api/internal/utils"
)

// TransactionHandler manages the ticket purchase endpoints.
type TransactionHandler struct {
	db         *gorm.DB
	txns       *services.TransactionService
	watcher    *services.ExpiryWatcher
	selections *selection.Store
	tickets    *services.TicketService
	uploadDir  string
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(db *gorm.DB, txns *services.TransactionService, watcher *services.ExpiryWatcher,
	selections *selection.Store, tickets *services.TicketService, uploadDir string) *TransactionHandler {
	return &TransactionHandler{
		db:         db,
		txns:       txns,
		watcher:    watcher,
		selections: selections,
		tickets:    tickets,
		uploadDir:  uploadDir,
	}
}

// discountOptions pairs a pricing eligibility snapshot with the database rows
// it was built from, so a selected discount can be booked against its row.
type discountOptions struct {
	eligibility pricing.Eligibility
	coupon      *models.Coupon
	voucher     *models.Voucher
}

// loadDiscountOptions builds the discount eligibility of a user for an event:
// their points balance, their next usable coupon and the event's best usable
// voucher.
func loadDiscountOptions(db *gorm.DB, userID, eventID uuid.UUID, now time.Time) (*discountOptions, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	opts := &discountOptions{
		eligibility: pricing.Eligibility{
			Points: pricing.PointsOffer{Available: user.Points},
		},
	}

	var coupon models.Coupon
	err := db.Where("user_id = ? AND used_at IS NULL AND expired_at > ?", userID, now).
		Order("expired_at asc").
		First(&coupon).Error
	if err == nil {
		opts.coupon = &coupon
		opts.eligibility.Coupon = &pricing.CouponOffer{Nominal: coupon.Nominal}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var voucher models.Voucher
	err = db.Where("event_id = ? AND quota > 0 AND start_date <= ? AND end_date > ?", eventID, now, now).
		Order("nominal desc").
		First(&voucher).Error
	if err == nil {
		opts.voucher = &voucher
		opts.eligibility.Voucher = &pricing.VoucherOffer{
			Nominal:   voucher.Nominal,
			Quota:     voucher.Quota,
			StartDate: voucher.StartDate,
			EndDate:   voucher.EndDate,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return opts, nil
}

// bookSelection stamps the chosen discounts onto the transaction row fields.
func bookSelection(txn *models.Transaction, sel pricing.Selection, quote pricing.Quote, opts *discountOptions) {
	txn.PointsUsed = quote.PointsUsed
	txn.CouponID = nil
	txn.VoucherID = nil
	if sel.UseCoupon && opts.coupon != nil {
		txn.CouponID = &opts.coupon.ID
	}
	if sel.UseVoucher && opts.voucher != nil {
		txn.VoucherID = &opts.voucher.ID
	}
	txn.TotalDiscount = quote.TotalDiscount
	txn.TotalPrice = quote.FinalPrice
}

type createTransactionRequest struct {
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
	pricing.Selection
}

// CreateTransaction starts a ticket purchase: seats and selected discounts
// are reserved under row locks, the discounts re-validated and clamped
// server-side, and the payment window countdown begins.
func (h *TransactionHandler) CreateTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid event_id")
	}
	if req.Quantity <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
	}

	now := time.Now()
	var txn models.Transaction
	var event models.Event
	var sel pricing.Selection

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "event not found")
			}
			return err
		}

		if now.After(event.EndDate) {
			return fiber.NewError(fiber.StatusConflict, "event has ended")
		}
		if event.Quota < req.Quantity {
			return fiber.NewError(fiber.StatusConflict, "not enough seats available")
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&models.User{}, "id = ?", userID).Error; err != nil {
			return err
		}

		opts, err := loadDiscountOptions(tx, userID, eventID, now)
		if err != nil {
			return err
		}

		subtotal := event.Price * int64(req.Quantity)
		sel = pricing.Clamp(req.Selection, subtotal, opts.eligibility, now)
		quote := pricing.Calculate(subtotal, sel, opts.eligibility, now)

		txn = models.Transaction{
			UserID:    userID,
			EventID:   eventID,
			Status:    models.StatusWaitingForPayment,
			Quantity:  req.Quantity,
			UnitPrice: event.Price,
		}
		bookSelection(&txn, sel, quote, opts)

		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		return services.ConsumeHolds(tx, &txn, now)
	})
	if err != nil {
		if errors.Is(err, services.ErrVoucherExhausted) {
			return fiber.NewError(fiber.StatusConflict, "voucher is no longer available")
		}
		return err
	}

	h.watcher.Watch(txn.ID, txn.CreatedAt)
	h.selections.Save(txn.ID, sel)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"transaction_id": txn.ID,
			"event": fiber.Map{
				"name":  event.Name,
				"price": event.Price,
				"quota": event.Quota - req.Quantity,
			},
			"quantity":       txn.Quantity,
			"base_price":     txn.Subtotal(),
			"total_discount": txn.TotalDiscount,
			"final_price":    txn.TotalPrice,
			"discounts_applied": fiber.Map{
				"points":  txn.PointsUsed,
				"coupon":  txn.CouponID != nil,
				"voucher": txn.VoucherID != nil,
			},
			"next_step": "upload payment proof within the payment window",
		},
	})
}

// GetTransaction returns a transaction with its event, the discount
// eligibility snapshot, the saved discount selection and the remaining
// payment window.
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var txn models.Transaction
	if err := h.db.Preload("Event").
		First(&txn, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}

	now := time.Now()
	elig, err := h.eligibilityWithOwnHolds(&txn, now)
	if err != nil {
		return err
	}

	subtotal := txn.Subtotal()
	data := fiber.Map{
		"transaction": fiber.Map{
			"id":             txn.ID,
			"quantity":       txn.Quantity,
			"unit_price":     txn.UnitPrice,
			"total_discount": txn.TotalDiscount,
			"total_price":    txn.TotalPrice,
			"status":         txn.Status,
			"created_at":     txn.CreatedAt,
			"payment_proof":  txn.PaymentProof,
		},
		"event": txn.Event,
		"available_discounts": fiber.Map{
			"points": fiber.Map{
				"available": elig.Points.Available,
				"max_usage": pricing.MaxPoints(subtotal, txn.OtherDiscounts(), elig.Points.Available),
			},
			"coupon":  elig.Coupon,
			"voucher": elig.Voucher,
		},
		"saved_selection": h.selections.Load(txn.ID),
	}

	if txn.Status == models.StatusWaitingForPayment {
		data["payment_window"] = countdown.At(txn.CreatedAt, h.watcher.Window(), now)
	}
	if txn.TicketCode != "" {
		data["ticket"] = fiber.Map{
			"code":    txn.TicketCode,
			"qr_code": h.tickets.QRPath(txn.TicketCode),
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

// eligibilityWithOwnHolds builds the eligibility snapshot for a transaction's
// owner. Discounts already held by this transaction are added back, so the
// preview reflects what the user may apply rather than what is left after
// their own reservation.
func (h *TransactionHandler) eligibilityWithOwnHolds(txn *models.Transaction, now time.Time) (pricing.Eligibility, error) {
	opts, err := loadDiscountOptions(h.db, txn.UserID, txn.EventID, now)
	if err != nil {
		return pricing.Eligibility{}, err
	}
	elig := opts.eligibility

	elig.Points.Available += txn.PointsUsed

	if txn.CouponID != nil {
		var coupon models.Coupon
		if err := h.db.First(&coupon, "id = ?", *txn.CouponID).Error; err != nil {
			return pricing.Eligibility{}, err
		}
		elig.Coupon = &pricing.CouponOffer{Nominal: coupon.Nominal}
	}

	if txn.VoucherID != nil {
		var voucher models.Voucher
		if err := h.db.First(&voucher, "id = ?", *txn.VoucherID).Error; err != nil {
			return pricing.Eligibility{}, err
		}
		elig.Voucher = &pricing.VoucherOffer{
			Nominal:   voucher.Nominal,
			Quota:     voucher.Quota + 1,
			StartDate: voucher.StartDate,
			EndDate:   voucher.EndDate,
		}
	}

	return elig, nil
}

// applySelection re-prices a live transaction against a new discount
// selection: the old discount holds are released, the selection re-clamped
// against fresh eligibility and the new holds consumed, all in one database
// transaction.
func (h *TransactionHandler) applySelection(id, userID uuid.UUID, reqSel pricing.Selection) (*models.Transaction, pricing.Selection, error) {
	now := time.Now()
	var txn models.Transaction
	var sel pricing.Selection

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "transaction not found")
			}
			return err
		}

		if txn.Status != models.StatusWaitingForPayment {
			return fiber.NewError(fiber.StatusConflict, "transaction is not waiting for payment")
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&models.User{}, "id = ?", txn.UserID).Error; err != nil {
			return err
		}

		if err := services.ReleaseDiscounts(tx, &txn); err != nil {
			return err
		}
		txn.PointsUsed = 0
		txn.CouponID = nil
		txn.VoucherID = nil

		opts, err := loadDiscountOptions(tx, txn.UserID, txn.EventID, now)
		if err != nil {
			return err
		}

		subtotal := txn.Subtotal()
		sel = pricing.Clamp(reqSel, subtotal, opts.eligibility, now)
		quote := pricing.Calculate(subtotal, sel, opts.eligibility, now)
		bookSelection(&txn, sel, quote, opts)

		if err := tx.Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(map[string]any{
			"points_used":    txn.PointsUsed,
			"coupon_id":      txn.CouponID,
			"voucher_id":     txn.VoucherID,
			"total_discount": txn.TotalDiscount,
			"total_price":    txn.TotalPrice,
		}).Error; err != nil {
			return err
		}

		return services.ConsumeDiscounts(tx, &txn, now)
	})
	if err != nil {
		if errors.Is(err, services.ErrVoucherExhausted) {
			return nil, sel, fiber.NewError(fiber.StatusConflict, "voucher is no longer available")
		}
		return nil, sel, err
	}

	return &txn, sel, nil
}

// ApplyDiscount re-prices the transaction with the submitted discount
// selection and persists the selection for the next page load.
func (h *TransactionHandler) ApplyDiscount(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var reqSel pricing.Selection
	if err := c.BodyParser(&reqSel); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	txn, sel, err := h.applySelection(id, userID, reqSel)
	if err != nil {
		return err
	}

	h.selections.Save(txn.ID, sel)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"transaction_id": txn.ID,
			"base_price":     txn.Subtotal(),
			"total_discount": txn.TotalDiscount,
			"final_price":    txn.TotalPrice,
			"discounts_applied": fiber.Map{
				"points":  txn.PointsUsed,
				"coupon":  txn.CouponID != nil,
				"voucher": txn.VoucherID != nil,
			},
		},
	})
}

// ConfirmTransaction locks in the submitted discount selection and clears the
// saved selection; the user is expected to upload payment proof next.
func (h *TransactionHandler) ConfirmTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var reqSel pricing.Selection
	if err := c.BodyParser(&reqSel); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	txn, _, err := h.applySelection(id, userID, reqSel)
	if err != nil {
		return err
	}

	h.selections.Clear(txn.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "transaction confirmed, please upload payment proof",
		"data": fiber.Map{
			"transaction_id": txn.ID,
			"final_price":    txn.TotalPrice,
		},
	})
}

var allowedProofExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// saveProof writes an uploaded proof under dir and then runs commit. When
// commit fails the stored file is removed again, so a rejected status change
// leaves no orphan on disk.
func saveProof(src io.Reader, dir, name string, commit func() error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return err
	}

	if err := commit(); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Printf("[Transaction] orphaned proof cleanup failed for %s: %v", name, rmErr)
		}
		return err
	}
	return nil
}

// UploadPaymentProof attaches the payment proof image and moves the
// transaction to WaitingForAdminConfirmation.
func (h *TransactionHandler) UploadPaymentProof(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	file, err := c.FormFile("payment_proof")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "payment_proof file is required")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedProofExtensions[ext] {
		return fiber.NewError(fiber.StatusBadRequest, "payment proof must be an image")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	proofName := id.String() + ext
	err = saveProof(src, filepath.Join(h.uploadDir, "proofs"), proofName, func() error {
		return h.db.Transaction(func(tx *gorm.DB) error {
			var txn models.Transaction
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&txn, "id = ? AND user_id = ?", id, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "transaction not found")
				}
				return err
			}

			if err := txn.Transition(models.StatusWaitingForAdminConfirmation); err != nil {
				return fiber.NewError(fiber.StatusConflict, "transaction is not waiting for payment")
			}

			return tx.Model(&models.Transaction{}).Where("id = ?", id).Updates(map[string]any{
				"status":        txn.Status,
				"payment_proof": "/uploads/proofs/" + proofName,
			}).Error
		})
	})
	if err != nil {
		return err
	}

	h.watcher.Forget(id)
	h.selections.Clear(id)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "payment proof uploaded, waiting for organizer confirmation",
	})
}

// CancelTransaction cancels a purchase that has not been completed yet and
// returns its held resources.
func (h *TransactionHandler) CancelTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var txn models.Transaction
	if err := h.db.First(&txn, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}

	if _, err := h.txns.Finalize(id, models.StatusCanceled); err != nil {
		if errors.Is(err, services.ErrIllegalTransition) {
			return fiber.NewError(fiber.StatusConflict, "transaction can no longer be canceled")
		}
		return err
	}

	h.watcher.Forget(id)
	h.selections.Clear(id)

	return c.JSON(fiber.Map{"success": true, "message": "transaction canceled"})
}

// ListTransactions returns the authenticated user's transactions, optionally
// filtered by status.
func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Transaction{}).Where("user_id = ?", userID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var txns []models.Transaction
	if err := query.Preload("Event").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&txns).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// ListEventTransactions returns transactions across the organizer's events,
// optionally filtered by status, for the confirmation queue.
func (h *TransactionHandler) ListEventTransactions(c *fiber.Ctx) error {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Transaction{}).
		Joins("JOIN events ON events.id = transactions.event_id").
		Where("events.organizer_id = ?", organizerID)

	if status := c.Query("status"); status != "" {
		query = query.Where("transactions.status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var txns []models.Transaction
	if err := query.Preload("Event").Preload("User").
		Order("transactions.created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&txns).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// AcceptTransaction approves a payment proof: the transaction completes and
// an e-ticket is issued.
func (h *TransactionHandler) AcceptTransaction(c *fiber.Ctx) error {
	txnID, err := h.organizerOwnedTransaction(c)
	if err != nil {
		return err
	}

	txn, err := h.txns.Finalize(txnID, models.StatusDone)
	if err != nil {
		if errors.Is(err, services.ErrIllegalTransition) {
			return fiber.NewError(fiber.StatusConflict, "transaction is not awaiting confirmation")
		}
		return err
	}

	resp := fiber.Map{"success": true, "message": "transaction accepted"}
	if txn.TicketCode != "" {
		resp["data"] = fiber.Map{
			"ticket_code": txn.TicketCode,
			"qr_code":     h.tickets.QRPath(txn.TicketCode),
		}
	}
	return c.JSON(resp)
}

// RejectTransaction declines a payment proof and returns the held resources
// to the customer.
func (h *TransactionHandler) RejectTransaction(c *fiber.Ctx) error {
	txnID, err := h.organizerOwnedTransaction(c)
	if err != nil {
		return err
	}

	if _, err := h.txns.Finalize(txnID, models.StatusRejected); err != nil {
		if errors.Is(err, services.ErrIllegalTransition) {
			return fiber.NewError(fiber.StatusConflict, "transaction is not awaiting confirmation")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "transaction rejected"})
}

// organizerOwnedTransaction verifies the transaction in :id belongs to one of
// the caller's events.
func (h *TransactionHandler) organizerOwnedTransaction(c *fiber.Ctx) (uuid.UUID, error) {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var txn models.Transaction
	if err := h.db.Preload("Event").First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return uuid.Nil, err
	}

	if txn.Event == nil || txn.Event.OrganizerID != organizerID {
		return uuid.Nil, fiber.NewError(fiber.StatusForbidden, "not your event")
	}

	return txn.ID, nil
}
