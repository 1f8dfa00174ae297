package handlers

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/finzzzi/event-management-api/internal/config"
	"github.com/finzzzi/event-management-api/internal/middleware"
	"github.com/finzzzi/event-management-api/internal/models"
	"github.com/finzzzi/event-management-api/internal/utils"
)

// Referral rewards: the referrer earns points, the new user gets a coupon.
const (
	referralPointsReward  = 10000
	referralCouponNominal = 20000
	referralCouponName    = "Bonus Referral"
	referralCouponTTL     = 3 * 30 * 24 * time.Hour
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
}

// Register creates a new user account. A valid referral code rewards the
// referrer with points and grants the new user a referral coupon.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role != models.RoleCustomer && role != models.RoleOrganizer {
		return fiber.NewError(fiber.StatusBadRequest, "invalid role")
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "user already exists")
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	var referrer *models.User
	if req.ReferralCode != "" {
		var found models.User
		if err := h.db.Where("referral_code = ?", strings.ToUpper(req.ReferralCode)).
			First(&found).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusBadRequest, "invalid referral code")
			}
			return err
		}
		referrer = &found
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	referralCode, err := generateReferralCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate referral code")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
		ReferralCode: referralCode,
	}
	if referrer != nil {
		user.ReferredByID = &referrer.ID
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		if referrer == nil {
			return nil
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", referrer.ID).
			Update("points", gorm.Expr("points + ?", referralPointsReward)).Error; err != nil {
			return err
		}
		entry := models.PointTransaction{
			UserID: referrer.ID,
			Amount: referralPointsReward,
			Type:   models.PointTypeReferral,
			Note:   "referral signup by " + user.Email,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		coupon := models.Coupon{
			UserID:    user.ID,
			Name:      referralCouponName,
			Nominal:   referralCouponNominal,
			ExpiredAt: time.Now().Add(referralCouponTTL),
		}
		return tx.Create(&coupon).Error
	}); err != nil {
		return err
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"role":          user.Role,
			"referral_code": user.ReferralCode,
		},
		"token": token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
		"token": token,
	})
}

// GetUser returns the authenticated user's profile with their points balance
// and still-usable coupons.
func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	var coupons []models.Coupon
	if err := h.db.Where("user_id = ?", userID).
		Order("expired_at asc").
		Find(&coupons).Error; err != nil {
		return err
	}

	now := time.Now()
	couponList := make([]fiber.Map, 0, len(coupons))
	for _, coupon := range coupons {
		if !coupon.Usable(now) {
			continue
		}
		couponList = append(couponList, fiber.Map{
			"id":         coupon.ID,
			"name":       coupon.Name,
			"nominal":    coupon.Nominal,
			"expired_at": coupon.ExpiredAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"role":          user.Role,
			"referral_code": user.ReferralCode,
			"points":        fiber.Map{"total": user.Points},
			"coupons":       couponList,
		},
	})
}

// ListPointTransactions returns the authenticated user's point ledger.
func (h *AuthHandler) ListPointTransactions(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.PointTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var entries []models.PointTransaction
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&entries).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() (string, error) {
	code := make([]byte, 8)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = referralAlphabet[n.Int64()]
	}
	return string(code), nil
}
