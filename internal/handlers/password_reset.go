package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/finzzzi/event-management-api/internal/models"
	"github.com/finzzzi/event-management-api/internal/utils"
)

const resetTokenTTL = 10 * time.Minute

// PasswordResetHandler manages the forgot-password endpoints. The reset token
// is returned in the response body; delivering it to the user (mail, support
// desk) is left to the deployment.
type PasswordResetHandler struct {
	db *gorm.DB
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB) *PasswordResetHandler {
	return &PasswordResetHandler{db: db}
}

type requestResetRequest struct {
	Email string `json:"email"`
}

// RequestReset starts the password-reset flow for an account: previous unused
// tokens are invalidated and a fresh single-use token is issued.
func (h *PasswordResetHandler) RequestReset(c *fiber.Ctx) error {
	var req requestResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	record := models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND used_at IS NULL", user.ID).
			Update("expires_at", time.Now()).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password reset token issued",
		"token":   record.Token,
	})
}

// ValidateToken reports whether a reset token is still usable.
func (h *PasswordResetHandler) ValidateToken(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}

	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", token).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(fiber.Map{"success": true, "valid": false})
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "valid": record.Usable(time.Now())})
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ConfirmReset updates the password behind a valid token and burns the token.
func (h *PasswordResetHandler) ConfirmReset(c *fiber.Ctx) error {
	var req confirmResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Token == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token and new_password are required")
	}
	if len(req.NewPassword) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", req.Token).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "invalid reset token")
		}
		return err
	}

	if !record.Usable(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "token expired or already used")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	now := time.Now()
	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("password_hash", hash).Error; err != nil {
			return err
		}
		return tx.Model(&models.PasswordResetToken{}).
			Where("id = ?", record.ID).
			Update("used_at", now).Error
	}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "password updated successfully"})
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
