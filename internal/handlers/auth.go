package handlers

import (
	"errors"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/middleware"
	"github.com/devansh728/BYVS/internal/models"
	"github.com/devansh728/BYVS/internal/services"
	"github.com/devansh728/BYVS/internal/utils"
)

type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

// AuthHandler serves the /auth/otp endpoints.
type AuthHandler struct {
	otp      *services.OTPService
	accounts *services.AccountService
	log      *slog.Logger
}

func NewAuthHandler(otp *services.OTPService, accounts *services.AccountService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		otp:      otp,
		accounts: accounts,
		log:      log.With(logger.Module("handlers.auth")),
	}
}

// SendOTP issues a code for the phone. The code only leaves the process by SMS.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req SendOTPRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	_, err := h.otp.Issue(c.UserContext(), req.Phone)
	if err != nil {
		var rlErr *services.RateLimitError
		if errors.As(err, &rlErr) {
			seconds := int(math.Ceil(rlErr.RetryAfter.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":             "Too many OTP requests, try again later",
				"retryAfterSeconds": seconds,
			})
		}
		return fiber.NewError(fiber.StatusInternalServerError, "Could not send OTP")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "OTP sent",
	})
}

// VerifyOTP logs an existing member in.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req VerifyOTPRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.accounts.Login(c.UserContext(), req.Phone, req.OTP)
	switch {
	case errors.Is(err, services.ErrVerificationFailed):
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired OTP")
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.NewError(fiber.StatusBadRequest, "User does not exist, sign up first")
	case err != nil:
		h.log.Error("login", logger.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Login failed")
	}

	c.Set("X-User-Role", session.Role)
	return c.JSON(fiber.Map{
		"token":        session.Token,
		"role":         session.Role,
		"membershipId": session.User.MembershipID(),
	})
}

// Register signs a new member up.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.UserRegistration
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.accounts.Register(c.UserContext(), &req)
	switch {
	case errors.Is(err, services.ErrUserExists):
		return fiber.NewError(fiber.StatusBadRequest, "User already exists")
	case err != nil:
		h.log.Error("register", logger.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Registration failed")
	}

	membershipID := session.User.MembershipID()
	c.Set("X-Membership-ID", membershipID)
	return c.JSON(fiber.Map{
		"token":        session.Token,
		"membershipId": membershipID,
		"referralCode": session.User.ReferralCode,
		"message":      "Registration successful. Welcome to BYVS family!",
	})
}

func (h *AuthHandler) CheckUser(c *fiber.Ctx) error {
	phone := c.Query("phone")
	if err := utils.ValidatePhone(phone); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	exists, err := h.accounts.Exists(c.UserContext(), phone)
	if err != nil {
		h.log.Error("check user", logger.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Lookup failed")
	}
	return c.JSON(fiber.Map{"exists": exists})
}

// Me returns the caller's profile. Requires middleware.RequireJWT.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	profile, err := h.accounts.Profile(c.UserContext(), middleware.Phone(c))
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	case err != nil:
		h.log.Error("profile", logger.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Profile lookup failed")
	}

	u := profile.User
	return c.JSON(fiber.Map{
		"membershipId":       u.MembershipID(),
		"fullName":           u.FullName,
		"phone":              u.Phone,
		"age":                u.Age,
		"email":              u.Email,
		"whatsappNumber":     u.WhatsappNumber,
		"villageTownCity":    u.VillageTownCity,
		"blockName":          u.BlockName,
		"district":           u.District,
		"state":              u.State,
		"profession":         u.Profession,
		"institutionName":    u.InstitutionName,
		"institutionAddress": u.InstitutionAddress,
		"referralCode":       u.ReferralCode,
		"referredByCode":     u.ReferredByCode,
		"joinedAt":           u.JoinedAt,
		"lastLoginAt":        u.LastLoginAt,
		"verifiedReferrals":  profile.VerifiedReferrals,
	})
}

func parseAndValidate(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
